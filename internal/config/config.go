package config

import (
	"flag"
	"fmt"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"io/ioutil"
	"os"
	"time"
)

// DBCredential struct
type DBCredential struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// GetRedisAddress prints redis credential info.
func (c *DBCredential) GetRedisAddress() string {
	return fmt.Sprintf("%v:%v", c.Address, c.Port)
}

// Dsn returns the postgres connection string.
func (c *DBCredential) Dsn() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		c.Address, c.Port, c.User, c.Password, c.Database)
}

// Configuration struct
type Configuration struct {
	LogLevel         int             `yaml:"log_level"`
	HTTP             HTTP            `yaml:"http"`
	WalletConnect    WalletConnect   `yaml:"wallet_connect"`
	Telegram         Telegram        `yaml:"telegram"`
	RedisCredential  DBCredential    `yaml:"redis"`
	Postgres         DBCredential    `yaml:"postgres"`
	Aws              Aws             `yaml:"aws"`
	KafkaServer      string          `yaml:"kafka-server"`
	KafkaStateTopic  string          `yaml:"kafka_state_topic"`
	SentryDSN        string          `yaml:"sentry_dsn"`
	LarkAlarmWebhook string          `yaml:"lark_alarm_webhook"`
	DingTalk         DingTalkWebhook `yaml:"dingtalk"`
}

type HTTP struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// WalletConcurrency 同时等待钱包签名的请求上限
	WalletConcurrency int `yaml:"wallet_concurrency"`
}

type WalletConnect struct {
	ProjectID   string        `yaml:"project_id"`
	BridgeURL   string        `yaml:"bridge_url"`
	Network     string        `yaml:"network"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	DApp        DAppMetadata  `yaml:"dapp"`
	// RecognizedWallet 识别到该钱包名称时同步账号至 hashconnect 状态
	RecognizedWallet string `yaml:"recognized_wallet"`
}

type DAppMetadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Icons       []string `yaml:"icons"`
}

type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
	// SSM参数名，配置后从参数仓库读取密钥
	SSMBotTokenParam string `yaml:"ssm_bot_token_param"`
	SSMChatIDParam   string `yaml:"ssm_chat_id_param"`
	QueueURL         string `yaml:"queue_url"`
	RatePerSecond    int    `yaml:"rate_per_second"`
	// RequestsPerMinute 单个IP每分钟允许的请求数，0表示不限制
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type Aws struct {
	Region string `yaml:"region"`
	// QRCodeBucket 配置后配对二维码会上传至该公开读的存储桶
	QRCodeBucket string `yaml:"qrcode_bucket"`
}

type DingTalkWebhook struct {
	Webhook string `yaml:"webhook"`
	Secret  string `yaml:"secret"`
}

const (
	envTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	envTelegramChatID   = "TELEGRAM_CHAT_ID"

	defaultHTTPAddr          = ":8080"
	defaultWalletConcurrency = 4
	defaultTelegramAPIURL    = "https://api.telegram.org"
	defaultNetwork           = "mainnet"
	defaultRecognizedWallet  = "HashPack"
	defaultReadTimeout       = time.Minute * 5
	defaultStateTopic        = "hedera_dapp_state"
)

// applyDefaults 填充未配置的默认值，环境变量中的telegram密钥优先于配置文件
func (c *Configuration) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	if c.HTTP.WalletConcurrency <= 0 {
		c.HTTP.WalletConcurrency = defaultWalletConcurrency
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = defaultTelegramAPIURL
	}
	if v := os.Getenv(envTelegramBotToken); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(envTelegramChatID); v != "" {
		c.Telegram.ChatID = v
	}
	if c.WalletConnect.Network == "" {
		c.WalletConnect.Network = defaultNetwork
	}
	if c.WalletConnect.ReadTimeout <= 0 {
		c.WalletConnect.ReadTimeout = defaultReadTimeout
	}
	if c.WalletConnect.RecognizedWallet == "" {
		c.WalletConnect.RecognizedWallet = defaultRecognizedWallet
	}
	if c.KafkaStateTopic == "" {
		c.KafkaStateTopic = defaultStateTopic
	}
}

func readConfig(path string) (Configuration, error) {
	logrus.Info("Starting to load configuration file ...")
	t := Configuration{}
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, fmt.Errorf("file %s does not exist", path)
		}
		return t, err
	}
	if err := yaml.Unmarshal(dat, &t); err != nil {
		return t, fmt.Errorf("fail to decode config error: %v", err)
	}
	t.applyDefaults()
	return t, nil
}

// Load reads the configuration at path without touching Global.
func Load(path string) (*Configuration, error) {
	c, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	logrus.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := readConfig(*configFilePath)
	if err != nil {
		logrus.Fatal(err)
	}
	Global = &globalConfig
}
