package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(envTelegramBotToken, "")
	t.Setenv(envTelegramChatID, "")

	conf, err := Load("testdata/config.yml")
	require.NoError(t, err)

	assert.Equal(t, 0, conf.LogLevel)
	assert.Equal(t, ":8080", conf.HTTP.Addr)
	assert.Equal(t, 30*time.Second, conf.HTTP.RequestTimeout)
	assert.Equal(t, 4, conf.HTTP.WalletConcurrency)
	assert.Equal(t, "testnet", conf.WalletConnect.Network)
	assert.Equal(t, defaultReadTimeout, conf.WalletConnect.ReadTimeout)
	assert.Equal(t, "HashPack", conf.WalletConnect.RecognizedWallet)
	assert.Equal(t, []string{"http://localhost/logo.png"}, conf.WalletConnect.DApp.Icons)
	assert.Equal(t, "https://api.telegram.org", conf.Telegram.APIURL)
	assert.Equal(t, "file-token", conf.Telegram.BotToken)
	assert.Equal(t, "/relay/bot_token", conf.Telegram.SSMBotTokenParam)
	assert.Equal(t, "10.0.0.1:6380", conf.RedisCredential.GetRedisAddress())
	assert.Equal(t, "host=10.0.0.2 port=5432 user=dapp password=secret dbname=hedera_dapp", conf.Postgres.Dsn())
	assert.Equal(t, defaultStateTopic, conf.KafkaStateTopic)
}

func TestEnvOverridesTelegramSecrets(t *testing.T) {
	t.Setenv(envTelegramBotToken, "env-token")
	t.Setenv(envTelegramChatID, "env-chat")

	conf, err := Load("testdata/config.yml")
	require.NoError(t, err)
	assert.Equal(t, "env-token", conf.Telegram.BotToken)
	assert.Equal(t, "env-chat", conf.Telegram.ChatID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yml")
	assert.EqualError(t, err, "file testdata/nope.yml does not exist")
}
