package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"moff.io/hedera-dapp/internal/aws"
	"moff.io/hedera-dapp/internal/cache"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/internal/database"
	"moff.io/hedera-dapp/internal/databus"
	"moff.io/hedera-dapp/internal/http"
	"moff.io/hedera-dapp/internal/relay"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/internal/starter"
	"moff.io/hedera-dapp/internal/state"
	"moff.io/hedera-dapp/internal/walletconnect"
	"moff.io/hedera-dapp/pkg/common"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

const (
	reportSilence   = time.Minute
	hashconnectKey  = "hedera_dapp:hashconnect"
	qrcodeKeyPrefix = "walletconnect/qrcode/"
)

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	conf := config.Global
	log.SetLevel(conf.LogLevel)

	if err := errors.NewSentryReporter(conf.SentryDSN); err != nil {
		log.Error(err)
	}
	errors.NewLarkReporter("hedera-dapp", conf.LarkAlarmWebhook, reportSilence)
	errors.NewDingTalkReporter(conf.DingTalk.Webhook, conf.DingTalk.Secret, reportSilence)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.Init(ctx, &conf.RedisCredential); err != nil {
		log.Fatal(err)
	}
	defer cache.Close()
	if err := database.InitPostgres(&conf.Postgres); err != nil {
		log.Fatal(err)
	}
	defer database.Close(ctx)
	var history http.TransactionHistory
	if database.Postgres != nil {
		history = database.NewTransactionHistory(database.Postgres)
	}
	if conf.Aws.Region != "" {
		if err := aws.Init(ctx, conf.Aws.Region, conf.Aws.QRCodeBucket, cache.Redis); err != nil {
			log.Fatal(err)
		}
	}

	// 状态分发：内存、redis、kafka
	memory := state.NewMemoryDispatcher()
	dispatchers := state.MultiDispatcher{memory}
	if cache.Redis != nil {
		dispatchers = append(dispatchers, state.NewRedisDispatcher(cache.Redis, hashconnectKey))
	}
	var onChange func(state.ConnectionState)
	if conf.KafkaServer != "" {
		bus, err := databus.InitDataBus(conf.KafkaServer)
		if err != nil {
			log.Fatal(err)
		}
		defer bus.Close()
		kafka := databus.NewDispatcher(bus, conf.KafkaStateTopic)
		dispatchers = append(dispatchers, kafka)
		onChange = kafka.OnConnectionChange
	}
	store := state.NewConnectionStore(onChange)

	provider, err := walletconnect.NewProvider(walletconnect.ConfigFrom(conf.WalletConnect),
		walletconnect.WithDisplayQRCode(displayQRCode))
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close()

	manager := session.NewManager(provider)
	unmount := session.NewSynchronizer(manager, store,
		session.WithDispatcher(dispatchers),
		session.WithRecognizedWallet(conf.WalletConnect.RecognizedWallet),
	).Mount(ctx)
	defer unmount()
	go manager.EnsureInitialized(ctx)

	var parameters relay.ParameterStore
	var consumer relay.QueueConsumer
	if aws.Client != nil {
		parameters = aws.Client
		consumer = aws.Client
	}
	relayService, err := relay.NewService(
		relay.SecretSourceFrom(conf.Telegram, parameters),
		conf.Telegram.APIURL,
		relay.WithRatePerSecond(conf.Telegram.RatePerSecond),
		relay.WithRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		log.Fatal(err)
	}

	server := http.NewServer(http.Dependencies{
		Sessions:    manager,
		Store:       store,
		Hashconnect: memory,
		Pairing:     provider,
		History:     history,
		Relay:       relayService,
		RateLimiter: cache.RateLimiter,
		Gatherer:    prometheus.DefaultGatherer,
	})
	if err := starter.Start(ctx, conf, server, relay.NewWorker(relayService, consumer)); err != nil {
		log.Error(errors.WrapAndReport(err, "hedera dapp stopped"))
	}
	log.Info("App stopped.")
}

// displayQRCode uploads the pairing QR code to the public bucket when one is
// configured, otherwise the pairing uri is only logged.
func displayQRCode(uri string, png []byte) error {
	log.Infof("WalletConnect pairing uri: %s", uri)
	if aws.Client == nil || !aws.Client.HasBucket() {
		return nil
	}
	key := qrcodeKeyPrefix + common.NewCutUUIDString() + ".png"
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := aws.Client.PutFileToS3WithPublicRead(ctx, key, "image/png", bytes.NewReader(png)); err != nil {
		return err
	}
	log.Infof("Scan the pairing QR code at %s", aws.Client.PublicS3AccessURLFrom(key))
	return nil
}
