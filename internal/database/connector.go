package database

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

var Postgres *gorm.DB

// InitPostgres connects and migrates the postgres database. An empty
// address leaves Postgres nil and transaction history disabled.
func InitPostgres(conf *config.DBCredential) error {
	if conf.Address == "" {
		log.Warn("postgres address not configured, transaction history disabled")
		return nil
	}
	cli, err := Open(postgres.Open(conf.Dsn()))
	if err != nil {
		return err
	}
	Postgres = cli
	log.Info("Connected to postgres...")
	return nil
}

// Open connects through dialector, pings and migrates the tables.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	cli, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to db")
	}
	db, err := cli.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get db conn")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping to db")
	}
	if err := cli.AutoMigrate(&WalletTransaction{}); err != nil {
		return nil, errors.Wrap(err, "autoMigrate tables")
	}
	return cli, nil
}

func Close(ctx context.Context) {
	if Postgres == nil {
		return
	}
	db, err := Postgres.DB()
	if err != nil {
		log.Error(err)
		return
	}
	if err := db.Close(); err != nil {
		log.Error(errors.Wrap(err, "close postgres"))
	}
	Postgres = nil
}
