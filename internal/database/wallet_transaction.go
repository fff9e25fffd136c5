package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

type TransactionStatus string

const (
	TransactionSubmitted TransactionStatus = "submitted"
	// TransactionNoResult 钱包没有返回执行结果
	TransactionNoResult TransactionStatus = "no_result"
	TransactionFailed   TransactionStatus = "failed"
)

// WalletTransaction is one wallet operation sent to the connected signer.
type WalletTransaction struct {
	ID            int64             `gorm:"primaryKey" json:"-"`
	TransactionID *string           `gorm:"type:varchar(100);uniqueIndex" json:"transaction_id"`
	Operation     string            `gorm:"type:varchar(50)" json:"operation"`
	AccountID     string            `gorm:"type:varchar(50);index" json:"account_id"`
	Status        TransactionStatus `gorm:"type:varchar(20)" json:"status"`
	Error         *string           `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     int64             `gorm:"type:int8;index" json:"created_at"`
}

type TransactionHistory struct {
	db *gorm.DB
}

func NewTransactionHistory(db *gorm.DB) *TransactionHistory {
	return &TransactionHistory{db: db}
}

// Record stores in. A transaction id that was already recorded is ignored.
func (h *TransactionHistory) Record(ctx context.Context, in *WalletTransaction) error {
	if in.CreatedAt == 0 {
		in.CreatedAt = time.Now().UnixMilli()
	}
	err := h.db.WithContext(ctx).Create(in).Error
	if IsDuplicateKeyErr(err) {
		log.Warnf("wallet transaction %s already recorded", *in.TransactionID)
		return nil
	}
	return errors.WrapAndReport(err, "create wallet transaction")
}

// SelectLatest returns the newest top records of accountID, newest first.
func (h *TransactionHistory) SelectLatest(ctx context.Context, accountID string, top int) ([]*WalletTransaction, error) {
	var entities []*WalletTransaction
	err := h.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at desc").Order("id desc").Limit(top).Find(&entities).Error
	if err != nil {
		return nil, errors.WrapAndReport(err, "query wallet transactions")
	}
	return entities, nil
}
