package walletconnect

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/pkg/errors"
)

// validStartOffset backdates the transaction id so small clock drift
// between the dApp and the consensus nodes does not invalidate it.
const validStartOffset = 10 * time.Second

// bridgeSigner signs through the paired wallet for one session account.
type bridgeSigner struct {
	provider *Provider
	account  ledger.AccountID
}

func (s *bridgeSigner) AccountID() ledger.AccountID {
	return s.account
}

func (s *bridgeSigner) Freeze(ctx context.Context, tx ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	id := ledger.NewTransactionID(s.account, time.Now().UTC().Add(-validStartOffset))
	return tx.Body().FreezeWith(id, s.provider.cfg.NodeAccountIDs)
}

// Execute asks the wallet to sign and submit the frozen transaction.
// A null result from the wallet yields a nil response.
func (s *bridgeSigner) Execute(ctx context.Context, tx ledger.Transaction) (*ledger.TransactionResponse, error) {
	body := tx.Body()
	if !body.IsFrozen() {
		return nil, ledger.ErrTransactionNotFrozen
	}
	envelope, err := json.Marshal(transactionEnvelope{Kind: tx.Kind(), Transaction: tx})
	if err != nil {
		return nil, errors.Wrap(err, "marshal transaction")
	}
	resp, err := s.provider.request(ctx, methodSignAndExecuteTransaction, transactionRequest{
		SignerAccountID: session.CAIP10Account(s.provider.cfg.Network, s.account),
		TransactionList: base64.StdEncoding.EncodeToString(envelope),
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	result := gjson.ParseBytes(resp.Result)
	if !result.Exists() || result.Type == gjson.Null {
		return nil, nil
	}
	out := &ledger.TransactionResponse{TransactionID: *body.TransactionID}
	if v := result.Get("transactionId"); v.Exists() {
		id, err := ledger.TransactionIDFromString(v.String())
		if err != nil {
			return nil, err
		}
		out.TransactionID = id
	}
	if len(body.NodeAccountIDs) > 0 {
		out.NodeID = body.NodeAccountIDs[0]
	}
	if v := result.Get("nodeId"); v.Exists() {
		node, err := ledger.AccountIDFromString(v.String())
		if err != nil {
			return nil, err
		}
		out.NodeID = node
	}
	if v := result.Get("transactionHash"); v.Exists() {
		hash, err := hex.DecodeString(v.String())
		if err != nil {
			return nil, errors.Wrap(err, "decode transaction hash")
		}
		out.Hash = hash
	}
	return out, nil
}
