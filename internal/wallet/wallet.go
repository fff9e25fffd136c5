package wallet

import (
	"context"

	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/pkg/errors"
)

// ErrNoSigner is returned before any transaction is built when the
// provider exposes no signer.
var ErrNoSigner = errors.New("no signers found")

// Wallet runs ledger operations through the current session signer.
// Each call borrows the signer, builds one transaction, freezes and executes
// it, and returns the transaction id, or nil when the wallet returned no result.
type Wallet struct {
	sessions *session.Manager
}

func New(sessions *session.Manager) *Wallet {
	return &Wallet{sessions: sessions}
}

func (w *Wallet) signer() (ledger.Signer, error) {
	signer, ok := w.sessions.Signer()
	if !ok {
		return nil, ErrNoSigner
	}
	return signer, nil
}

func (w *Wallet) freezeAndExecute(ctx context.Context, signer ledger.Signer, tx ledger.Transaction) (*ledger.TransactionID, error) {
	if err := signer.Freeze(ctx, tx); err != nil {
		return nil, err
	}
	resp, err := signer.Execute(ctx, tx)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	id := resp.TransactionID
	return &id, nil
}

// TransferHBAR debits the signer's account and credits to by amount.
func (w *Wallet) TransferHBAR(ctx context.Context, to ledger.AccountID, amount ledger.Hbar) (*ledger.TransactionID, error) {
	signer, err := w.signer()
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTransferTransaction().
		AddHbarTransfer(signer.AccountID(), -amount).
		AddHbarTransfer(to, amount)
	return w.freezeAndExecute(ctx, signer, tx)
}

func (w *Wallet) TransferFungibleToken(ctx context.Context, to ledger.AccountID, token ledger.TokenID, amount int64) (*ledger.TransactionID, error) {
	signer, err := w.signer()
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTransferTransaction().
		AddTokenTransfer(token, signer.AccountID(), -amount).
		AddTokenTransfer(token, to, amount)
	return w.freezeAndExecute(ctx, signer, tx)
}

func (w *Wallet) TransferNonFungibleToken(ctx context.Context, to ledger.AccountID, token ledger.TokenID, serial int64) (*ledger.TransactionID, error) {
	signer, err := w.signer()
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTransferTransaction().
		AddNftTransfer(token, serial, signer.AccountID(), to)
	return w.freezeAndExecute(ctx, signer, tx)
}

func (w *Wallet) AssociateToken(ctx context.Context, token ledger.TokenID) (*ledger.TransactionID, error) {
	signer, err := w.signer()
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTokenAssociateTransaction().
		SetAccountID(signer.AccountID()).
		SetTokenIDs(token)
	return w.freezeAndExecute(ctx, signer, tx)
}

// ExecuteContractFunction calls functionName on the contract. Reading the
// call result requires querying a mirror node with the returned id.
func (w *Wallet) ExecuteContractFunction(ctx context.Context, contract ledger.ContractID, functionName string, params *ledger.ContractFunctionParameters, gas uint64) (*ledger.TransactionID, error) {
	signer, err := w.signer()
	if err != nil {
		return nil, err
	}
	tx := ledger.NewContractExecuteTransaction().
		SetContractID(contract).
		SetGas(gas)
	if err := tx.SetFunction(functionName, params); err != nil {
		return nil, err
	}
	return w.freezeAndExecute(ctx, signer, tx)
}

// Disconnect ends every wallet session; failures are logged only.
func (w *Wallet) Disconnect(ctx context.Context) {
	w.sessions.Disconnect(ctx)
}

func (w *Wallet) WalletInfo() *session.WalletInfo {
	return w.sessions.WalletInfo()
}
