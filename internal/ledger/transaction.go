package ledger

import (
	"context"

	"moff.io/hedera-dapp/pkg/errors"
)

const (
	KindCryptoTransfer  = "cryptoTransfer"
	KindTokenAssociate  = "tokenAssociate"
	KindContractExecute = "contractCall"
)

var (
	ErrTransactionFrozen    = errors.New("transaction is frozen")
	ErrTransactionNotFrozen = errors.New("transaction is not frozen")
	ErrUnbalancedTransfer   = errors.New("transfers do not sum to zero")
)

// Transaction is one ledger transaction body a Signer can freeze and execute.
type Transaction interface {
	Kind() string
	Body() *TransactionBody
	Validate() error
}

// Signer is the capability of one authorized account in a wallet session.
// Freeze assigns the transaction id and node accounts; Execute submits the
// frozen transaction and returns nil when the wallet produced no result.
type Signer interface {
	AccountID() AccountID
	Freeze(ctx context.Context, tx Transaction) error
	Execute(ctx context.Context, tx Transaction) (*TransactionResponse, error)
}

type TransactionResponse struct {
	TransactionID TransactionID `json:"transaction_id"`
	NodeID        AccountID     `json:"node_id"`
	Hash          []byte        `json:"hash,omitempty"`
}

// TransactionBody holds the fields common to every transaction kind.
type TransactionBody struct {
	TransactionID     *TransactionID `json:"transaction_id,omitempty"`
	NodeAccountIDs    []AccountID    `json:"node_account_ids,omitempty"`
	MaxTransactionFee Hbar           `json:"max_transaction_fee,omitempty"`
	Memo              string         `json:"memo,omitempty"`

	frozen bool
}

func (b *TransactionBody) Body() *TransactionBody {
	return b
}

func (b *TransactionBody) IsFrozen() bool {
	return b.frozen
}

// FreezeWith locks the body with the given id and node accounts. Signers
// call it once; freezing twice fails.
func (b *TransactionBody) FreezeWith(id TransactionID, nodes []AccountID) error {
	if b.frozen {
		return ErrTransactionFrozen
	}
	b.TransactionID = &id
	b.NodeAccountIDs = append([]AccountID(nil), nodes...)
	b.frozen = true
	return nil
}

func (b *TransactionBody) checkMutable() {
	if b.frozen {
		panic(ErrTransactionFrozen)
	}
}

type HbarTransfer struct {
	AccountID AccountID `json:"account_id"`
	Amount    Hbar      `json:"amount"`
}

type TokenTransfer struct {
	TokenID   TokenID   `json:"token_id"`
	AccountID AccountID `json:"account_id"`
	Amount    int64     `json:"amount"`
}

type NftTransfer struct {
	TokenID  TokenID   `json:"token_id"`
	Serial   int64     `json:"serial"`
	Sender   AccountID `json:"sender"`
	Receiver AccountID `json:"receiver"`
}

// TransferTransaction moves hbar, fungible tokens and NFTs in one body.
// Builder methods panic once the body is frozen.
type TransferTransaction struct {
	TransactionBody
	HbarTransfers  []HbarTransfer  `json:"hbar_transfers,omitempty"`
	TokenTransfers []TokenTransfer `json:"token_transfers,omitempty"`
	NftTransfers   []NftTransfer   `json:"nft_transfers,omitempty"`
}

func NewTransferTransaction() *TransferTransaction {
	return &TransferTransaction{}
}

func (tx *TransferTransaction) Kind() string { return KindCryptoTransfer }

func (tx *TransferTransaction) AddHbarTransfer(account AccountID, amount Hbar) *TransferTransaction {
	tx.checkMutable()
	tx.HbarTransfers = append(tx.HbarTransfers, HbarTransfer{AccountID: account, Amount: amount})
	return tx
}

func (tx *TransferTransaction) AddTokenTransfer(token TokenID, account AccountID, amount int64) *TransferTransaction {
	tx.checkMutable()
	tx.TokenTransfers = append(tx.TokenTransfers, TokenTransfer{TokenID: token, AccountID: account, Amount: amount})
	return tx
}

func (tx *TransferTransaction) AddNftTransfer(token TokenID, serial int64, sender, receiver AccountID) *TransferTransaction {
	tx.checkMutable()
	tx.NftTransfers = append(tx.NftTransfers, NftTransfer{TokenID: token, Serial: serial, Sender: sender, Receiver: receiver})
	return tx
}

// Validate checks hbar and per-token debits equal credits.
func (tx *TransferTransaction) Validate() error {
	if len(tx.HbarTransfers) == 0 && len(tx.TokenTransfers) == 0 && len(tx.NftTransfers) == 0 {
		return errors.New("empty transfer transaction")
	}
	var sum Hbar
	for _, t := range tx.HbarTransfers {
		sum += t.Amount
	}
	if sum != 0 {
		return errors.Wrapf(ErrUnbalancedTransfer, "hbar off by %d tinybars", sum)
	}
	tokens := make(map[TokenID]int64)
	for _, t := range tx.TokenTransfers {
		tokens[t.TokenID] += t.Amount
	}
	for id, s := range tokens {
		if s != 0 {
			return errors.Wrapf(ErrUnbalancedTransfer, "token %s off by %d", id, s)
		}
	}
	for _, n := range tx.NftTransfers {
		if n.Sender == n.Receiver {
			return errors.Errorf("nft %s/%d sender equals receiver", n.TokenID, n.Serial)
		}
	}
	return nil
}

type TokenAssociateTransaction struct {
	TransactionBody
	AccountID AccountID `json:"account_id"`
	TokenIDs  []TokenID `json:"token_ids"`
}

func NewTokenAssociateTransaction() *TokenAssociateTransaction {
	return &TokenAssociateTransaction{}
}

func (tx *TokenAssociateTransaction) Kind() string { return KindTokenAssociate }

func (tx *TokenAssociateTransaction) SetAccountID(id AccountID) *TokenAssociateTransaction {
	tx.checkMutable()
	tx.AccountID = id
	return tx
}

func (tx *TokenAssociateTransaction) SetTokenIDs(ids ...TokenID) *TokenAssociateTransaction {
	tx.checkMutable()
	tx.TokenIDs = append([]TokenID(nil), ids...)
	return tx
}

func (tx *TokenAssociateTransaction) Validate() error {
	if tx.AccountID.IsZero() {
		return errors.New("token associate without account")
	}
	if len(tx.TokenIDs) == 0 {
		return errors.New("token associate without tokens")
	}
	return nil
}

type ContractExecuteTransaction struct {
	TransactionBody
	ContractID         ContractID `json:"contract_id"`
	Gas                uint64     `json:"gas"`
	FunctionParameters []byte     `json:"function_parameters,omitempty"`
}

func NewContractExecuteTransaction() *ContractExecuteTransaction {
	return &ContractExecuteTransaction{}
}

func (tx *ContractExecuteTransaction) Kind() string { return KindContractExecute }

func (tx *ContractExecuteTransaction) SetContractID(id ContractID) *ContractExecuteTransaction {
	tx.checkMutable()
	tx.ContractID = id
	return tx
}

func (tx *ContractExecuteTransaction) SetGas(gas uint64) *ContractExecuteTransaction {
	tx.checkMutable()
	tx.Gas = gas
	return tx
}

// SetFunction encodes name and params into call data. A nil params builder
// encodes a call without arguments.
func (tx *ContractExecuteTransaction) SetFunction(name string, params *ContractFunctionParameters) error {
	tx.checkMutable()
	if params == nil {
		params = NewContractFunctionParameters()
	}
	data, err := params.Build(name)
	if err != nil {
		return err
	}
	tx.FunctionParameters = data
	return nil
}

func (tx *ContractExecuteTransaction) Validate() error {
	if tx.Gas == 0 {
		return errors.New("contract call without gas")
	}
	if len(tx.FunctionParameters) < 4 {
		return errors.New("contract call without function selector")
	}
	return nil
}
