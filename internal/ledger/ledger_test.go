package ledger

import (
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/hedera-dapp/pkg/errors"
)

func TestAccountIDFromString(t *testing.T) {
	id, err := AccountIDFromString("0.0.12345")
	require.NoError(t, err)
	assert.Equal(t, AccountID{Num: 12345}, id)
	assert.Equal(t, "0.0.12345", id.String())

	for _, bad := range []string{"", "0.0", "0.0.x", "0.0.-1", "1.2.3.4"} {
		_, err := AccountIDFromString(bad)
		assert.True(t, errors.Is(err, ErrInvalidEntityID), bad)
	}
}

func TestToSolidityAddress(t *testing.T) {
	id := AccountID{Shard: 0, Realm: 0, Num: 1234}
	assert.Equal(t, "00000000000000000000000000000000000004d2", id.ToSolidityAddress())
}

func TestTransactionIDRoundTrip(t *testing.T) {
	start := time.Unix(1700000000, 1).UTC()
	id := NewTransactionID(AccountID{Num: 7}, start)
	assert.Equal(t, "0.0.7@1700000000.000000001", id.String())

	parsed, err := TransactionIDFromString(id.String())
	require.NoError(t, err)
	assert.Equal(t, id.AccountID, parsed.AccountID)
	assert.True(t, start.Equal(parsed.ValidStart))

	_, err = TransactionIDFromString("0.0.7")
	assert.Error(t, err)
	_, err = TransactionIDFromString("0.0.7@17.x")
	assert.Error(t, err)
}

func TestHbar(t *testing.T) {
	assert.Equal(t, Hbar(100_000_000), HbarFrom(1))
	assert.Equal(t, Hbar(29_000_000), HbarFrom(0.29))
	assert.Equal(t, "1.5 ℏ", HbarFrom(1.5).String())
}

func TestTransferTransactionValidate(t *testing.T) {
	from, to := AccountID{Num: 1}, AccountID{Num: 2}
	token := TokenID{Num: 99}

	tx := NewTransferTransaction().
		AddHbarTransfer(from, -10).
		AddHbarTransfer(to, 10).
		AddTokenTransfer(token, from, -3).
		AddTokenTransfer(token, to, 3).
		AddNftTransfer(token, 4, from, to)
	assert.NoError(t, tx.Validate())
	assert.Equal(t, KindCryptoTransfer, tx.Kind())

	unbalanced := NewTransferTransaction().AddHbarTransfer(from, -10).AddHbarTransfer(to, 9)
	assert.True(t, errors.Is(unbalanced.Validate(), ErrUnbalancedTransfer))

	assert.Error(t, NewTransferTransaction().Validate())
}

func TestFreezeWith(t *testing.T) {
	tx := NewTokenAssociateTransaction().SetAccountID(AccountID{Num: 1}).SetTokenIDs(TokenID{Num: 5})
	require.NoError(t, tx.Validate())

	id := NewTransactionID(AccountID{Num: 1}, time.Now())
	require.NoError(t, tx.Body().FreezeWith(id, []AccountID{{Num: 3}}))
	assert.True(t, tx.Body().IsFrozen())
	assert.Equal(t, []AccountID{{Num: 3}}, tx.NodeAccountIDs)
	assert.True(t, errors.Is(tx.Body().FreezeWith(id, nil), ErrTransactionFrozen))

	assert.Panics(t, func() { tx.SetTokenIDs(TokenID{Num: 6}) })
}

func TestContractFunctionParameters(t *testing.T) {
	params := NewContractFunctionParameters().
		AddAddress("0x00000000000000000000000000000000000004d2").
		AddUint256(big.NewInt(1000))

	assert.Equal(t, "transfer(address,uint256)", params.Signature("transfer"))
	assert.Equal(t, "a9059cbb", hex.EncodeToString(params.Selector("transfer")))

	data, err := params.Build("transfer")
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, big.NewInt(1234), new(big.Int).SetBytes(data[4:36]))
	assert.Equal(t, big.NewInt(1000), new(big.Int).SetBytes(data[36:68]))

	_, err = params.Build("")
	assert.Error(t, err)
}

func TestContractExecuteSetFunction(t *testing.T) {
	tx := NewContractExecuteTransaction().SetContractID(ContractID{Num: 10}).SetGas(100_000)
	require.NoError(t, tx.SetFunction("ping", nil))
	assert.Len(t, tx.FunctionParameters, 4)
	assert.NoError(t, tx.Validate())

	mixed := NewContractFunctionParameters().AddString("hi").AddBool(true).AddInt64(-1).AddAccountAddress(AccountID{Num: 2})
	require.NoError(t, tx.SetFunction("setGreeting", mixed))
	assert.Equal(t, 4, mixed.Len())
	assert.Greater(t, len(tx.FunctionParameters), 4+32*4)
}
