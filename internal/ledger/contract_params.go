package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"moff.io/hedera-dapp/pkg/errors"
)

type contractParam struct {
	solType string
	value   interface{}
}

// ContractFunctionParameters collects ordered solidity arguments and
// encodes them as ABI call data behind the 4 byte function selector.
type ContractFunctionParameters struct {
	params []contractParam
}

func NewContractFunctionParameters() *ContractFunctionParameters {
	return &ContractFunctionParameters{}
}

func (p *ContractFunctionParameters) add(solType string, value interface{}) *ContractFunctionParameters {
	p.params = append(p.params, contractParam{solType: solType, value: value})
	return p
}

func (p *ContractFunctionParameters) AddString(v string) *ContractFunctionParameters {
	return p.add("string", v)
}

func (p *ContractFunctionParameters) AddBool(v bool) *ContractFunctionParameters {
	return p.add("bool", v)
}

func (p *ContractFunctionParameters) AddUint8(v uint8) *ContractFunctionParameters {
	return p.add("uint8", v)
}

func (p *ContractFunctionParameters) AddUint32(v uint32) *ContractFunctionParameters {
	return p.add("uint32", v)
}

func (p *ContractFunctionParameters) AddUint64(v uint64) *ContractFunctionParameters {
	return p.add("uint64", v)
}

func (p *ContractFunctionParameters) AddInt64(v int64) *ContractFunctionParameters {
	return p.add("int64", v)
}

func (p *ContractFunctionParameters) AddUint256(v *big.Int) *ContractFunctionParameters {
	return p.add("uint256", new(big.Int).Set(v))
}

func (p *ContractFunctionParameters) AddInt256(v *big.Int) *ContractFunctionParameters {
	return p.add("int256", new(big.Int).Set(v))
}

func (p *ContractFunctionParameters) AddBytes(v []byte) *ContractFunctionParameters {
	return p.add("bytes", append([]byte(nil), v...))
}

func (p *ContractFunctionParameters) AddBytes32(v [32]byte) *ContractFunctionParameters {
	return p.add("bytes32", v)
}

// AddAddress accepts a hex EVM address with or without 0x.
func (p *ContractFunctionParameters) AddAddress(hexAddr string) *ContractFunctionParameters {
	return p.add("address", common.HexToAddress(hexAddr))
}

// AddAccountAddress adds the long-zero address of a ledger account.
func (p *ContractFunctionParameters) AddAccountAddress(id AccountID) *ContractFunctionParameters {
	return p.AddAddress(id.ToSolidityAddress())
}

func (p *ContractFunctionParameters) AddAddressArray(hexAddrs []string) *ContractFunctionParameters {
	addrs := make([]common.Address, 0, len(hexAddrs))
	for _, a := range hexAddrs {
		addrs = append(addrs, common.HexToAddress(a))
	}
	return p.add("address[]", addrs)
}

// Len returns the number of collected arguments.
func (p *ContractFunctionParameters) Len() int {
	return len(p.params)
}

// Signature returns the canonical name(type,...) string.
func (p *ContractFunctionParameters) Signature(name string) string {
	types := make([]string, 0, len(p.params))
	for _, param := range p.params {
		types = append(types, param.solType)
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// Selector returns the first 4 bytes of keccak256 of the signature.
func (p *ContractFunctionParameters) Selector(name string) []byte {
	return crypto.Keccak256([]byte(p.Signature(name)))[:4]
}

// Build returns selector ++ abi.encode(args).
func (p *ContractFunctionParameters) Build(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("empty contract function name")
	}
	args := make(abi.Arguments, 0, len(p.params))
	values := make([]interface{}, 0, len(p.params))
	for _, param := range p.params {
		t, err := abi.NewType(param.solType, "", nil)
		if err != nil {
			return nil, errors.Wrapf(err, "abi type %s", param.solType)
		}
		args = append(args, abi.Argument{Type: t})
		values = append(values, param.value)
	}
	encoded, err := args.Pack(values...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack arguments of %s", p.Signature(name))
	}
	return append(p.Selector(name), encoded...), nil
}
