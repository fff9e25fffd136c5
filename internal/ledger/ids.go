package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"moff.io/hedera-dapp/pkg/errors"
)

// ErrInvalidEntityID is returned for ids not in shard.realm.num form.
var ErrInvalidEntityID = errors.New("invalid entity id")

func parseEntity(s string) (shard, realm, num int64, err error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Wrapf(ErrInvalidEntityID, "%q", s)
	}
	var out [3]int64
	for i, p := range parts {
		v, perr := strconv.ParseInt(p, 10, 64)
		if perr != nil || v < 0 {
			return 0, 0, 0, errors.Wrapf(ErrInvalidEntityID, "%q", s)
		}
		out[i] = v
	}
	return out[0], out[1], out[2], nil
}

func formatEntity(shard, realm, num int64) string {
	return fmt.Sprintf("%d.%d.%d", shard, realm, num)
}

// solidityAddress encodes an entity as the 20 byte long-zero address:
// 4 bytes shard, 8 bytes realm, 8 bytes num.
func solidityAddress(shard, realm, num int64) [20]byte {
	var addr [20]byte
	binary.BigEndian.PutUint32(addr[0:4], uint32(shard))
	binary.BigEndian.PutUint64(addr[4:12], uint64(realm))
	binary.BigEndian.PutUint64(addr[12:20], uint64(num))
	return addr
}

// AccountID identifies a ledger account as shard.realm.num.
type AccountID struct {
	Shard int64 `json:"shard"`
	Realm int64 `json:"realm"`
	Num   int64 `json:"num"`
}

func AccountIDFromString(s string) (AccountID, error) {
	shard, realm, num, err := parseEntity(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{Shard: shard, Realm: realm, Num: num}, nil
}

func (id AccountID) String() string {
	return formatEntity(id.Shard, id.Realm, id.Num)
}

// IsZero reports whether the id is the zero value 0.0.0.
func (id AccountID) IsZero() bool {
	return id == AccountID{}
}

// ToSolidityAddress returns the hex (no 0x prefix) long-zero address.
func (id AccountID) ToSolidityAddress() string {
	addr := solidityAddress(id.Shard, id.Realm, id.Num)
	return hex.EncodeToString(addr[:])
}

type TokenID struct {
	Shard int64 `json:"shard"`
	Realm int64 `json:"realm"`
	Num   int64 `json:"num"`
}

func TokenIDFromString(s string) (TokenID, error) {
	shard, realm, num, err := parseEntity(s)
	if err != nil {
		return TokenID{}, err
	}
	return TokenID{Shard: shard, Realm: realm, Num: num}, nil
}

func (id TokenID) String() string {
	return formatEntity(id.Shard, id.Realm, id.Num)
}

type ContractID struct {
	Shard int64 `json:"shard"`
	Realm int64 `json:"realm"`
	Num   int64 `json:"num"`
}

func ContractIDFromString(s string) (ContractID, error) {
	shard, realm, num, err := parseEntity(s)
	if err != nil {
		return ContractID{}, err
	}
	return ContractID{Shard: shard, Realm: realm, Num: num}, nil
}

func (id ContractID) String() string {
	return formatEntity(id.Shard, id.Realm, id.Num)
}

// TransactionID is the payer account plus the valid start timestamp,
// rendered as 0.0.1234@1700000000.000000001.
type TransactionID struct {
	AccountID  AccountID `json:"account_id"`
	ValidStart time.Time `json:"valid_start"`
}

func NewTransactionID(payer AccountID, validStart time.Time) TransactionID {
	return TransactionID{AccountID: payer, ValidStart: validStart}
}

func (id TransactionID) String() string {
	return fmt.Sprintf("%s@%d.%09d", id.AccountID, id.ValidStart.Unix(), id.ValidStart.Nanosecond())
}

func TransactionIDFromString(s string) (TransactionID, error) {
	at := strings.Index(s, "@")
	if at < 0 {
		return TransactionID{}, errors.Errorf("invalid transaction id %q", s)
	}
	account, err := AccountIDFromString(s[:at])
	if err != nil {
		return TransactionID{}, err
	}
	ts := strings.SplitN(s[at+1:], ".", 2)
	if len(ts) != 2 {
		return TransactionID{}, errors.Errorf("invalid transaction id %q", s)
	}
	sec, err := strconv.ParseInt(ts[0], 10, 64)
	if err != nil {
		return TransactionID{}, errors.Errorf("invalid transaction id %q", s)
	}
	nanos, err := strconv.ParseInt(ts[1], 10, 64)
	if err != nil || nanos < 0 || nanos >= int64(time.Second) {
		return TransactionID{}, errors.Errorf("invalid transaction id %q", s)
	}
	return TransactionID{AccountID: account, ValidStart: time.Unix(sec, nanos).UTC()}, nil
}

// Hbar is an amount in tinybars.
type Hbar int64

const TinybarsPerHbar Hbar = 100_000_000

// HbarFrom converts a whole/fractional hbar amount to tinybars.
func HbarFrom(hbars float64) Hbar {
	return Hbar(math.Round(hbars * float64(TinybarsPerHbar)))
}

func (h Hbar) Tinybars() int64 {
	return int64(h)
}

func (h Hbar) String() string {
	return strconv.FormatFloat(float64(h)/float64(TinybarsPerHbar), 'f', -1, 64) + " ℏ"
}
