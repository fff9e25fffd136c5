package session

import (
	"regexp"
	"strconv"
	"strings"

	"moff.io/hedera-dapp/internal/ledger"
)

// HederaNamespace is the session namespace carrying hedera accounts.
const HederaNamespace = "hedera"

var looseAccountPattern = regexp.MustCompile(`0\.0\.\d+`)

// ExtractAccountID reads the account out of a namespace account entry.
// Entries are CAIP-10 (hedera:mainnet:0.0.1234); anything else falls back to
// the first 0.0.<num> found in the raw text.
func ExtractAccountID(entry string) (ledger.AccountID, bool) {
	parts := strings.Split(entry, ":")
	if id, err := ledger.AccountIDFromString(parts[len(parts)-1]); err == nil {
		return id, true
	}
	match := looseAccountPattern.FindString(entry)
	if match == "" {
		return ledger.AccountID{}, false
	}
	id, err := ledger.AccountIDFromString(match)
	if err != nil {
		return ledger.AccountID{}, false
	}
	return id, true
}

// ShortAccountID is the account number alone, the form the hashconnect
// state stores.
func ShortAccountID(id ledger.AccountID) string {
	return strconv.FormatInt(id.Num, 10)
}

// CAIP10Account formats id for a namespace on the given network.
func CAIP10Account(network string, id ledger.AccountID) string {
	return HederaNamespace + ":" + network + ":" + id.String()
}
