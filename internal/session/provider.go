package session

import (
	"context"

	"moff.io/hedera-dapp/internal/ledger"
)

// Event is a provider side session lifecycle event.
type Event string

const (
	EventSessionUpdate Event = "session_update"
	EventSessionDelete Event = "session_delete"
)

// Provider is the wallet session provider the dApp talks to, e.g. a
// WalletConnect bridge client. Signers()[0] is treated as the active account.
type Provider interface {
	// Init prepares the provider; it is called at most once per Manager.
	Init(ctx context.Context) error
	// OpenModal presents the pairing UI and returns once the user chose
	// (or rejected) a wallet.
	OpenModal(ctx context.Context) error
	Signers() []ledger.Signer
	ActiveSession() (*Session, bool)
	DisconnectAll(ctx context.Context) error
	// Subscribe registers fn for event and returns its disposer.
	Subscribe(event Event, fn func()) (dispose func())
}

type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

type Peer struct {
	PublicKey string   `json:"publicKey,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

// Namespace lists the chain accounts (CAIP-10, e.g. hedera:mainnet:0.0.1234)
// and capabilities a session was approved for.
type Namespace struct {
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

type Session struct {
	Topic      string               `json:"topic"`
	Peer       Peer                 `json:"peer"`
	Namespaces map[string]Namespace `json:"namespaces"`
}

// WalletInfo describes the connected wallet from its session metadata.
type WalletInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

func walletInfoFrom(s *Session) *WalletInfo {
	return &WalletInfo{
		Name:        s.Peer.Metadata.Name,
		Description: s.Peer.Metadata.Description,
		URL:         s.Peer.Metadata.URL,
	}
}
