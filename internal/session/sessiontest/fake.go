// Package sessiontest provides in-memory Provider and Signer fakes.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
)

// Provider is a session.Provider whose state is set by the test.
type Provider struct {
	InitCalls       atomic.Int64
	OpenModalCalls  atomic.Int64
	DisconnectCalls atomic.Int64

	InitErr       error
	OpenModalErr  error
	DisconnectErr error
	// InitGate, when not nil, blocks Init until closed.
	InitGate chan struct{}
	// OnOpenModal runs inside OpenModal, e.g. to approve a session.
	OnOpenModal func(p *Provider)

	mu        sync.Mutex
	signers   []ledger.Signer
	session   *session.Session
	observers map[session.Event]*session.Observers
}

func NewProvider() *Provider {
	return &Provider{observers: make(map[session.Event]*session.Observers)}
}

func (p *Provider) Init(ctx context.Context) error {
	p.InitCalls.Inc()
	if p.InitGate != nil {
		<-p.InitGate
	}
	return p.InitErr
}

func (p *Provider) OpenModal(ctx context.Context) error {
	p.OpenModalCalls.Inc()
	if p.OnOpenModal != nil {
		p.OnOpenModal(p)
	}
	return p.OpenModalErr
}

func (p *Provider) Signers() []ledger.Signer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ledger.Signer(nil), p.signers...)
}

func (p *Provider) ActiveSession() (*session.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.session != nil
}

func (p *Provider) DisconnectAll(ctx context.Context) error {
	p.DisconnectCalls.Inc()
	if p.DisconnectErr != nil {
		return p.DisconnectErr
	}
	p.mu.Lock()
	p.signers = nil
	p.session = nil
	p.mu.Unlock()
	return nil
}

func (p *Provider) Subscribe(event session.Event, fn func()) func() {
	return p.observersOf(event).Add(fn)
}

func (p *Provider) observersOf(event session.Event) *session.Observers {
	p.mu.Lock()
	defer p.mu.Unlock()
	obs, ok := p.observers[event]
	if !ok {
		obs = &session.Observers{}
		p.observers[event] = obs
	}
	return obs
}

// Emit fires a provider session event.
func (p *Provider) Emit(event session.Event) {
	p.observersOf(event).Notify()
}

// Listeners returns how many listeners are registered for event.
func (p *Provider) Listeners(event session.Event) int {
	return p.observersOf(event).Len()
}

func (p *Provider) SetSigners(signers ...ledger.Signer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signers = signers
}

func (p *Provider) SetSession(s *session.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
}

// Signer freezes with a fresh transaction id and records every call.
type Signer struct {
	Account ledger.AccountID

	FreezeErr  error
	ExecuteErr error
	// NoResult makes Execute return a nil response.
	NoResult bool

	mu       sync.Mutex
	frozen   []ledger.Transaction
	executed []ledger.Transaction
}

func NewSigner(account ledger.AccountID) *Signer {
	return &Signer{Account: account}
}

func (s *Signer) AccountID() ledger.AccountID {
	return s.Account
}

func (s *Signer) Freeze(ctx context.Context, tx ledger.Transaction) error {
	if s.FreezeErr != nil {
		return s.FreezeErr
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	id := ledger.NewTransactionID(s.Account, time.Now().UTC())
	if err := tx.Body().FreezeWith(id, []ledger.AccountID{{Num: 3}}); err != nil {
		return err
	}
	s.mu.Lock()
	s.frozen = append(s.frozen, tx)
	s.mu.Unlock()
	return nil
}

func (s *Signer) Execute(ctx context.Context, tx ledger.Transaction) (*ledger.TransactionResponse, error) {
	if s.ExecuteErr != nil {
		return nil, s.ExecuteErr
	}
	if !tx.Body().IsFrozen() {
		return nil, ledger.ErrTransactionNotFrozen
	}
	s.mu.Lock()
	s.executed = append(s.executed, tx)
	s.mu.Unlock()
	if s.NoResult {
		return nil, nil
	}
	return &ledger.TransactionResponse{
		TransactionID: *tx.Body().TransactionID,
		NodeID:        tx.Body().NodeAccountIDs[0],
	}, nil
}

func (s *Signer) Frozen() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Transaction(nil), s.frozen...)
}

func (s *Signer) Executed() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Transaction(nil), s.executed...)
}

// HashPackSession returns a session whose peer and namespace look like a
// HashPack pairing for account on mainnet.
func HashPackSession(account ledger.AccountID) *session.Session {
	return &session.Session{
		Topic: "topic-1",
		Peer: session.Peer{Metadata: session.Metadata{
			Name:        "HashPack",
			Description: "HashPack wallet",
			URL:         "https://www.hashpack.app",
		}},
		Namespaces: map[string]session.Namespace{
			session.HederaNamespace: {Accounts: []string{session.CAIP10Account("mainnet", account)}},
		},
	}
}
