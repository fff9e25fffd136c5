package state

import (
	"sync"

	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

// ErrNoAccount is returned when marking the connection up without an account.
var ErrNoAccount = errors.New("connected state requires an account id")

// ConnectionState is what consumers read to render the wallet connection.
// IsConnected implies AccountID is not empty.
type ConnectionState struct {
	AccountID   string `json:"account_id"`
	IsConnected bool   `json:"is_connected"`
}

// ConnectionStore is the sink the synchronizer writes into.
type ConnectionStore interface {
	SetAccountID(accountID string)
	SetIsConnected(connected bool) error
	Snapshot() ConnectionState
}

// Dispatcher receives the hashconnect actions for recognized wallets.
type Dispatcher interface {
	SetAccountIDs(ids []string) error
	SetIsConnected(connected bool) error
	SetPairingString(pairing string) error
}

type memoryConnectionStore struct {
	mu    sync.RWMutex
	state ConnectionState
	// 状态变化时通知
	onChange func(ConnectionState)
}

// NewConnectionStore returns an in-memory store. onChange, when not nil, is
// called after every accepted mutation with the new snapshot.
func NewConnectionStore(onChange func(ConnectionState)) ConnectionStore {
	return &memoryConnectionStore{onChange: onChange}
}

func (s *memoryConnectionStore) SetAccountID(accountID string) {
	s.mu.Lock()
	s.state.AccountID = accountID
	if accountID == "" {
		s.state.IsConnected = false
	}
	snapshot := s.state
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *memoryConnectionStore) SetIsConnected(connected bool) error {
	s.mu.Lock()
	if connected && s.state.AccountID == "" {
		s.mu.Unlock()
		log.Warn("reject connected state without account id")
		return ErrNoAccount
	}
	s.state.IsConnected = connected
	snapshot := s.state
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

func (s *memoryConnectionStore) Snapshot() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *memoryConnectionStore) notify(snapshot ConnectionState) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

// HashconnectState mirrors the three dispatched fields.
type HashconnectState struct {
	AccountIDs    []string `json:"account_ids"`
	IsConnected   bool     `json:"is_connected"`
	PairingString string   `json:"pairing_string"`
}

// MemoryDispatcher keeps the dispatched state in process.
type MemoryDispatcher struct {
	mu    sync.RWMutex
	state HashconnectState
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) SetAccountIDs(ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.AccountIDs = append([]string(nil), ids...)
	return nil
}

func (d *MemoryDispatcher) SetIsConnected(connected bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.IsConnected = connected
	return nil
}

func (d *MemoryDispatcher) SetPairingString(pairing string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.PairingString = pairing
	return nil
}

func (d *MemoryDispatcher) State() HashconnectState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := d.state
	out.AccountIDs = append([]string(nil), d.state.AccountIDs...)
	return out
}

// MultiDispatcher fans every action out to all dispatchers and returns the
// first error after trying them all.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) each(fn func(Dispatcher) error) error {
	var first error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := fn(d); err != nil {
			log.Error(err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (m MultiDispatcher) SetAccountIDs(ids []string) error {
	return m.each(func(d Dispatcher) error { return d.SetAccountIDs(ids) })
}

func (m MultiDispatcher) SetIsConnected(connected bool) error {
	return m.each(func(d Dispatcher) error { return d.SetIsConnected(connected) })
}

func (m MultiDispatcher) SetPairingString(pairing string) error {
	return m.each(func(d Dispatcher) error { return d.SetPairingString(pairing) })
}
