package session

import (
	"context"
	"sync"

	"moff.io/hedera-dapp/internal/state"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

const defaultRecognizedWallet = "HashPack"

// Reloader resets the consumer after a recognized wallet pairing was
// propagated to the hashconnect state.
type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloaderFunc func(ctx context.Context) error

func (f ReloaderFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

type SynchronizerOption func(*Synchronizer)

func WithDispatcher(d state.Dispatcher) SynchronizerOption {
	return func(s *Synchronizer) {
		s.dispatcher = d
	}
}

func WithReloader(r Reloader) SynchronizerOption {
	return func(s *Synchronizer) {
		s.reloader = r
	}
}

// WithRecognizedWallet sets the peer name whose account is propagated to
// the dispatcher; empty keeps the default.
func WithRecognizedWallet(name string) SynchronizerOption {
	return func(s *Synchronizer) {
		if name != "" {
			s.recognizedWallet = name
		}
	}
}

// Synchronizer reconciles the provider's signer and session into the
// connection store. Overlapping syncs are not serialized; the last write wins.
type Synchronizer struct {
	manager          *Manager
	store            state.ConnectionStore
	dispatcher       state.Dispatcher
	reloader         Reloader
	recognizedWallet string
}

func NewSynchronizer(manager *Manager, store state.ConnectionStore, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		manager:          manager,
		store:            store,
		recognizedWallet: defaultRecognizedWallet,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount subscribes to the sync signal and the provider's session update and
// delete events. The returned disposer removes all three; calling it more
// than once is a no-op.
func (s *Synchronizer) Mount(ctx context.Context) (unmount func()) {
	provider := s.manager.Provider()
	disposers := []func(){
		s.manager.OnSync(func() { s.Sync(ctx) }),
		provider.Subscribe(EventSessionUpdate, func() { s.Sync(ctx) }),
		provider.Subscribe(EventSessionDelete, s.manager.ClearWalletInfo),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, dispose := range disposers {
				if dispose != nil {
					dispose()
				}
			}
		})
	}
}

// Sync copies the first signer's account into the store, or resets the
// store and wallet info when there is none.
func (s *Synchronizer) Sync(ctx context.Context) {
	signer, ok := s.manager.Signer()
	if !ok {
		s.store.SetAccountID("")
		if err := s.store.SetIsConnected(false); err != nil {
			log.Error(err)
		}
		s.manager.ClearWalletInfo()
		return
	}
	s.store.SetAccountID(signer.AccountID().String())
	if err := s.store.SetIsConnected(true); err != nil {
		log.Error(err)
	}

	sess, ok := s.manager.Provider().ActiveSession()
	if !ok || sess == nil {
		return
	}
	info := walletInfoFrom(sess)
	s.manager.setWalletInfo(info)
	if info.Name == s.recognizedWallet {
		s.propagateRecognizedWallet(ctx, sess)
	}
	log.Infof("Connected wallet: %s (%s)", info.Name, info.URL)
}

func (s *Synchronizer) propagateRecognizedWallet(ctx context.Context, sess *Session) {
	accounts := sess.Namespaces[HederaNamespace].Accounts
	if len(accounts) == 0 {
		log.Errorf("no account found in %s session %s", s.recognizedWallet, sess.Topic)
		return
	}
	id, ok := ExtractAccountID(accounts[0])
	if !ok {
		log.Errorf("target id not found in %q", accounts[0])
		return
	}
	if s.dispatcher != nil {
		short := ShortAccountID(id)
		if err := s.dispatcher.SetAccountIDs([]string{short}); err != nil {
			log.Error(err)
		}
		if err := s.dispatcher.SetIsConnected(true); err != nil {
			log.Error(err)
		}
		if err := s.dispatcher.SetPairingString(s.recognizedWallet); err != nil {
			log.Error(err)
		}
	}
	if s.reloader == nil {
		log.Warnf("%s pairing for %s propagated, no reloader configured", s.recognizedWallet, id)
		return
	}
	if err := s.reloader.Reload(ctx); err != nil {
		log.Error(errors.Wrapf(err, "reload after %s pairing", s.recognizedWallet))
	}
}
