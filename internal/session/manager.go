package session

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

// Manager owns one provider: the init-once memo, the sync observers and the
// cached wallet info. Construct one per provider and pass it to consumers.
type Manager struct {
	provider Provider

	// None zero value means initialization was started, later callers wait on initDone.
	initStarted atomic.Bool
	initDone    chan struct{}
	initialized atomic.Bool

	syncObservers Observers

	mu         sync.RWMutex
	walletInfo *WalletInfo
}

func NewManager(provider Provider) *Manager {
	return &Manager{
		provider: provider,
		initDone: make(chan struct{}),
	}
}

func (m *Manager) Provider() Provider {
	return m.provider
}

// EnsureInitialized starts Provider.Init on the first call and makes every
// caller wait for that single attempt. Init errors are logged and swallowed;
// there is no retry. A caller whose ctx ends stops waiting, the attempt
// itself keeps running.
func (m *Manager) EnsureInitialized(ctx context.Context) {
	if m.initStarted.CAS(false, true) {
		go m.initialize()
	}
	select {
	case <-m.initDone:
	case <-ctx.Done():
	}
}

func (m *Manager) initialize() {
	defer close(m.initDone)
	if err := m.provider.Init(context.Background()); err != nil {
		log.Error(errors.WrapAndReport(err, "initialize wallet session provider"))
		return
	}
	m.initialized.Store(true)
	log.Info("Wallet session provider initialized successfully.")
}

// Initialized reports whether the single init attempt succeeded.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

// OpenConnectionModal initializes the provider if needed, shows the pairing
// UI and notifies sync observers once it returns, whatever the outcome.
func (m *Manager) OpenConnectionModal(ctx context.Context) {
	m.EnsureInitialized(ctx)
	if err := m.provider.OpenModal(ctx); err != nil {
		log.Error(errors.Wrap(err, "open wallet connection modal"))
	}
	m.NotifySync()
}

// OnSync registers a sync listener and returns its disposer.
func (m *Manager) OnSync(fn func()) (dispose func()) {
	return m.syncObservers.Add(fn)
}

func (m *Manager) NotifySync() {
	m.syncObservers.Notify()
}

// Signer returns the first signer the provider currently exposes. It is
// looked up on every call and must not be kept beyond one operation.
func (m *Manager) Signer() (ledger.Signer, bool) {
	signers := m.provider.Signers()
	if len(signers) == 0 || signers[0] == nil {
		return nil, false
	}
	return signers[0], true
}

// WalletInfo returns a copy of the cached wallet info, nil when absent.
func (m *Manager) WalletInfo() *WalletInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.walletInfo == nil {
		return nil
	}
	info := *m.walletInfo
	return &info
}

func (m *Manager) setWalletInfo(info *WalletInfo) {
	m.mu.Lock()
	m.walletInfo = info
	m.mu.Unlock()
}

func (m *Manager) ClearWalletInfo() {
	m.setWalletInfo(nil)
}

// Disconnect terminates every provider session. On success the wallet info
// is cleared and sync observers are notified; failures are only logged.
func (m *Manager) Disconnect(ctx context.Context) {
	if err := m.provider.DisconnectAll(ctx); err != nil {
		log.Error(errors.Wrap(err, "disconnect wallet sessions"))
		return
	}
	m.ClearWalletInfo()
	m.NotifySync()
}
