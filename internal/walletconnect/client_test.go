package walletconnect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/pkg/wcbridge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// published is one decrypted pub message the dApp sent through the bridge.
type published struct {
	topic   string
	jsonRpc string
}

// fakeBridge relays like a WalletConnect bridge and lets the test play the wallet.
type fakeBridge struct {
	t   *testing.T
	srv *httptest.Server

	mu   sync.Mutex
	key  []byte
	conn *websocket.Conn
	subs []string
	pubs chan published
}

func newFakeBridge(t *testing.T) *fakeBridge {
	b := &fakeBridge{t: t, pubs: make(chan published, 16)}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := newWCMessageFromBytes(data)
			if err != nil {
				continue
			}
			switch msg.Type {
			case "sub":
				b.mu.Lock()
				b.subs = append(b.subs, msg.Topic)
				b.mu.Unlock()
			case "pub":
				payload, err := wcbridge.PayloadFromString(msg.Payload)
				if err != nil {
					continue
				}
				plain, err := wcbridge.Open(payload, b.sessionKey())
				if err != nil {
					continue
				}
				b.pubs <- published{topic: msg.Topic, jsonRpc: string(plain)}
			}
		}
	}))
	return b
}

func (b *fakeBridge) sessionKey() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

func (b *fakeBridge) next() published {
	b.t.Helper()
	select {
	case p := <-b.pubs:
		return p
	case <-time.After(5 * time.Second):
		b.t.Fatal("no message published through the bridge")
		return published{}
	}
}

// push sends v, encrypted, to the dApp's client topic.
func (b *fakeBridge) push(topic string, v interface{}) {
	b.t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(b.t, err)
	payload, err := wcbridge.Seal(raw, b.sessionKey())
	require.NoError(b.t, err)
	msg := wcMessage{Topic: topic, Type: "pub", Payload: payload.Marshal()}
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NoError(b.t, b.conn.WriteMessage(websocket.TextMessage, msg.Marshal()))
}

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *fakeBridge) {
	t.Helper()
	bridge := newFakeBridge(t)
	p, err := NewProvider(Config{
		BridgeURL:   bridge.srv.URL,
		Network:     "testnet",
		ReadTimeout: 5 * time.Second,
		DApp:        session.Metadata{Name: "Hedera dApp", URL: "https://dapp.example"},
	}, opts...)
	require.NoError(t, err)
	bridge.mu.Lock()
	bridge.key = p.encryptionKey
	bridge.mu.Unlock()
	t.Cleanup(func() {
		p.Close()
		bridge.srv.Close()
	})
	require.NoError(t, p.Init(context.Background()))
	return p, bridge
}

func approve(b *fakeBridge, id int64, clientID string, accounts ...string) {
	b.push(clientID, map[string]interface{}{
		"id":      id,
		"jsonrpc": "2.0",
		"result": sessionParams{
			Approved: true,
			ChainID:  "hedera:testnet",
			Accounts: accounts,
			PeerID:   "wallet-peer",
			PeerMeta: session.Metadata{Name: "HashPack", URL: "https://www.hashpack.app"},
		},
	})
}

func connect(t *testing.T, p *Provider, b *fakeBridge, accounts ...string) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- p.OpenModal(context.Background()) }()
	req := b.next()
	approve(b, gjson.Get(req.jsonRpc, "id").Int(), p.clientID, accounts...)
	require.NoError(t, <-errc)
}

func TestOpenModalBeforeInit(t *testing.T) {
	p, err := NewProvider(Config{BridgeURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, ErrNotInitialized, p.OpenModal(context.Background()))
	assert.NoError(t, p.Close())
}

func TestOpenModalApproved(t *testing.T) {
	var shownURI string
	p, b := newTestProvider(t, WithDisplayQRCode(func(uri string, png []byte) error {
		shownURI = uri
		assert.NotEmpty(t, png)
		return nil
	}))

	errc := make(chan error, 1)
	go func() { errc <- p.OpenModal(context.Background()) }()
	req := b.next()
	assert.Equal(t, methodSessionRequest, gjson.Get(req.jsonRpc, "method").String())
	assert.Equal(t, p.clientID, gjson.Get(req.jsonRpc, "params.0.peerId").String())
	assert.Equal(t, "Hedera dApp", gjson.Get(req.jsonRpc, "params.0.peerMeta.name").String())
	assert.Equal(t, "hedera:testnet", gjson.Get(req.jsonRpc, "params.0.chainId").String())

	approve(b, gjson.Get(req.jsonRpc, "id").Int(), p.clientID, "0.0.1234", "hedera:testnet:0.0.99")
	require.NoError(t, <-errc)

	uri, png, ok := p.PairingQRCode()
	require.True(t, ok)
	assert.NotEmpty(t, png)
	assert.Equal(t, shownURI, uri)
	assert.Contains(t, uri, "wc:"+req.topic+"@1?bridge=")

	signers := p.Signers()
	require.Len(t, signers, 2)
	assert.Equal(t, ledger.AccountID{Num: 1234}, signers[0].AccountID())
	sess, ok := p.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, "HashPack", sess.Peer.Metadata.Name)
	assert.Equal(t, []string{"hedera:testnet:0.0.1234", "hedera:testnet:0.0.99"},
		sess.Namespaces[session.HederaNamespace].Accounts)

	b.mu.Lock()
	assert.Contains(t, b.subs, p.clientID)
	b.mu.Unlock()
}

func TestOpenModalRejected(t *testing.T) {
	p, b := newTestProvider(t)

	errc := make(chan error, 1)
	go func() { errc <- p.OpenModal(context.Background()) }()
	req := b.next()
	b.push(p.clientID, map[string]interface{}{
		"id":      gjson.Get(req.jsonRpc, "id").Int(),
		"jsonrpc": "2.0",
		"error":   map[string]interface{}{"code": -32000, "message": "Session Rejected"},
	})
	assert.NoError(t, <-errc)
	assert.Empty(t, p.Signers())
	_, ok := p.ActiveSession()
	assert.False(t, ok)
}

func TestOpenModalCancelled(t *testing.T) {
	p, b := newTestProvider(t)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- p.OpenModal(ctx) }()
	b.next()
	cancel()
	assert.Equal(t, context.Canceled, <-errc)
}

func TestExecuteThroughWallet(t *testing.T) {
	p, b := newTestProvider(t)
	connect(t, p, b, "0.0.1234")
	signer := p.Signers()[0]

	tx := ledger.NewTransferTransaction().
		AddHbarTransfer(ledger.AccountID{Num: 1234}, -5).
		AddHbarTransfer(ledger.AccountID{Num: 98}, 5)
	require.NoError(t, signer.Freeze(context.Background(), tx))
	assert.Equal(t, []ledger.AccountID{{Num: 3}}, tx.NodeAccountIDs)

	type result struct {
		resp *ledger.TransactionResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := signer.Execute(context.Background(), tx)
		done <- result{resp, err}
	}()

	req := b.next()
	assert.Equal(t, "wallet-peer", req.topic)
	assert.Equal(t, methodSignAndExecuteTransaction, gjson.Get(req.jsonRpc, "method").String())
	assert.Equal(t, "hedera:testnet:0.0.1234", gjson.Get(req.jsonRpc, "params.0.signerAccountId").String())
	b.push(p.clientID, map[string]interface{}{
		"id":      gjson.Get(req.jsonRpc, "id").Int(),
		"jsonrpc": "2.0",
		"result": map[string]interface{}{
			"transactionId":   "0.0.1234@1700000000.000000001",
			"nodeId":          "0.0.5",
			"transactionHash": "beef",
		},
	})

	r := <-done
	require.NoError(t, r.err)
	require.NotNil(t, r.resp)
	assert.Equal(t, "0.0.1234@1700000000.000000001", r.resp.TransactionID.String())
	assert.Equal(t, ledger.AccountID{Num: 5}, r.resp.NodeID)
	assert.Equal(t, []byte{0xbe, 0xef}, r.resp.Hash)
}

func TestExecuteNullResult(t *testing.T) {
	p, b := newTestProvider(t)
	connect(t, p, b, "0.0.1234")
	signer := p.Signers()[0]

	tx := ledger.NewTokenAssociateTransaction().
		SetAccountID(ledger.AccountID{Num: 1234}).
		SetTokenIDs(ledger.TokenID{Num: 77})
	require.NoError(t, signer.Freeze(context.Background(), tx))

	done := make(chan *ledger.TransactionResponse, 1)
	go func() {
		resp, err := signer.Execute(context.Background(), tx)
		assert.NoError(t, err)
		done <- resp
	}()
	req := b.next()
	b.push(p.clientID, map[string]interface{}{"id": gjson.Get(req.jsonRpc, "id").Int(), "jsonrpc": "2.0", "result": nil})
	assert.Nil(t, <-done)
}

func TestExecuteRequiresFrozen(t *testing.T) {
	s := &bridgeSigner{account: ledger.AccountID{Num: 1}}
	_, err := s.Execute(context.Background(), ledger.NewTransferTransaction())
	assert.Equal(t, ledger.ErrTransactionNotFrozen, err)
}

func TestWalletClosesSession(t *testing.T) {
	p, b := newTestProvider(t)
	connect(t, p, b, "0.0.1234")

	deleted := make(chan struct{}, 1)
	dispose := p.Subscribe(session.EventSessionDelete, func() { deleted <- struct{}{} })
	defer dispose()

	b.push(p.clientID, newJSONRpcRequest(methodSessionUpdate, sessionParams{Approved: false}))
	select {
	case <-deleted:
	case <-time.After(5 * time.Second):
		t.Fatal("session_delete not emitted")
	}
	assert.Empty(t, p.Signers())
}

func TestWalletUpdatesAccounts(t *testing.T) {
	p, b := newTestProvider(t)
	connect(t, p, b, "0.0.1234")

	updated := make(chan struct{}, 1)
	dispose := p.Subscribe(session.EventSessionUpdate, func() { updated <- struct{}{} })
	defer dispose()

	b.push(p.clientID, newJSONRpcRequest(methodSessionUpdate, sessionParams{Approved: true, Accounts: []string{"0.0.4321"}}))
	select {
	case <-updated:
	case <-time.After(5 * time.Second):
		t.Fatal("session_update not emitted")
	}
	require.Len(t, p.Signers(), 1)
	assert.Equal(t, ledger.AccountID{Num: 4321}, p.Signers()[0].AccountID())
	sess, _ := p.ActiveSession()
	assert.Equal(t, "HashPack", sess.Peer.Metadata.Name)
}

func TestActiveSessionNotMutatedByUpdate(t *testing.T) {
	p, b := newTestProvider(t)
	connect(t, p, b, "0.0.1234")
	before, ok := p.ActiveSession()
	require.True(t, ok)

	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if sess, ok := p.ActiveSession(); ok {
				_ = sess.Peer.Metadata.Name
				_ = sess.Namespaces[session.HederaNamespace].Accounts
			}
		}
	}()
	for i := 0; i < 50; i++ {
		p.applySession("", &sessionParams{Approved: true, Accounts: []string{"0.0.4321"}, PeerMeta: session.Metadata{Name: "Blade"}})
	}
	close(stop)
	readers.Wait()

	assert.Equal(t, "HashPack", before.Peer.Metadata.Name)
	assert.Equal(t, []string{"hedera:testnet:0.0.1234"}, before.Namespaces[session.HederaNamespace].Accounts)
	after, _ := p.ActiveSession()
	assert.Equal(t, "Blade", after.Peer.Metadata.Name)
	assert.Equal(t, before.Topic, after.Topic)
}

func TestCloseWhileDialing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 1)
	go func() {
		// accept but never answer the websocket handshake
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	p, err := NewProvider(Config{BridgeURL: "http://" + ln.Addr().String()})
	require.NoError(t, err)

	initErr := make(chan error, 1)
	go func() { initErr <- p.Init(context.Background()) }()
	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge dial never arrived")
	}
	defer conn.Close()
	defer ln.Close()

	assert.NotPanics(t, func() { assert.NoError(t, p.Close()) })
	select {
	case err := <-initErr:
		assert.Equal(t, ErrProviderClosed, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Init not cancelled by Close")
	}
	assert.Equal(t, ErrNotInitialized, p.send(&wcMessage{Topic: "t", Type: "sub"}))
}

func TestDisconnectAll(t *testing.T) {
	p, b := newTestProvider(t)
	assert.Equal(t, ErrNoActiveSession, p.DisconnectAll(context.Background()))

	connect(t, p, b, "0.0.1234")
	var deletes int
	dispose := p.Subscribe(session.EventSessionDelete, func() { deletes++ })
	defer dispose()

	require.NoError(t, p.DisconnectAll(context.Background()))
	req := b.next()
	assert.Equal(t, "wallet-peer", req.topic)
	assert.Equal(t, methodSessionUpdate, gjson.Get(req.jsonRpc, "method").String())
	assert.False(t, gjson.Get(req.jsonRpc, "params.0.approved").Bool())
	assert.Equal(t, 1, deletes)
	assert.Empty(t, p.Signers())
}

func TestManagerDrivesProvider(t *testing.T) {
	p, b := newTestProvider(t)
	manager := session.NewManager(p)

	errc := make(chan struct{})
	go func() {
		manager.OpenConnectionModal(context.Background())
		close(errc)
	}()
	req := b.next()
	approve(b, gjson.Get(req.jsonRpc, "id").Int(), p.clientID, "0.0.1234")
	<-errc

	signer, ok := manager.Signer()
	require.True(t, ok)
	assert.Equal(t, ledger.AccountID{Num: 1234}, signer.AccountID())
}
