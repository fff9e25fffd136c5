package walletconnect

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
	"moff.io/hedera-dapp/pkg/wcbridge"
)

var (
	errSessionClosed   = errors.New("session closed")
	ErrNotInitialized  = errors.New("wallet connect provider is not initialized")
	ErrNoActiveSession = errors.New("there is no active session, connect to the wallet first")
	ErrResponseTimeout = errors.New("wallet connect response timeout")
	ErrProviderClosed  = errors.New("wallet connect provider closed")
)

const (
	sessionRejected = "Session Rejected"
	qrCodeSize      = 256
)

// Provider is a session.Provider backed by a WalletConnect v1 bridge.
// One reader goroutine per connection dispatches responses and session
// updates; Close stops it.
type Provider struct {
	cfg           Config
	displayQRCode DisplayQRCodeFn

	bridgeURL     string
	clientID      string
	encryptionKey []byte

	// None zero value means Init already started dialing the bridge.
	dialed atomic.Bool
	// writeMu guards conn, which stays nil until the dial succeeds.
	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  chan struct{}
	done    chan struct{}
	once    sync.Once

	mu        sync.RWMutex
	session   *session.Session
	peerID    string
	signers   []ledger.Signer
	pairing   string
	qrPNG     []byte
	pending   map[int64]chan *jsonRpcResponse
	observers map[session.Event]*session.Observers
}

func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	encryptionKey, err := wcbridge.GenerateRandomBytes(wcbridge.KeySize)
	if err != nil {
		return nil, errors.WrapAndReport(err, "generate wallet connect key")
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if len(cfg.NodeAccountIDs) == 0 {
		cfg.NodeAccountIDs = defaultNodes
	}
	bridgeURL := cfg.BridgeURL
	if bridgeURL == "" {
		bridgeURL = wcbridge.RandomBridgeURL()
	}
	p := &Provider{
		cfg:           cfg,
		bridgeURL:     bridgeURL,
		clientID:      uuid.NewString(),
		encryptionKey: encryptionKey,
		closed:        make(chan struct{}),
		done:          make(chan struct{}),
		pending:       make(map[int64]chan *jsonRpcResponse),
		observers:     make(map[session.Event]*session.Observers),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Init dials the bridge, subscribes to the client topic and starts the reader.
func (p *Provider) Init(ctx context.Context) error {
	if !p.dialed.CAS(false, true) {
		return nil
	}
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wsURL := wcbridge.GetWebSocketURL(p.bridgeURL, wcbridge.Protocol, wcbridge.Version)
	conn, _, err := p.dialer(dialCtx, cancel).DialContext(dialCtx, wsURL, nil)
	if err != nil {
		select {
		case <-p.closed:
			return ErrProviderClosed
		default:
		}
		p.dialed.Store(false)
		return errors.WrapAndReport(err, "dial to wallet connect bridge url")
	}

	p.writeMu.Lock()
	select {
	case <-p.closed:
		p.writeMu.Unlock()
		conn.Close()
		return ErrProviderClosed
	default:
	}
	p.conn = conn
	p.writeMu.Unlock()

	// From here on readLoop owns closing p.done.
	go p.readLoop(conn)
	if err := p.send(&wcMessage{Topic: p.clientID, Type: "sub", Silent: true}); err != nil {
		conn.Close()
		return err
	}
	log.Infof("wallet connect - connected to bridge %s", p.bridgeURL)
	return nil
}

// dialer returns a websocket dialer that Close aborts by cancelling ctx.
// The handshake read ignores ctx, so the raw conn is closed as well.
func (p *Provider) dialer(ctx context.Context, cancel context.CancelFunc) *websocket.Dialer {
	var (
		mu  sync.Mutex
		raw net.Conn
	)
	go func() {
		select {
		case <-p.closed:
			cancel()
			mu.Lock()
			if raw != nil {
				raw.Close()
			}
			mu.Unlock()
		case <-ctx.Done():
		}
	}()
	return &websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
		NetDialContext: func(dctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := (&net.Dialer{}).DialContext(dctx, network, addr)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			raw = conn
			mu.Unlock()
			return conn, nil
		},
	}
}

// OpenModal publishes a session request on a fresh handshake topic, shows
// the pairing QR code and waits for the wallet to approve or reject.
// A rejection is not an error.
func (p *Provider) OpenModal(ctx context.Context) error {
	if !p.dialed.Load() {
		return ErrNotInitialized
	}
	handshakeTopic := uuid.NewString()
	request := newJSONRpcRequest(methodSessionRequest, peer{
		PeerID:   p.clientID,
		PeerMeta: p.cfg.DApp,
		ChainID:  ChainID(p.cfg.Network),
	})
	wait := p.expect(request.Id)
	defer p.forget(request.Id)
	if err := p.publish(handshakeTopic, request); err != nil {
		return err
	}

	uri := wcbridge.PairingURI(handshakeTopic, p.bridgeURL, p.encryptionKey)
	log.Debugf("wallet connect - generated uri:%v", uri)
	png, err := qrcode.Encode(uri, qrcode.Medium, qrCodeSize)
	if err != nil {
		return errors.WrapAndReport(err, "encode wallet connect qr code")
	}
	p.mu.Lock()
	p.pairing = uri
	p.qrPNG = png
	p.mu.Unlock()
	if p.displayQRCode != nil {
		if err := p.displayQRCode(uri, png); err != nil {
			return err
		}
	}

	resp, err := p.await(ctx, wait)
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return nil
		}
		return err
	}
	if resp.Error != nil {
		if strings.Contains(resp.Error.Message, sessionRejected) {
			log.Infof("wallet connect - session rejected by wallet")
			return nil
		}
		return resp.Error
	}
	var params sessionParams
	if err := json.Unmarshal(resp.Result, &params); err != nil {
		return errors.WrapAndReport(err, "unmarshal wallet session")
	}
	if !params.Approved {
		return nil
	}
	if len(params.Accounts) == 0 {
		return errors.NewWithReport("no wallet accounts acquired")
	}
	p.applySession(handshakeTopic, &params)
	return nil
}

// PairingQRCode returns the last generated pairing uri and its QR png.
func (p *Provider) PairingQRCode() (uri string, png []byte, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pairing, p.qrPNG, p.qrPNG != nil
}

func (p *Provider) Signers() []ledger.Signer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ledger.Signer(nil), p.signers...)
}

func (p *Provider) ActiveSession() (*session.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session, p.session != nil
}

// DisconnectAll tells the wallet the session ended and drops it locally.
func (p *Provider) DisconnectAll(ctx context.Context) error {
	p.mu.RLock()
	peerID, active := p.peerID, p.session != nil
	p.mu.RUnlock()
	if !active {
		return ErrNoActiveSession
	}
	update := newJSONRpcRequest(methodSessionUpdate, sessionParams{Approved: false})
	if err := p.publish(peerID, update); err != nil {
		return err
	}
	p.clearSession()
	p.notify(session.EventSessionDelete)
	return nil
}

func (p *Provider) Subscribe(event session.Event, fn func()) func() {
	return p.observersOf(event).Add(fn)
}

// Close stops the reader goroutine and closes the bridge connection. It is
// safe to call while Init is still dialing; that dial is cancelled.
func (p *Provider) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		p.writeMu.Lock()
		conn := p.conn
		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
		p.writeMu.Unlock()
		if conn == nil {
			close(p.done)
			return
		}
		err = conn.Close()
		<-p.done
	})
	return err
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

// notify must be called without holding p.mu.
func (p *Provider) notify(event session.Event) {
	p.observersOf(event).Notify()
}

func (p *Provider) applySession(topic string, params *sessionParams) {
	accounts := make([]string, 0, len(params.Accounts))
	signers := make([]ledger.Signer, 0, len(params.Accounts))
	for _, account := range params.Accounts {
		id, ok := session.ExtractAccountID(account)
		if !ok {
			log.Warnf("wallet connect - skip unrecognized account %q", account)
			continue
		}
		accounts = append(accounts, session.CAIP10Account(p.cfg.Network, id))
		signers = append(signers, &bridgeSigner{provider: p, account: id})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if params.PeerID != "" {
		p.peerID = params.PeerID
	}
	if p.session != nil {
		topic = p.session.Topic
	}
	// Sessions handed out by ActiveSession are never mutated, a change
	// swaps in a new value.
	p.session = &session.Session{
		Topic: topic,
		Peer:  session.Peer{PublicKey: p.peerID, Metadata: params.PeerMeta},
		Namespaces: map[string]session.Namespace{
			session.HederaNamespace: {
				Accounts: accounts,
				Methods:  supportedMethods,
				Events:   supportedEvents,
			},
		},
	}
	p.signers = signers
}

func (p *Provider) clearSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	p.peerID = ""
	p.signers = nil
}

func (p *Provider) send(msg *wcMessage) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return ErrNotInitialized
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, msg.Marshal()); err != nil {
		return errors.WrapAndReport(err, "write wallet connect message to server")
	}
	return nil
}

func (p *Provider) publish(topic string, request *jsonRpcRequest) error {
	payload, err := wcbridge.Seal([]byte(request.Marshal()), p.encryptionKey)
	if err != nil {
		return errors.WrapAndReport(err, "encrypt wallet connect request")
	}
	log.Debugf("wallet connect - publish %s to %s", request.Method, topic)
	return p.send(&wcMessage{
		Topic:   topic,
		Type:    "pub",
		Payload: payload.Marshal(),
		Silent:  request.IsSilentPayload(),
	})
}

func (p *Provider) expect(id int64) chan *jsonRpcResponse {
	ch := make(chan *jsonRpcResponse, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *Provider) forget(id int64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Provider) await(ctx context.Context, wait chan *jsonRpcResponse) (*jsonRpcResponse, error) {
	timer := time.NewTimer(p.cfg.ReadTimeout)
	defer timer.Stop()
	select {
	case resp := <-wait:
		return resp, nil
	case <-timer.C:
		return nil, ErrResponseTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, errSessionClosed
	}
}

// request publishes a JSON-RPC call to the paired wallet and waits for its answer.
func (p *Provider) request(ctx context.Context, method string, params ...interface{}) (*jsonRpcResponse, error) {
	p.mu.RLock()
	peerID := p.peerID
	p.mu.RUnlock()
	if peerID == "" {
		return nil, ErrNoActiveSession
	}
	req := newJSONRpcRequest(method, params...)
	wait := p.expect(req.Id)
	defer p.forget(req.Id)
	if err := p.publish(peerID, req); err != nil {
		return nil, err
	}
	resp, err := p.await(ctx, wait)
	if errors.Is(err, errSessionClosed) {
		return nil, ErrProviderClosed
	}
	return resp, err
}

func (p *Provider) readLoop(conn *websocket.Conn) {
	defer close(p.done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-p.closed:
			default:
				log.Errorf("wallet connect - read bridge message: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := p.handleMessage(data); err != nil {
			log.Error(err)
		}
	}
}

func (p *Provider) handleMessage(data []byte) error {
	msg, err := newWCMessageFromBytes(data)
	if err != nil {
		return err
	}
	if msg.Type != "pub" {
		return nil
	}
	if err := p.send(&wcMessage{Topic: msg.Topic, Type: "ack", Silent: true}); err != nil {
		return err
	}
	payload, err := wcbridge.PayloadFromString(msg.Payload)
	if err != nil {
		return err
	}
	plain, err := wcbridge.Open(payload, p.encryptionKey)
	if err != nil {
		return errors.Wrap(err, "decrypt wallet connect payload")
	}
	return p.handleJSONRpc(string(plain))
}

func (p *Provider) handleJSONRpc(jsonRpc string) error {
	method := gjson.Get(jsonRpc, "method")
	if !method.Exists() {
		var resp jsonRpcResponse
		if err := json.Unmarshal([]byte(jsonRpc), &resp); err != nil {
			return errors.Wrap(err, "unmarshal wallet connect response")
		}
		p.mu.RLock()
		wait, ok := p.pending[resp.Id]
		p.mu.RUnlock()
		if !ok {
			log.Debugf("wallet connect - drop response for unknown request %d", resp.Id)
			return nil
		}
		select {
		case wait <- &resp:
		default:
			log.Warnf("wallet connect - duplicate response for request %d", resp.Id)
		}
		return nil
	}
	if method.String() != methodSessionUpdate {
		log.Debugf("wallet connect - ignore request %s", method.String())
		return nil
	}
	params := gjson.Get(jsonRpc, "params").Array()
	if len(params) == 0 {
		// 不应该发生
		return nil
	}
	var update sessionParams
	if err := json.Unmarshal([]byte(params[0].Raw), &update); err != nil {
		return errors.Wrap(err, "unmarshal session update")
	}
	if !update.Approved {
		// 用户断开链接
		log.Warnf("wallet connect - session closed by wallet")
		p.clearSession()
		p.notify(session.EventSessionDelete)
		return nil
	}
	p.mu.RLock()
	active := p.session
	p.mu.RUnlock()
	if active == nil {
		return nil
	}
	if update.PeerMeta.Name == "" {
		update.PeerMeta = active.Peer.Metadata
	}
	p.applySession(active.Topic, &update)
	p.notify(session.EventSessionUpdate)
	return nil
}
