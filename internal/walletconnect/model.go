package walletconnect

import (
	"encoding/json"
	"time"

	"go.uber.org/atomic"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

type wcMessage struct {
	Topic string `json:"topic"`
	// pub sub ack
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func newWCMessageFromBytes(data []byte) (*wcMessage, error) {
	var msg wcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message")
	}
	return &msg, nil
}

func (msg *wcMessage) Marshal() []byte {
	bytes, _ := json.Marshal(msg)
	return bytes
}

type jsonRpcRequest struct {
	Id      int64         `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRpcRequest(method string, params ...interface{}) *jsonRpcRequest {
	r := &jsonRpcRequest{
		Id:      payloadID(),
		JSONRpc: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (e *jsonRpcRequest) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

// IsSilentPayload reports whether the wallet should handle the request
// without prompting the user.
func (e *jsonRpcRequest) IsSilentPayload() bool {
	return len(e.Method) > 3 && e.Method[:3] == "wc_"
}

type jsonRpcResponse struct {
	Id     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonRpcError   `json:"error,omitempty"`
}

type jsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonRpcError) Error() string {
	return e.Message
}

type peer struct {
	PeerID   string           `json:"peerId"`
	PeerMeta session.Metadata `json:"peerMeta"`
	ChainID  interface{}      `json:"chainId"`
}

// sessionParams is the wallet's answer to wc_sessionRequest as well as the
// body of wc_sessionUpdate.
type sessionParams struct {
	Approved bool             `json:"approved"`
	ChainID  interface{}      `json:"chainId"`
	Accounts []string         `json:"accounts"`
	PeerID   string           `json:"peerId,omitempty"`
	PeerMeta session.Metadata `json:"peerMeta"`
}

// transactionRequest carries a frozen transaction to the wallet.
type transactionRequest struct {
	SignerAccountID string `json:"signerAccountId"`
	// TransactionList is the base64 encoded transaction envelope.
	TransactionList string `json:"transactionList"`
}

type transactionEnvelope struct {
	Kind        string      `json:"kind"`
	Transaction interface{} `json:"transaction"`
}

var lastPayloadID = atomic.NewInt64(time.Now().UnixNano() / 1000)

// payloadID 单调递增，保证同一进程内请求id唯一
func payloadID() int64 {
	return lastPayloadID.Inc()
}
