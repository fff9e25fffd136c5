package wcbridge

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// 第一步：建立链接，订阅clientID主题
// 第二步：发送加密的 wc_sessionRequest 到握手主题，展示配对二维码
// 第三步：接收会话响应，之后处理 wc_sessionUpdate 与签名请求的响应
const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"

	Protocol = "wc"
	Version  = "1"
)

var random = rand.New(rand.NewSource(time.Now().UnixNano()))

func RandomBridgeURL() string {
	c := alphanumerical[random.Intn(len(alphanumerical))]
	return fmt.Sprintf(bridgeURLFormat, string(c))
}

// GetWebSocketURL turns a bridge http(s) url into its websocket endpoint.
func GetWebSocketURL(bridgeURL, protocol, version string) string {
	switch {
	case strings.HasPrefix(bridgeURL, "https"):
		bridgeURL = strings.Replace(bridgeURL, "https", "wss", 1)
	case strings.HasPrefix(bridgeURL, "http"):
		bridgeURL = strings.Replace(bridgeURL, "http", "ws", 1)
	}
	q := url.Values{}
	q.Set("protocol", protocol)
	q.Set("version", version)
	q.Set("env", "hedera-dapp")
	return bridgeURL + "?" + q.Encode()
}

// PairingURI is the wc: uri a wallet scans to join the handshake topic.
func PairingURI(handshakeTopic, bridgeURL string, key []byte) string {
	return fmt.Sprintf("wc:%s@%s?bridge=%s&key=%s",
		handshakeTopic, Version, url.QueryEscape(bridgeURL), hex.EncodeToString(key))
}
