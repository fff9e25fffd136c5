package walletconnect

import (
	"time"

	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/session"
)

// DisplayQRCodeFn 展示配对二维码的函数，uri为wc:配对链接，png为对应的二维码图片
type DisplayQRCodeFn func(uri string, png []byte) error

// Config holds what the bridge provider needs to pair with a wallet.
type Config struct {
	// BridgeURL empty picks a random public bridge.
	BridgeURL   string
	Network     string
	ReadTimeout time.Duration
	DApp        session.Metadata
	// NodeAccountIDs are the consensus nodes transactions are frozen for.
	NodeAccountIDs []ledger.AccountID
}

func ConfigFrom(c config.WalletConnect) Config {
	return Config{
		BridgeURL:   c.BridgeURL,
		Network:     c.Network,
		ReadTimeout: c.ReadTimeout,
		DApp: session.Metadata{
			Name:        c.DApp.Name,
			Description: c.DApp.Description,
			URL:         c.DApp.URL,
			Icons:       c.DApp.Icons,
		},
	}
}

type Option func(*Provider)

// WithDisplayQRCode is called with every freshly generated pairing uri.
func WithDisplayQRCode(fn DisplayQRCodeFn) Option {
	return func(p *Provider) {
		p.displayQRCode = fn
	}
}

const (
	methodSessionRequest            = "wc_sessionRequest"
	methodSessionUpdate             = "wc_sessionUpdate"
	methodSignAndExecuteTransaction = "hedera_signAndExecuteTransaction"
	methodSignTransaction           = "hedera_signTransaction"

	defaultNetwork     = "mainnet"
	defaultReadTimeout = time.Minute * 5
)

var (
	supportedMethods = []string{methodSignAndExecuteTransaction, methodSignTransaction}
	supportedEvents  = []string{"chainChanged", "accountsChanged"}
	defaultNodes     = []ledger.AccountID{{Num: 3}}
)

// ChainID maps a network name to its CAIP-2 chain id.
func ChainID(network string) string {
	return session.HederaNamespace + ":" + network
}
