package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"moff.io/hedera-dapp/internal/cache"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/internal/database"
	"moff.io/hedera-dapp/internal/relay"
	"moff.io/hedera-dapp/internal/session"
	"moff.io/hedera-dapp/internal/state"
	"moff.io/hedera-dapp/internal/wallet"
	"moff.io/hedera-dapp/pkg/concurrent"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
	"moff.io/hedera-dapp/pkg/log/middleware"
)

// PairingSource exposes the pairing uri of an in-progress connection.
type PairingSource interface {
	PairingQRCode() (uri string, png []byte, ok bool)
}

// TransactionHistory records wallet operations.
type TransactionHistory interface {
	Record(ctx context.Context, in *database.WalletTransaction) error
	SelectLatest(ctx context.Context, accountID string, top int) ([]*database.WalletTransaction, error)
}

// Dependencies are the components served over HTTP. Nil members disable
// their routes.
type Dependencies struct {
	Sessions    *session.Manager
	Store       state.ConnectionStore
	Hashconnect *state.MemoryDispatcher
	Pairing     PairingSource
	History     TransactionHistory
	Relay       *relay.Service
	RateLimiter *redis_rate.Limiter
	Gatherer    prometheus.Gatherer
}

type Server struct {
	deps   Dependencies
	wallet *wallet.Wallet

	addr              string
	requestTimeout    time.Duration
	relayPerMinute    int
	walletConcurrency int

	shutdownTimeout time.Duration
}

func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:              deps,
		addr:              ":8080",
		walletConcurrency: 4,
		shutdownTimeout:   10 * time.Second,
	}
	if deps.Sessions != nil {
		s.wallet = wallet.New(deps.Sessions)
	}
	return s
}

func (s *Server) Apply(c *config.Configuration) {
	if c.HTTP.Addr != "" {
		s.addr = c.HTTP.Addr
	}
	s.requestTimeout = c.HTTP.RequestTimeout
	if c.HTTP.WalletConcurrency > 0 {
		s.walletConcurrency = c.HTTP.WalletConcurrency
	}
	s.relayPerMinute = c.Telegram.RequestsPerMinute
}

// Router builds the gin engine with every configured route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog(), middleware.TimeoutHTTP(s.requestTimeout))

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"ok":          true,
			"initialized": s.deps.Sessions != nil && s.deps.Sessions.Initialized(),
		})
	})
	if s.deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if s.deps.Relay != nil {
		router.POST("/send-telegram",
			cache.RateLimitPerMinute(s.deps.RateLimiter, "send-telegram", s.relayPerMinute),
			s.deps.Relay.Handler)
	}
	if s.wallet != nil {
		s.mountWallet(router.Group("/wallet"))
	}
	return router
}

// Start serves until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "serve http on %s", s.addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "serve http")
	}
	log.Info("HTTP server stopped.")
	return nil
}

// limitInflight rejects requests once n wallet operations are waiting on
// the wallet.
func limitInflight(limiter concurrent.Limiter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !limiter.TryAdd() {
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Too many wallet operations in flight"})
			return
		}
		defer limiter.Done()
		ctx.Next()
	}
}
