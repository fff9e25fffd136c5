package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"go.uber.org/ratelimit"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

const (
	defaultAPIURL      = "https://api.telegram.org"
	errSecretsNotSet   = "Bot token or chat ID not set"
	maxUpstreamPayload = 1 << 20
)

const (
	outcomeSuccess        = "success"
	outcomeMissingSecrets = "missing_secrets"
	outcomeUpstreamError  = "upstream_error"
	outcomeFailure        = "failure"
)

// Request is the relay body. A missing or invalid body is an empty Request.
type Request struct {
	Message string `json:"message"`
}

// Response is the transport neutral relay result; handlers write it as is.
type Response struct {
	StatusCode int                    `json:"statusCode"`
	Body       map[string]interface{} `json:"body"`
}

func failure(status int, message string) Response {
	return Response{StatusCode: status, Body: map[string]interface{}{"error": message}}
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithRatePerSecond caps upstream calls; zero or less means unlimited.
func WithRatePerSecond(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limiter = ratelimit.New(n)
		}
	}
}

// WithRegisterer registers the relay metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = r
	}
}

// Service forwards messages to the Telegram Bot API sendMessage method.
type Service struct {
	secrets    SecretSource
	apiURL     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	registerer prometheus.Registerer
	requests   *prometheus.CounterVec
	upstream   *prometheus.HistogramVec
}

func NewService(secrets SecretSource, apiURL string, opts ...Option) (*Service, error) {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	s := &Service{
		secrets:    secrets,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.NewUnlimited(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hedera_dapp_relay_requests_total",
			Help: "Relay requests by outcome",
		}, []string{"outcome"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hedera_dapp_relay_upstream_seconds",
			Help:    "Telegram sendMessage latency by response code",
			Buckets: prometheus.DefBuckets,
		}, []string{"code"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registerer != nil {
		for _, c := range []prometheus.Collector{s.requests, s.upstream} {
			if err := s.registerer.Register(c); err != nil {
				return nil, errors.Wrap(err, "register relay metrics")
			}
		}
	}
	return s, nil
}

// Send relays req.Message. Missing secrets yield 500 whatever the body;
// upstream rejections pass the upstream status and description through.
func (s *Service) Send(ctx context.Context, req Request) Response {
	resp := s.send(ctx, req)
	s.requests.WithLabelValues(outcomeOf(resp)).Inc()
	return resp
}

func outcomeOf(resp Response) string {
	switch {
	case resp.StatusCode == http.StatusOK:
		return outcomeSuccess
	case resp.StatusCode == http.StatusInternalServerError && resp.Body["error"] == errSecretsNotSet:
		return outcomeMissingSecrets
	case resp.StatusCode == http.StatusInternalServerError:
		return outcomeFailure
	default:
		return outcomeUpstreamError
	}
}

func (s *Service) send(ctx context.Context, req Request) Response {
	secrets, err := s.secrets.Secrets(ctx)
	if err != nil {
		log.Errorc(ctx, "load relay secrets: %v", err)
		return failure(http.StatusInternalServerError, errors.Cause(err).Error())
	}
	if !secrets.complete() {
		return failure(http.StatusInternalServerError, errSecretsNotSet)
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": secrets.ChatID,
		"text":    req.Message,
	})
	if err != nil {
		return failure(http.StatusInternalServerError, err.Error())
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, secrets.BotToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failure(http.StatusInternalServerError, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	s.limiter.Take()
	start := time.Now()
	httpResp, err := s.httpClient.Do(httpReq)
	code := "error"
	if err == nil {
		code = strconv.Itoa(httpResp.StatusCode)
	}
	s.upstream.WithLabelValues(code).Observe(time.Since(start).Seconds())
	if err != nil {
		// the url carries the bot token
		message := redact(err.Error(), secrets.BotToken)
		log.Errorc(ctx, "relay to telegram failed: %s", message)
		return failure(http.StatusInternalServerError, message)
	}
	defer httpResp.Body.Close()
	body, err := ioutil.ReadAll(io.LimitReader(httpResp.Body, maxUpstreamPayload))
	if err != nil {
		return failure(http.StatusInternalServerError, err.Error())
	}
	if !gjson.ValidBytes(body) {
		return failure(http.StatusInternalServerError, "invalid upstream response")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		log.Warnc(ctx, "telegram rejected relay with status %d: %s", httpResp.StatusCode, body)
		out := Response{StatusCode: httpResp.StatusCode, Body: map[string]interface{}{}}
		if desc := gjson.GetBytes(body, "description"); desc.Exists() {
			out.Body["error"] = desc.Value()
		}
		return out
	}
	return Response{StatusCode: http.StatusOK, Body: map[string]interface{}{"success": true}}
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<redacted>")
}
