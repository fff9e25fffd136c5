package relay

import (
	"context"
	"sync"
	"time"

	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/pkg/log"
)

// Secrets are the Telegram bot token and destination chat.
type Secrets struct {
	BotToken string
	ChatID   string
}

func (s Secrets) complete() bool {
	return s.BotToken != "" && s.ChatID != ""
}

type SecretSource interface {
	Secrets(ctx context.Context) (Secrets, error)
}

// StaticSecrets serves secrets resolved at startup (config file or env).
type StaticSecrets Secrets

func (s StaticSecrets) Secrets(ctx context.Context) (Secrets, error) {
	return Secrets(s), nil
}

// ParameterStore reads one decrypted parameter, e.g. from AWS SSM.
type ParameterStore interface {
	GetSSMParameterValue(ctx context.Context, name string) (string, error)
}

const defaultSecretsTTL = 5 * time.Minute

// StoredSecrets reads secrets from a parameter store, keeping a complete
// pair for TTL. Values in Fallback fill parameters that are not configured.
type StoredSecrets struct {
	Store         ParameterStore
	BotTokenParam string
	ChatIDParam   string
	Fallback      Secrets
	TTL           time.Duration

	mu        sync.Mutex
	cached    Secrets
	expiresAt time.Time
}

func (s *StoredSecrets) Secrets(ctx context.Context) (Secrets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached.complete() && time.Now().Before(s.expiresAt) {
		return s.cached, nil
	}
	out := s.Fallback
	if s.BotTokenParam != "" {
		v, err := s.Store.GetSSMParameterValue(ctx, s.BotTokenParam)
		if err != nil {
			return Secrets{}, err
		}
		out.BotToken = v
	}
	if s.ChatIDParam != "" {
		v, err := s.Store.GetSSMParameterValue(ctx, s.ChatIDParam)
		if err != nil {
			return Secrets{}, err
		}
		out.ChatID = v
	}
	if out.complete() {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = defaultSecretsTTL
		}
		s.cached, s.expiresAt = out, time.Now().Add(ttl)
	}
	return out, nil
}

// SecretSourceFrom picks the parameter store when parameter names are
// configured, else the values from the config file and env.
func SecretSourceFrom(c config.Telegram, store ParameterStore) SecretSource {
	static := Secrets{BotToken: c.BotToken, ChatID: c.ChatID}
	if c.SSMBotTokenParam == "" && c.SSMChatIDParam == "" {
		return StaticSecrets(static)
	}
	if store == nil {
		log.Warnf("telegram ssm parameters configured without an aws client, using static secrets")
		return StaticSecrets(static)
	}
	return &StoredSecrets{
		Store:         store,
		BotTokenParam: c.SSMBotTokenParam,
		ChatIDParam:   c.SSMChatIDParam,
		Fallback:      static,
	}
}
