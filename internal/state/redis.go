package state

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"moff.io/hedera-dapp/pkg/errors"
)

const (
	fieldAccountIDs    = "account_ids"
	fieldIsConnected   = "is_connected"
	fieldPairingString = "pairing_string"

	defaultRedisOpTimeout = time.Second * 3
)

// RedisDispatcher persists the hashconnect state in one redis hash so other
// processes (and restarts) see the last recognized wallet pairing.
type RedisDispatcher struct {
	client *redis.Client
	key    string
}

func NewRedisDispatcher(client *redis.Client, key string) *RedisDispatcher {
	if key == "" {
		key = "hedera_dapp:hashconnect"
	}
	return &RedisDispatcher{client: client, key: key}
}

func (d *RedisDispatcher) hset(field string, value interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRedisOpTimeout)
	defer cancel()
	return errors.WrapfAndReport(d.client.HSet(ctx, d.key, field, value).Err(), "hset %s %s", d.key, field)
}

func (d *RedisDispatcher) SetAccountIDs(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return errors.WrapAndReport(err, "marshal account ids")
	}
	return d.hset(fieldAccountIDs, string(raw))
}

func (d *RedisDispatcher) SetIsConnected(connected bool) error {
	return d.hset(fieldIsConnected, strconv.FormatBool(connected))
}

func (d *RedisDispatcher) SetPairingString(pairing string) error {
	return d.hset(fieldPairingString, pairing)
}

// Load reads the persisted hash; missing fields keep their zero value.
func (d *RedisDispatcher) Load(ctx context.Context) (HashconnectState, error) {
	var out HashconnectState
	fields, err := d.client.HGetAll(ctx, d.key).Result()
	if err != nil {
		return out, errors.WrapfAndReport(err, "hgetall %s", d.key)
	}
	if raw := fields[fieldAccountIDs]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &out.AccountIDs); err != nil {
			return out, errors.WrapAndReport(err, "unmarshal account ids")
		}
	}
	out.IsConnected, _ = strconv.ParseBool(fields[fieldIsConnected])
	out.PairingString = fields[fieldPairingString]
	return out, nil
}
