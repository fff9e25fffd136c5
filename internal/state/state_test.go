package state

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/hedera-dapp/pkg/errors"
)

func TestConnectionStoreInvariant(t *testing.T) {
	var changes []ConnectionState
	store := NewConnectionStore(func(s ConnectionState) { changes = append(changes, s) })

	assert.True(t, errors.Is(store.SetIsConnected(true), ErrNoAccount))
	assert.Equal(t, ConnectionState{}, store.Snapshot())

	store.SetAccountID("0.0.42")
	require.NoError(t, store.SetIsConnected(true))
	assert.Equal(t, ConnectionState{AccountID: "0.0.42", IsConnected: true}, store.Snapshot())

	// clearing the account drops the connected flag with it
	store.SetAccountID("")
	assert.Equal(t, ConnectionState{}, store.Snapshot())
	assert.Len(t, changes, 3)
}

func TestMemoryDispatcher(t *testing.T) {
	d := NewMemoryDispatcher()
	ids := []string{"42"}
	require.NoError(t, d.SetAccountIDs(ids))
	require.NoError(t, d.SetIsConnected(true))
	require.NoError(t, d.SetPairingString("HashPack"))
	ids[0] = "mutated"

	assert.Equal(t, HashconnectState{AccountIDs: []string{"42"}, IsConnected: true, PairingString: "HashPack"}, d.State())
}

type failingDispatcher struct{ calls int }

func (f *failingDispatcher) SetAccountIDs([]string) error  { f.calls++; return errors.New("down") }
func (f *failingDispatcher) SetIsConnected(bool) error     { f.calls++; return errors.New("down") }
func (f *failingDispatcher) SetPairingString(string) error { f.calls++; return errors.New("down") }

func TestMultiDispatcherTriesAll(t *testing.T) {
	failing := &failingDispatcher{}
	mem := NewMemoryDispatcher()
	multi := MultiDispatcher{failing, nil, mem}

	assert.EqualError(t, multi.SetPairingString("HashPack"), "down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, "HashPack", mem.State().PairingString)
}

func TestRedisDispatcher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewRedisDispatcher(client, "")
	ctx := context.Background()

	empty, err := d.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, HashconnectState{}, empty)

	require.NoError(t, d.SetAccountIDs([]string{"1234"}))
	require.NoError(t, d.SetIsConnected(true))
	require.NoError(t, d.SetPairingString("HashPack"))

	loaded, err := d.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, HashconnectState{AccountIDs: []string{"1234"}, IsConnected: true, PairingString: "HashPack"}, loaded)
	assert.Equal(t, "true", mr.HGet("hedera_dapp:hashconnect", fieldIsConnected))
}
