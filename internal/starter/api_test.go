package starter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/pkg/errors"
)

type element struct {
	applied *config.Configuration
	err     error
	stopped atomic.Bool
	started atomic.Bool
}

func (e *element) Apply(c *config.Configuration) { e.applied = c }

func (e *element) Start(ctx context.Context) error {
	e.started.Store(true)
	if e.err != nil {
		return e.err
	}
	<-ctx.Done()
	return nil
}

func (e *element) Stop() { e.stopped.Store(true) }

func TestStartCancelsOnFailure(t *testing.T) {
	conf := &config.Configuration{LogLevel: 2}
	boom := errors.New("boom")
	healthy := &element{}
	failing := &element{err: boom}

	done := make(chan error, 1)
	go func() { done <- Start(context.Background(), conf, healthy, failing) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, boom))
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after a failure")
	}
	assert.Same(t, conf, healthy.applied)
	assert.True(t, healthy.started.Load())
	assert.True(t, healthy.stopped.Load())
	assert.True(t, failing.stopped.Load())
}

func TestStartReturnsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &element{}
	done := make(chan error, 1)
	go func() { done <- Start(ctx, nil, e) }()
	cancel()
	assert.NoError(t, <-done)
	assert.Nil(t, e.applied)
}
