package starter

import (
	"context"

	"golang.org/x/sync/errgroup"
	"moff.io/hedera-dapp/internal/config"
)

// Startable runs until ctx ends or it fails.
type Startable interface {
	Start(ctx context.Context) error
}

type Configurable interface {
	Apply(*config.Configuration)
}

type Stopable interface {
	Stop()
}

// Start applies conf to every Configurable element and runs all elements
// concurrently. The first failure cancels the others; Stopable elements are
// stopped once everything returned.
func Start(ctx context.Context, conf *config.Configuration, elems ...Startable) error {
	for _, ele := range elems {
		if configurable, ok := ele.(Configurable); ok && conf != nil {
			configurable.Apply(conf)
		}
	}
	group, gctx := errgroup.WithContext(ctx)
	for _, ele := range elems {
		ele := ele
		group.Go(func() error {
			return ele.Start(gctx)
		})
	}
	err := group.Wait()
	for _, ele := range elems {
		if stopable, ok := ele.(Stopable); ok {
			stopable.Stop()
		}
	}
	return err
}
