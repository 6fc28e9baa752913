package assets

import (
	"context"
	"fmt"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
)

// Collector runs several providers and merges their declarations. Each
// resource appears once in the result, in first-seen order. The collector is
// itself a Provider, so collectors nest.
type Collector struct {
	providers []Provider
	handler   errors.Handler
	logger    logging.Logger
}

// NewCollector creates a collector over providers. Group conflicts are
// reported to handler.
func NewCollector(providers []Provider, handler errors.Handler, logger logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Collector{
		providers: providers,
		handler:   handler,
		logger:    logger.WithComponent("collector"),
	}
}

// Collect implements Provider. The returned token is a CollectorToken keyed
// by provider index. A previous token holding an index that no longer names
// a provider is discarded entirely.
//
// When the same resource is declared with different groups, the conflict is
// reported to the error handler and the first group wins.
func (c *Collector) Collect(ctx context.Context, previous Token) (Collection, error) {
	prev, err := collectorToken(previous)
	if err != nil {
		return Collection{}, err
	}
	for i := range prev {
		if i < 0 || i >= len(c.providers) {
			c.logger.Debug(ctx, "Provider set changed, discarding cache", "index", i)
			prev = nil

			break
		}
	}

	token := make(CollectorToken, len(c.providers))
	var assets []Declaration
	index := make(map[string]int)

	for i, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return Collection{}, err
		}

		result, err := provider.Collect(ctx, prev[i])
		if err != nil {
			return Collection{}, err
		}
		token[i] = result.Token

		for _, d := range result.Assets {
			pos, ok := index[d.Resource]
			if !ok {
				index[d.Resource] = len(assets)
				assets = append(assets, d)

				continue
			}
			if first := assets[pos].Group; first != d.Group {
				if herr := c.handler.Handle(ctx, errors.NewGroupConflictError(d.Resource, first, d.Group)); herr != nil {
					return Collection{}, herr
				}
			}
		}
	}

	c.logger.Debug(ctx, "Collected assets", "providers", len(c.providers), "assets", len(assets))

	return Collection{Assets: assets, Token: token}, nil
}

func collectorToken(previous Token) (CollectorToken, error) {
	if previous == nil {
		return nil, nil
	}

	t, ok := previous.(CollectorToken)
	if !ok {
		return nil, errors.NewInvalidContextError(fmt.Sprintf("expected collector token, got %T", previous))
	}

	return t, nil
}
