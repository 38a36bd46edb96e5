package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
)

// Chain tries cumulative sources in order and returns the first success.
// Teams may override the default order.
type Chain struct {
	defaults  []CumulativeSource
	overrides map[string][]CumulativeSource
	logger    zerolog.Logger
}

// NewChain builds a chain over the default source order.
func NewChain(defaults []CumulativeSource, logger zerolog.Logger) *Chain {
	return &Chain{
		defaults:  defaults,
		overrides: make(map[string][]CumulativeSource),
		logger:    logger.With().Str("component", "source_chain").Logger(),
	}
}

// Override sets the source order used for one team. Team names match case-insensitively.
func (c *Chain) Override(team string, sources ...CumulativeSource) {
	c.overrides[strings.ToLower(team)] = sources
}

// Name identifies the chain in logs.
func (c *Chain) Name() string { return "chain" }

// FetchCumulative walks the sources for the player's team. A source that
// fails or panics is logged and skipped.
func (c *Chain) FetchCumulative(ctx context.Context, player model.Player) (model.Line, error) {
	sources, ok := c.overrides[strings.ToLower(player.Team)]
	if !ok {
		sources = c.defaults
	}

	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return model.Line{}, err
		}

		line, err := c.try(ctx, src, player)
		if err == nil {
			c.logger.Debug().Str("player", player.Name).Str("source", src.Name()).Msg("cumulative line fetched")
			return line, nil
		}

		event := c.logger.Info()
		if errors.Is(err, ErrPlayerNotFound) {
			event = c.logger.Debug()
		}
		event.Err(err).Str("player", player.Name).Str("team", player.Team).Str("source", src.Name()).Msg("source produced no line")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	if len(errs) == 0 {
		return model.Line{}, fmt.Errorf("%w: no sources configured for %q", ErrUnavailable, player.Team)
	}
	return model.Line{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (c *Chain) try(ctx context.Context, src CumulativeSource, player model.Player) (line model.Line, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()
	return src.FetchCumulative(ctx, player)
}

var _ CumulativeSource = (*Chain)(nil)
