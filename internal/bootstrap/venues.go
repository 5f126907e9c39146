package bootstrap

import (
	"context"
	"fmt"
	"time"

	"mev_engine/internal/core"
	"mev_engine/internal/venue/binance"
	"mev_engine/internal/venue/remote"
	"mev_engine/internal/venue/sim"
	apperrors "mev_engine/pkg/errors"
	apphttp "mev_engine/pkg/http"
)

// VenueRegistry resolves router accounts onto the configured venues
type VenueRegistry struct {
	byRouter map[core.Pubkey]core.IVenue
	byName   map[string]core.IVenue
	probes   map[string]func(context.Context) error
}

// Resolve implements core.IVenueResolver
func (r *VenueRegistry) Resolve(router core.Pubkey) (core.IVenue, error) {
	v, ok := r.byRouter[router]
	if !ok {
		return nil, fmt.Errorf("%w: no venue answers to router %s", apperrors.ErrInvalidAccountData, router)
	}
	return v, nil
}

// Venue looks a venue up by its configured name
func (r *VenueRegistry) Venue(name string) (core.IVenue, bool) {
	v, ok := r.byName[name]
	return v, ok
}

// Probes returns the reachability checks of out-of-process venues
func (r *VenueRegistry) Probes() map[string]func(context.Context) error {
	return r.probes
}

// BuildVenues instantiates every configured venue, wrapping those that take
// their quotes from Binance.
func BuildVenues(cfg *Config, logger core.ILogger) (*VenueRegistry, error) {
	reg := &VenueRegistry{
		byRouter: make(map[core.Pubkey]core.IVenue, len(cfg.Venues)),
		byName:   make(map[string]core.IVenue, len(cfg.Venues)),
		probes:   make(map[string]func(context.Context) error),
	}

	var quoter *binance.Quoter
	for _, name := range cfg.VenueNames() {
		vc := cfg.Venues[name]

		var venue core.IVenue
		switch vc.Kind {
		case "sim":
			sc, err := cfg.SimConfig(name)
			if err != nil {
				return nil, fmt.Errorf("venue %s: %w", name, err)
			}
			venue = sim.New(name, sc)
		case "remote":
			opts := apphttp.DefaultOptions()
			if vc.TimeoutMs > 0 {
				opts.Timeout = time.Duration(vc.TimeoutMs) * time.Millisecond
			}
			if vc.FailureThreshold > 0 {
				opts.FailureThreshold = vc.FailureThreshold
			}
			rv := remote.New(name, vc.BaseURL, opts, logger)
			reg.probes["venue."+name] = rv.Ping
			venue = rv
		default:
			return nil, fmt.Errorf("venue %s: unknown kind %q", name, vc.Kind)
		}

		if vc.Quotes == "binance" {
			if quoter == nil {
				markets, err := cfg.Markets()
				if err != nil {
					return nil, fmt.Errorf("binance markets: %w", err)
				}
				quoter = binance.NewQuoter(cfg.Binance.APIKey.Reveal(), cfg.Binance.SecretKey.Reveal(), cfg.Binance.BaseURL, markets, logger)
				reg.probes["quotes.binance"] = quoter.Ping
			}
			venue = binance.WithQuotes(venue, quoter)
		}

		router, err := cfg.RouterKey(name)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", name, err)
		}
		reg.byRouter[router] = venue
		reg.byName[name] = venue
		logger.Info("Venue ready", "venue", venue.Name(), "router", router)
	}
	return reg, nil
}
