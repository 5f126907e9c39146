package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mev_engine/internal/core"
	"mev_engine/internal/engine/processor"
	"mev_engine/internal/trading/arbitrage"
	"mev_engine/pkg/liveserver"
)

// ScanEntry is the published summary of one scanned route
type ScanEntry struct {
	Route          string `json:"route"`
	Opportunity    bool   `json:"opportunity"`
	AdjustedProfit string `json:"adjusted_profit,omitempty"`
	FinalValue     uint64 `json:"final_value,omitempty,string"`
	Error          string `json:"error,omitempty"`
}

// BuildRoutes turns configured triangles into evaluator routes. Every leg of a
// route is priced on its venue.
func BuildRoutes(cfg *Config, venues *VenueRegistry) ([]arbitrage.Route, error) {
	routes := make([]arbitrage.Route, 0, len(cfg.Scanner.Routes))
	for i, rc := range cfg.Scanner.Routes {
		venue, ok := venues.Venue(rc.Venue)
		if !ok {
			return nil, fmt.Errorf("route %d: unknown venue %q", i, rc.Venue)
		}
		if len(rc.Tokens) != 3 {
			return nil, fmt.Errorf("route %d: need three tokens, got %d", i, len(rc.Tokens))
		}

		var keys [3]core.Pubkey
		for j, name := range rc.Tokens {
			key, err := cfg.TokenKey(name)
			if err != nil {
				return nil, fmt.Errorf("route %d: %w", i, err)
			}
			keys[j] = key
		}

		name := rc.Name
		if name == "" {
			name = rc.Venue + ":" + strings.Join(rc.Tokens, ">")
		}
		routes = append(routes, arbitrage.Route{
			Name: name,
			Legs: [3]arbitrage.Leg{
				{Quoter: venue, TokenIn: keys[0], TokenOut: keys[1]},
				{Quoter: venue, TokenIn: keys[1], TokenOut: keys[2]},
				{Quoter: venue, TokenIn: keys[2], TokenOut: keys[0]},
			},
			Amount: rc.Amount,
		})
	}
	return routes, nil
}

// ScanLoop evaluates the configured routes on a fixed interval and streams
// the ranked results.
type ScanLoop struct {
	scanner  *arbitrage.RouteScanner
	routes   []arbitrage.Route
	interval time.Duration
	events   processor.EventPublisher
	logger   core.ILogger
}

func NewScanLoop(scanner *arbitrage.RouteScanner, routes []arbitrage.Route, interval time.Duration, events processor.EventPublisher, logger core.ILogger) *ScanLoop {
	return &ScanLoop{
		scanner:  scanner,
		routes:   routes,
		interval: interval,
		events:   events,
		logger:   logger.WithField("component", "scan_loop"),
	}
}

// RunOnce scans every route and publishes the summary
func (l *ScanLoop) RunOnce(ctx context.Context) []ScanEntry {
	results := l.scanner.Scan(ctx, l.routes)
	entries := make([]ScanEntry, len(results))
	for i, r := range results {
		e := ScanEntry{Route: r.Route.Name}
		switch {
		case r.Err != nil:
			e.Error = r.Err.Error()
		case r.Decision != nil:
			e.Opportunity = r.Decision.Opportunity
			e.AdjustedProfit = r.Decision.AdjustedProfit.String()
			if r.Decision.FinalArbitrageValue != nil {
				e.FinalValue = *r.Decision.FinalArbitrageValue
			}
		}
		entries[i] = e
	}
	if l.events != nil {
		l.events.Publish(liveserver.TypeScan, entries)
	}
	return entries
}

func (l *ScanLoop) Run(ctx context.Context) error {
	l.logger.Info("Starting route scanner", "routes", len(l.routes), "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}
