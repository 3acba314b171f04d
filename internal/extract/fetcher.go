package extract

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"airwatch/internal/types"
)

// PayloadClient abstracts the per-location retrieval so the Fetcher can be
// tested without real HTTP. Production code uses *Client.
type PayloadClient interface {
	FetchPayload(ctx context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error)
}

// RawSink persists a successful raw payload and returns a storage handle.
// Persistence failure never fails the fetch: the Fetcher's contract is
// satisfied by returning the payload in memory.
type RawSink interface {
	Save(ctx context.Context, city string, payload []byte) (string, error)
}

// Fetcher retrieves the hourly payload for each configured location,
// tolerating per-location failure. One bad location never blocks the rest
// of the run.
type Fetcher struct {
	client      PayloadClient
	sink        RawSink // optional
	locations   []types.Location
	delay       time.Duration
	concurrency int
	logger      *slog.Logger
}

// FetcherConfig holds the configuration for creating a Fetcher.
type FetcherConfig struct {
	Client    PayloadClient
	Sink      RawSink
	Locations []types.Location

	// Delay is the inter-location courtesy pause. Only applied in
	// sequential mode (Concurrency <= 1).
	Delay time.Duration

	// Concurrency bounds the fetch worker pool. Values <= 1 fetch
	// strictly in sequence. Result ordering is by configured location
	// order in both modes, keeping downstream tie-breaks deterministic.
	Concurrency int

	Logger *slog.Logger
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:      cfg.Client,
		sink:        cfg.Sink,
		locations:   cfg.Locations,
		delay:       cfg.Delay,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// FetchAll retrieves payloads for every configured location and returns
// one FetchResult per location, in configured location order. Failures are
// recorded, never raised: the caller decides what to do with a partial
// result set.
func (f *Fetcher) FetchAll(ctx context.Context) []types.FetchResult {
	if f.concurrency > 1 {
		return f.fetchParallel(ctx)
	}
	return f.fetchSequential(ctx)
}

func (f *Fetcher) fetchSequential(ctx context.Context) []types.FetchResult {
	results := make([]types.FetchResult, 0, len(f.locations))
	for i, loc := range f.locations {
		results = append(results, f.fetchOne(ctx, loc))
		if f.delay > 0 && i < len(f.locations)-1 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				// Remaining locations are recorded as failures so the
				// result set stays one-per-location.
				for _, rest := range f.locations[i+1:] {
					results = append(results, types.FetchResult{
						Location: rest,
						Err:      ctx.Err().Error(),
					})
				}
				return results
			}
		}
	}
	return results
}

// fetchParallel fetches locations through a bounded worker pool. Results
// land in their location's slot, so ordering is identical to sequential
// mode and KPI tie-breaks stay deterministic.
func (f *Fetcher) fetchParallel(ctx context.Context) []types.FetchResult {
	results := make([]types.FetchResult, len(f.locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, loc := range f.locations {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, loc)
			return nil
		})
	}
	// Workers never return errors; failures are recorded in the results.
	_ = g.Wait()

	return results
}

// fetchOne retrieves a single location's payload and archives the raw body.
func (f *Fetcher) fetchOne(ctx context.Context, loc types.Location) types.FetchResult {
	payload, body, attempts, err := f.client.FetchPayload(ctx, loc)
	if err != nil {
		f.logger.Warn("location fetch failed",
			"city", loc.Name,
			"attempts", attempts,
			"error", err,
		)
		return types.FetchResult{
			Location: loc,
			Attempts: attempts,
			Err:      err.Error(),
		}
	}

	result := types.FetchResult{
		Location: loc,
		Success:  true,
		Payload:  payload,
		Attempts: attempts,
	}

	if f.sink != nil && body != nil {
		path, sinkErr := f.sink.Save(ctx, loc.Name, body)
		if sinkErr != nil {
			f.logger.Warn("raw payload archive failed",
				"city", loc.Name,
				"error", sinkErr,
			)
		} else {
			result.RawPath = path
		}
	}

	f.logger.Info("location fetched",
		"city", loc.Name,
		"attempts", attempts,
		"raw_path", result.RawPath,
	)

	return result
}
