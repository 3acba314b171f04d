package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubPayloadClient dispatches per-city behavior without real HTTP.
type stubPayloadClient struct {
	fetch func(ctx context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error)
}

func (s *stubPayloadClient) FetchPayload(ctx context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
	return s.fetch(ctx, loc)
}

// stubSink records saves and can be forced to fail.
type stubSink struct {
	saved map[string][]byte
	err   error
}

func newStubSink() *stubSink {
	return &stubSink{saved: make(map[string][]byte)}
}

func (s *stubSink) Save(_ context.Context, city string, payload []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved[city] = payload
	return "/raw/" + city + ".json", nil
}

func threeCities() []types.Location {
	return []types.Location{
		{Name: "Delhi"},
		{Name: "Mumbai"},
		{Name: "Kolkata"},
	}
}

func cityPayload(city string) *types.HourlyPayload {
	return &types.HourlyPayload{City: city, Hourly: &types.HourlySeries{}}
}

func TestFetchAllOneLocationFailsOthersSurvive(t *testing.T) {
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			if loc.Name == "Mumbai" {
				return nil, nil, 3, types.NewAppError(types.ErrCodeUpstreamUnavailable, "fetch failed after retries", nil)
			}
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	sink := newStubSink()
	f := NewFetcher(FetcherConfig{
		Client:    client,
		Sink:      sink,
		Locations: threeCities(),
		Logger:    testLogger(),
	})

	results := f.FetchAll(context.Background())
	require.Len(t, results, 3)

	// One result per location, in configured order.
	assert.Equal(t, "Delhi", results[0].Location.Name)
	assert.Equal(t, "Mumbai", results[1].Location.Name)
	assert.Equal(t, "Kolkata", results[2].Location.Name)

	assert.True(t, results[0].Success)
	assert.Equal(t, "/raw/Delhi.json", results[0].RawPath)

	assert.False(t, results[1].Success)
	assert.Nil(t, results[1].Payload)
	assert.Equal(t, 3, results[1].Attempts)
	assert.Contains(t, results[1].Err, "fetch failed after retries")

	assert.True(t, results[2].Success)
	require.NotNil(t, results[2].Payload)
	assert.Equal(t, "Kolkata", results[2].Payload.City)

	// The failed location never reached the sink.
	assert.Len(t, sink.saved, 2)
	assert.NotContains(t, sink.saved, "Mumbai")
}

func TestFetchAllSinkFailureIsNonFatal(t *testing.T) {
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	sink := newStubSink()
	sink.err = errors.New("disk full")
	f := NewFetcher(FetcherConfig{
		Client:    client,
		Sink:      sink,
		Locations: threeCities()[:1],
		Logger:    testLogger(),
	})

	results := f.FetchAll(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, "archival failure must not fail the fetch")
	assert.Empty(t, results[0].RawPath)
	require.NotNil(t, results[0].Payload)
}

func TestFetchAllWithoutSink(t *testing.T) {
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	f := NewFetcher(FetcherConfig{
		Client:    client,
		Locations: threeCities(),
		Logger:    testLogger(),
	})

	results := f.FetchAll(context.Background())
	require.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.Success)
		assert.Empty(t, res.RawPath)
	}
}

func TestFetchAllCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			// Cancel while the inter-location delay for the first
			// location is pending.
			cancel()
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	f := NewFetcher(FetcherConfig{
		Client:    client,
		Locations: threeCities(),
		Delay:     time.Hour,
		Logger:    testLogger(),
	})

	results := f.FetchAll(ctx)
	require.Len(t, results, 3, "result set stays one-per-location")
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.Contains(t, results[1].Err, "context canceled")
}

func TestFetchAllParallelPreservesLocationOrder(t *testing.T) {
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			if loc.Name == "Delhi" {
				// Make the first slot finish last.
				time.Sleep(20 * time.Millisecond)
			}
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	f := NewFetcher(FetcherConfig{
		Client:      client,
		Locations:   threeCities(),
		Concurrency: 3,
		Logger:      testLogger(),
	})

	results := f.FetchAll(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "Delhi", results[0].Location.Name)
	assert.Equal(t, "Mumbai", results[1].Location.Name)
	assert.Equal(t, "Kolkata", results[2].Location.Name)
	for _, res := range results {
		assert.True(t, res.Success)
	}
}

func TestFetchAllNoDelayAfterLastLocation(t *testing.T) {
	client := &stubPayloadClient{
		fetch: func(_ context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
			return cityPayload(loc.Name), []byte("{}"), 1, nil
		},
	}
	f := NewFetcher(FetcherConfig{
		Client:    client,
		Locations: threeCities()[:1],
		Delay:     time.Hour,
		Logger:    testLogger(),
	})

	done := make(chan []types.FetchResult, 1)
	go func() { done <- f.FetchAll(context.Background()) }()

	select {
	case results := <-done:
		require.Len(t, results, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch of the last location must not wait out the courtesy delay")
	}
}
