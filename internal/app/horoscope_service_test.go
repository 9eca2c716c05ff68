package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int32
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchToday(ctx context.Context) ([]horoscope.RawItem, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	items := make([]horoscope.RawItem, horoscope.ExpectedItemCount)
	for i := range items {
		items[i] = horoscope.RawItem{
			Rank:          fmt.Sprintf("%d位", i+1),
			SignJP:        fmt.Sprintf("星座%d", i+1),
			DescriptionJP: "desc",
		}
	}
	return items, nil
}

type fakeTranslator struct {
	calls int32
	err   error
}

func (t *fakeTranslator) Translate(ctx context.Context, items []horoscope.RawItem, apiKey string) ([]horoscope.RankedItem, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.err != nil {
		return nil, t.err
	}
	out := make([]horoscope.RankedItem, len(items))
	for i, item := range items {
		out[i] = horoscope.RankedItem{
			Rank:          fmt.Sprintf("%d위", i+1),
			SignJP:        item.SignJP,
			SignKO:        fmt.Sprintf("별자리%d", i+1),
			DescriptionKO: "번역된 설명",
		}
	}
	return out, nil
}

func newTestHoroscopeService(f *fakeFetcher, tr *fakeTranslator) *HoroscopeService {
	return NewHoroscopeService(f, tr, testLogger())
}

func TestHoroscopeService_SecondCallServedFromCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	translator := &fakeTranslator{}
	svc := newTestHoroscopeService(fetcher, translator)

	first, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)
	require.Len(t, first, horoscope.ExpectedItemCount)

	second, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls), "cache hit must not reach the source")
	assert.Equal(t, int32(1), atomic.LoadInt32(&translator.calls))
}

func TestHoroscopeService_FailureIsNotCached(t *testing.T) {
	fetcher := &fakeFetcher{}
	translator := &fakeTranslator{err: fmt.Errorf("translation down")}
	svc := newTestHoroscopeService(fetcher, translator)

	_, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.Error(t, err)

	translator.err = nil
	items, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err, "a failed run must not poison the cache")
	assert.Len(t, items, horoscope.ExpectedItemCount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestHoroscopeService_GuildsCachedIndependently(t *testing.T) {
	fetcher := &fakeFetcher{}
	translator := &fakeTranslator{}
	svc := newTestHoroscopeService(fetcher, translator)

	_, err := svc.GetOrCompute(context.Background(), 1, "key-a")
	require.NoError(t, err)
	_, err = svc.GetOrCompute(context.Background(), 2, "key-b")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls), "each guild computes its own entry")
}

func TestHoroscopeService_DayRolloverInvalidatesCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	translator := &fakeTranslator{}
	svc := newTestHoroscopeService(fetcher, translator)

	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return day }

	_, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)

	svc.now = func() time.Time { return day.AddDate(0, 0, 1) }
	_, err = svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls), "yesterday's entry is a miss today")
}

func TestHoroscopeService_ConcurrentCallsCollapse(t *testing.T) {
	fetcher := &fakeFetcher{delay: 30 * time.Millisecond}
	translator := &fakeTranslator{}
	svc := newTestHoroscopeService(fetcher, translator)

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]horoscope.RankedItem, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrCompute(context.Background(), 1, "key")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], horoscope.ExpectedItemCount)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls), "racing callers must share a single pipeline run")
	assert.Equal(t, int32(1), atomic.LoadInt32(&translator.calls))
}

func TestHoroscopeService_CachedResultIsDetached(t *testing.T) {
	fetcher := &fakeFetcher{}
	translator := &fakeTranslator{}
	svc := newTestHoroscopeService(fetcher, translator)

	first, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)
	first[0].SignKO = "변조됨"

	second, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.NoError(t, err)
	assert.Equal(t, "별자리1", second[0].SignKO, "a caller mutating its result must not reach the cached entry")
}

func TestHoroscopeService_WinnerCancellationDoesNotFailWaiters(t *testing.T) {
	fetcher := &gatedFetcher{release: make(chan struct{})}
	translator := &fakeTranslator{}
	svc := NewHoroscopeService(fetcher, translator, testLogger())

	winnerCtx, cancelWinner := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var waiterItems []horoscope.RankedItem
	var winnerErr, waiterErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, winnerErr = svc.GetOrCompute(winnerCtx, 1, "key")
	}()
	time.Sleep(20 * time.Millisecond) // let the winner enter the pipeline
	cancelWinner()

	wg.Add(1)
	go func() {
		defer wg.Done()
		waiterItems, waiterErr = svc.GetOrCompute(context.Background(), 1, "key")
	}()
	time.Sleep(20 * time.Millisecond) // let the waiter join the flight
	close(fetcher.release)
	wg.Wait()

	require.NoError(t, winnerErr)
	require.NoError(t, waiterErr, "a waiter must not inherit the winner's cancellation")
	assert.Len(t, waiterItems, horoscope.ExpectedItemCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

// gatedFetcher blocks until released, failing fast if its context dies first.
type gatedFetcher struct {
	calls   int32
	release chan struct{}
}

func (f *gatedFetcher) FetchToday(ctx context.Context) ([]horoscope.RawItem, error) {
	atomic.AddInt32(&f.calls, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
	}
	items := make([]horoscope.RawItem, horoscope.ExpectedItemCount)
	for i := range items {
		items[i] = horoscope.RawItem{
			Rank:          fmt.Sprintf("%d位", i+1),
			SignJP:        fmt.Sprintf("星座%d", i+1),
			DescriptionJP: "desc",
		}
	}
	return items, nil
}

func TestHoroscopeService_EmptyTranslationIsError(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := NewHoroscopeService(fetcher, emptyTranslator{}, testLogger())

	_, err := svc.GetOrCompute(context.Background(), 1, "key")
	require.Error(t, err)

	// Nothing was cached, so a later call runs the pipeline again.
	_, err = svc.GetOrCompute(context.Background(), 1, "key")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

type emptyTranslator struct{}

func (emptyTranslator) Translate(ctx context.Context, items []horoscope.RawItem, apiKey string) ([]horoscope.RankedItem, error) {
	return []horoscope.RankedItem{}, nil
}
