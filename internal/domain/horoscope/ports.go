// internal/domain/horoscope/ports.go
package horoscope

import "context"

// Fetcher retrieves today's raw ranking from the source. Implementations own
// their own retry policy, if any.
type Fetcher interface {
	FetchToday(ctx context.Context) ([]RawItem, error)
}

// Translator turns the raw Japanese ranking into the Korean one using the
// guild's credential. Implementations are expected to be slow (network calls
// plus retries) and must be called off any latency-sensitive path.
type Translator interface {
	Translate(ctx context.Context, items []RawItem, apiKey string) ([]RankedItem, error)
}
