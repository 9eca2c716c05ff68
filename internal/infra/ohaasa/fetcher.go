// internal/infra/ohaasa/fetcher.go
package ohaasa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"

	"github.com/sirupsen/logrus"
)

// Custom errors
var ErrSourceUnavailable = fmt.Errorf("no usable horoscope data from source")

// signCodeToJP maps the source's two-digit sign codes to Japanese sign names.
var signCodeToJP = map[string]string{
	"01": "牡羊座",
	"02": "牡牛座",
	"03": "双子座",
	"04": "蟹座",
	"05": "獅子座",
	"06": "乙女座",
	"07": "天秤座",
	"08": "蠍座",
	"09": "射手座",
	"10": "山羊座",
	"11": "水瓶座",
	"12": "魚座",
}

// sourceDocument mirrors the Oha-Asa JSON feed: a single-element array whose
// first object carries the day's entries under "detail".
type sourceDocument struct {
	Detail []sourceDetail `json:"detail"`
}

type sourceDetail struct {
	RankingNo     string `json:"ranking_no"`
	HoroscopeSt   string `json:"horoscope_st"`
	HoroscopeText string `json:"horoscope_text"`
}

// Fetcher retrieves today's ranking from the Oha-Asa JSON feed.
type Fetcher struct {
	httpClient *http.Client
	jsonURL    string
	pageURL    string // Referer the feed expects
	logger     *logrus.Entry
}

func NewFetcher(jsonURL, pageURL string, timeout time.Duration, logger *logrus.Entry) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		jsonURL:    jsonURL,
		pageURL:    pageURL,
		logger:     logger,
	}
}

// FetchToday downloads and parses the feed. Entries with missing fields are
// skipped with a warning; fewer than twelve usable entries is tolerated with
// a warning; zero is ErrSourceUnavailable.
func (f *Fetcher) FetchToday(ctx context.Context) ([]horoscope.RawItem, error) {
	f.logger.Info("Fetching today's ranking from source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.jsonURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build source request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json,text/javascript,*/*;q=0.01")
	req.Header.Set("Referer", f.pageURL)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var doc []sourceDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed feed: %v", ErrSourceUnavailable, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: feed is empty", ErrSourceUnavailable)
	}

	details := doc[0].Detail
	f.logger.WithField("detail_count", len(details)).Info("Source feed parsed")
	if len(details) != horoscope.ExpectedItemCount {
		f.logger.WithField("detail_count", len(details)).Warn("Unexpected number of detail entries in source feed")
	}

	items := make([]horoscope.RawItem, 0, len(details))
	for idx, d := range details {
		if d.RankingNo == "" || d.HoroscopeSt == "" || d.HoroscopeText == "" {
			f.logger.WithField("index", idx).Warn("Skipping detail entry with missing fields")
			continue
		}

		signJP, ok := signCodeToJP[d.HoroscopeSt]
		if !ok {
			signJP = fmt.Sprintf("不明な星座(%s)", d.HoroscopeSt)
		}

		items = append(items, horoscope.RawItem{
			Rank:          d.RankingNo + "位",
			SignJP:        signJP,
			DescriptionJP: strings.TrimSpace(strings.ReplaceAll(d.HoroscopeText, "\t", " ")),
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no usable detail entries", ErrSourceUnavailable)
	}
	if len(items) != horoscope.ExpectedItemCount {
		f.logger.WithField("item_count", len(items)).Warn("Collected fewer ranking items than expected")
	}
	return items, nil
}
