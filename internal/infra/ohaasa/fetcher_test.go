package ohaasa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("test", true)
}

func feedBody(t *testing.T, details []sourceDetail) []byte {
	t.Helper()
	body, err := json.Marshal([]sourceDocument{{Detail: details}})
	require.NoError(t, err)
	return body
}

func fullFeed() []sourceDetail {
	details := make([]sourceDetail, 12)
	for i := range details {
		details[i] = sourceDetail{
			RankingNo:     fmt.Sprintf("%d", i+1),
			HoroscopeSt:   fmt.Sprintf("%02d", i+1),
			HoroscopeText: fmt.Sprintf("運勢テキスト%d", i+1),
		}
	}
	return details
}

func newTestFetcher(jsonURL string) *Fetcher {
	return NewFetcher(jsonURL, "https://example.com/uranai", 5*time.Second, testLogger())
}

func TestFetchToday_FullRanking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/uranai", r.Header.Get("Referer"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write(feedBody(t, fullFeed()))
	}))
	defer srv.Close()

	items, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 12)
	assert.Equal(t, "1位", items[0].Rank)
	assert.Equal(t, "牡羊座", items[0].SignJP)
	assert.Equal(t, "運勢テキスト1", items[0].DescriptionJP)
	assert.Equal(t, "12位", items[11].Rank)
	assert.Equal(t, "魚座", items[11].SignJP)
}

func TestFetchToday_SkipsIncompleteEntries(t *testing.T) {
	details := fullFeed()
	details[3].HoroscopeText = ""
	details[7].RankingNo = ""

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(feedBody(t, details))
	}))
	defer srv.Close()

	items, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	require.NoError(t, err, "a partial ranking is still usable")
	assert.Len(t, items, 10)
}

func TestFetchToday_UnknownSignCode(t *testing.T) {
	details := fullFeed()
	details[0].HoroscopeSt = "99"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(feedBody(t, details))
	}))
	defer srv.Close()

	items, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "不明な星座(99)", items[0].SignJP)
}

func TestFetchToday_NormalizesDescription(t *testing.T) {
	details := fullFeed()
	details[0].HoroscopeText = "\t 今日は\tラッキー \t"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(feedBody(t, details))
	}))
	defer srv.Close()

	items, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "今日は ラッキー", items[0].DescriptionJP)
}

func TestFetchToday_NoUsableEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(feedBody(t, []sourceDetail{{RankingNo: "1"}, {HoroscopeSt: "02"}}))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchToday_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchToday_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchToday_SourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchToday(context.Background())

	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
