// internal/infra/gemini/client.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"

	"github.com/sirupsen/logrus"
)

// Custom errors
var ErrCredentialMissing = fmt.Errorf("gemini API key is not configured")
var ErrTranslationUnavailable = fmt.Errorf("translation service unavailable")

const maxAttempts = 3

const systemPrompt = "You are an expert translator specializing in Japanese-to-Korean horoscopes. " +
	"The input is a JSON string containing horoscope rankings and descriptions in Japanese. " +
	"Translate ALL Japanese text into natural, easy-to-read Korean. " +
	"Keep the structure (rank, sign, description) and output a JSON array of objects with " +
	"fields: rank, sign_ko, description_ko. " +
	"Return ONLY the raw JSON array."

// responseSchema constrains the model output to a JSON array of
// {rank, sign_ko, description_ko} so the reply parses directly into structs
// without free-form text extraction.
var responseSchema = map[string]interface{}{
	"type": "ARRAY",
	"items": map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"rank":           map[string]interface{}{"type": "STRING", "description": "Ranking in Korean, e.g. '1위'"},
			"sign_ko":        map[string]interface{}{"type": "STRING", "description": "Korean name of the zodiac sign, e.g. '양자리'"},
			"description_ko": map[string]interface{}{"type": "STRING", "description": "Full horoscope description in Korean"},
		},
		"required": []string{"rank", "sign_ko", "description_ko"},
	},
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string      `json:"responseMimeType"`
	ResponseSchema   interface{} `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type translatedItem struct {
	Rank          string `json:"rank"`
	SignKO        string `json:"sign_ko"`
	DescriptionKO string `json:"description_ko"`
}

// Client calls the Gemini generateContent endpoint to translate the daily
// ranking. Stateless across calls; the per-guild API key is passed per request.
type Client struct {
	httpClient *http.Client
	apiURL     string
	logger     *logrus.Entry

	// retryDelay is the linear backoff base: attempt n waits n*retryDelay.
	retryDelay time.Duration
}

func NewClient(apiURL string, timeout time.Duration, logger *logrus.Entry) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Translate sends the raw Japanese ranking and returns the Korean one.
// Server-side faults (5xx) and transport errors are retried up to 3 attempts
// with linear backoff (1s, 2s); any other status fails immediately. All
// failure paths resolve to an error value wrapping ErrTranslationUnavailable
// or ErrCredentialMissing.
func (c *Client) Translate(ctx context.Context, items []horoscope.RawItem, apiKey string) ([]horoscope.RankedItem, error) {
	if apiKey == "" {
		return nil, ErrCredentialMissing
	}

	rawJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ranking for translation: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents:          []content{{Parts: []part{{Text: string(rawJSON)}}}},
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		translated, retryable, err := c.attempt(ctx, body, apiKey)
		if err == nil {
			return mergeSigns(items, translated), nil
		}
		lastErr = err

		if !retryable {
			c.logger.WithError(err).Error("Translation request failed; not retrying")
			return nil, err
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).Warn("Translation attempt failed")

		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTranslationUnavailable, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", ErrTranslationUnavailable, lastErr)
}

// attempt performs one request. The second return value reports whether the
// failure class is worth another attempt.
func (c *Client) attempt(ctx context.Context, body []byte, apiKey string) ([]translatedItem, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s?key=%s", c.apiURL, apiKey), bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failure: transport-level, retryable.
		return nil, true, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		errText, _ := io.ReadAll(resp.Body)
		return nil, true, fmt.Errorf("%w: server error (status %d): %s", ErrTranslationUnavailable, resp.StatusCode, errText)
	}
	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrTranslationUnavailable, resp.StatusCode, errText)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, true, fmt.Errorf("%w: malformed response: %v", ErrTranslationUnavailable, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, true, fmt.Errorf("%w: response has no candidates", ErrTranslationUnavailable)
	}

	var translated []translatedItem
	if err := json.Unmarshal([]byte(parsed.Candidates[0].Content.Parts[0].Text), &translated); err != nil {
		return nil, true, fmt.Errorf("%w: candidate is not a valid JSON array: %v", ErrTranslationUnavailable, err)
	}
	if len(translated) == 0 {
		return nil, true, fmt.Errorf("%w: empty translation result", ErrTranslationUnavailable)
	}

	return translated, false, nil
}

// mergeSigns zips the translated items with the source ranking so the result
// keeps the original Japanese sign label alongside the Korean one.
func mergeSigns(raw []horoscope.RawItem, translated []translatedItem) []horoscope.RankedItem {
	out := make([]horoscope.RankedItem, len(translated))
	for i, t := range translated {
		out[i] = horoscope.RankedItem{
			Rank:          t.Rank,
			SignKO:        t.SignKO,
			DescriptionKO: t.DescriptionKO,
		}
		if i < len(raw) {
			out[i].SignJP = raw[i].SignJP
		}
	}
	return out
}
