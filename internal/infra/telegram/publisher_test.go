package telegram

import (
	"fmt"
	"testing"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems(n int) []horoscope.RankedItem {
	items := make([]horoscope.RankedItem, n)
	for i := range items {
		items[i] = horoscope.RankedItem{
			Rank:          fmt.Sprintf("%d위", i+1),
			SignKO:        fmt.Sprintf("별자리%d", i+1),
			DescriptionKO: fmt.Sprintf("설명%d", i+1),
		}
	}
	return items
}

func TestSplitRanking(t *testing.T) {
	top, bottom := splitRanking(sampleItems(12))
	require.Len(t, top, 6)
	require.Len(t, bottom, 6)
	assert.Equal(t, "1위", top[0].Rank)
	assert.Equal(t, "7위", bottom[0].Rank)

	top, bottom = splitRanking(sampleItems(4))
	assert.Len(t, top, 4)
	assert.Empty(t, bottom)

	top, bottom = splitRanking(nil)
	assert.Empty(t, top)
	assert.Empty(t, bottom)
}

func TestFormatSummary(t *testing.T) {
	postedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	out := formatSummary(postedAt, sampleItems(12), "", "https://example.com/uranai")

	assert.Contains(t, out, "2025년 06월 01일")
	assert.Contains(t, out, "https://example.com/uranai")
	assert.Contains(t, out, "상위 랭킹")
	assert.Contains(t, out, "하위 랭킹")
	assert.Contains(t, out, "별자리1")
	assert.Contains(t, out, "별자리12")
	assert.NotContains(t, out, "설명1", "the summary carries no descriptions")
}

func TestFormatSummary_WithMention(t *testing.T) {
	postedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	out := formatSummary(postedAt, sampleItems(12), "@all", "https://example.com/uranai")
	assert.True(t, len(out) > 4 && out[:4] == "@all", "mention text leads the summary")
}

func TestFormatSummary_ShortRanking(t *testing.T) {
	postedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	out := formatSummary(postedAt, sampleItems(5), "", "https://example.com/uranai")
	assert.Contains(t, out, "상위 랭킹")
	assert.NotContains(t, out, "하위 랭킹", "no bottom section when six or fewer items")
}

func TestFormatDetails(t *testing.T) {
	out := formatDetails("🥇 1위 ~ 6위 상세 운세", sampleItems(6))
	assert.Contains(t, out, "1위 ~ 6위 상세 운세")
	assert.Contains(t, out, "1위 별자리1")
	assert.Contains(t, out, "설명6")
}

func TestFormatKoreanDate(t *testing.T) {
	assert.Equal(t, "2025년 06월 01일", formatKoreanDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, "2025년 12월 25일", formatKoreanDate(time.Date(2025, 12, 25, 0, 0, 0, 0, time.Local)))
}
