// internal/domain/horoscope/horoscope.go
package horoscope

// RawItem is one entry of the Oha-Asa daily ranking as fetched from the
// source, before translation.
type RawItem struct {
	Rank          string `json:"rank"`           // e.g. "1位"
	SignJP        string `json:"sign_jp"`        // e.g. "牡羊座"
	DescriptionJP string `json:"description_jp"` // Free-text fortune in Japanese
}

// RankedItem is one entry of the translated ranking handed to the publisher.
type RankedItem struct {
	Rank          string `json:"rank"`           // e.g. "1위"
	SignJP        string `json:"sign_jp"`        // Original sign label, kept for reference
	SignKO        string `json:"sign_ko"`        // e.g. "양자리"
	DescriptionKO string `json:"description_ko"` // Fortune in Korean
}

// ExpectedItemCount is how many signs the source publishes per day. Fewer is
// tolerated with a warning; zero is a hard failure for the day.
const ExpectedItemCount = 12
