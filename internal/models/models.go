package models

import (
	"slices"
	"strings"
	"time"
)

// Source identifies the retrieval path that produced a price.
type Source string

const (
	SourceAPI Source = "api"
	SourceL2  Source = "l2"
	SourceL1  Source = "l1"
)

// PriceData is the oracle price record.
// Price is kept as a decimal string to avoid float rounding.
type PriceData struct {
	Token                string `json:"token"`
	Price                string `json:"price"`
	Decimals             string `json:"decimals"`
	AggregationTimestamp string `json:"aggregationTimestamp"`
	Signature            string `json:"signature"`
	Oracle               string `json:"oracle"`
}

// ClientResult is what every client retrieval method returns.
type ClientResult struct {
	Source    Source    `json:"source"`
	PriceData PriceData `json:"price_data"`
}

// PriceRecord is a ClientResult as persisted by an output handler.
type PriceRecord struct {
	ID         int64     `json:"id,omitempty"`
	Token      string    `json:"token"`
	Source     Source    `json:"source"`
	Price      string    `json:"price"`
	Decimals   string    `json:"decimals"`
	Signature  string    `json:"signature,omitempty"`
	Oracle     string    `json:"oracle"`
	Aggregated string    `json:"aggregation_timestamp"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NewPriceRecord flattens a result for storage.
func NewPriceRecord(res *ClientResult, fetchedAt time.Time) *PriceRecord {
	return &PriceRecord{
		Token:      res.PriceData.Token,
		Source:     res.Source,
		Price:      res.PriceData.Price,
		Decimals:   res.PriceData.Decimals,
		Signature:  res.PriceData.Signature,
		Oracle:     res.PriceData.Oracle,
		Aggregated: res.PriceData.AggregationTimestamp,
		FetchedAt:  fetchedAt,
	}
}

// SupportedTokens lists the tokens the oracle aggregates, in on-chain index order.
var SupportedTokens = []string{
	"mina",
	"bitcoin",
	"ethereum",
	"solana",
	"ripple",
	"cardano",
	"avalanche",
	"polygon",
	"chainlink",
	"dogecoin",
}

// NormalizeToken lowercases and trims a token name.
func NormalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// IsSupportedToken reports whether token is served by the oracle.
func IsSupportedToken(token string) bool {
	return TokenIndex(token) >= 0
}

// TokenIndex returns the position of token in SupportedTokens, or -1.
func TokenIndex(token string) int {
	return slices.Index(SupportedTokens, NormalizeToken(token))
}
