// internal/models/answer.go
package models

// Engine/source markers for an Answer.
const (
	EngineMarketData = "market_data"
	EngineGenerator  = "generator"
)

// Answer is the engine's response to one question.
type Answer struct {
	QueryID   string    `json:"queryId"`
	QueryType QueryType `json:"queryType"`
	Entities  Entities  `json:"entities"`
	Content   string    `json:"content"`
	ModelUsed string    `json:"modelUsed,omitempty"`
	Engine    string    `json:"engine"`
	CacheHit  bool      `json:"cacheHit"`
	TookMs    int64     `json:"tookMs"`
}
