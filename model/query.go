package model

// Default and maximum result-count bounds for a query. Requests with TopK
// zero fall back to the default; requests beyond the maximum are rejected by
// the query engine.
const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// QueryRequest is the caller-facing research request.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Citation is one provenance-tagged entry of a ranked answer.
type Citation struct {
	Source      string      `json:"source"`
	PageNumber  int         `json:"page_number"`
	Text        string      `json:"text"`
	ElementType ElementType `json:"element_type"`
	Score       float32     `json:"score"`
}

// QueryResponse carries the ordered citations, the synthesized reasoning
// text, and the original query echoed back.
type QueryResponse struct {
	Citations []Citation `json:"citations"`
	Reasoning string     `json:"reasoning"`
	Query     string     `json:"query"`
}
