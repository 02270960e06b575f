package models

// Match is a single vector search hit. Page is 0-based.
type Match struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// PageInfo is the surfaced form of a match; Page is 1-based.
type PageInfo struct {
	Page      int     `json:"page"`
	Relevance float64 `json:"relevance"`
	Text      string  `json:"text"`
}

// Sources groups page hits by filename.
type Sources map[string][]PageInfo
