package models

// RetrievedPassage is a document chunk returned by the vector index.
type RetrievedPassage struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Title  string  `json:"title,omitempty"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}
