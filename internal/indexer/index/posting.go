package index

import "maps"

// Document is a unit of indexed content. Fields maps a field name (for
// example "content" or "filename") to its text.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: maps.Clone(d.Fields)}
}

// Posting records how often a term occurs in one field of one document.
// Doc is the document's insertion position in the index.
type Posting struct {
	Doc       int `json:"doc"`
	Frequency int `json:"freq"`
}

type PostingList []Posting

// FieldStats summarises one text field across the corpus.
type FieldStats struct {
	Field        string  `json:"field"`
	Terms        int     `json:"terms"`
	TotalTokens  int     `json:"total_tokens"`
	AvgDocLength float64 `json:"avg_doc_length"`
}
