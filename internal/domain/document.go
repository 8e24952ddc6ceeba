package domain

import "strings"

// EmbeddingDimensions is the vector size stored in documentos_dj.embedding.
const EmbeddingDimensions = 768

// Well-known metadata keys produced by the ingestion cleaner.
const (
	MetaKeyStatus  = "estado de oferta"
	MetaKeyIDExcel = "id_excel"
	MetaKeyCode    = "codigo de oferta"
)

// Document is a tender record as stored in the document table.
type Document struct {
	ID         int64             `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Embedding  []float32         `json:"-"`
	Similarity float64           `json:"similarity,omitempty"`
}

// Provenance tags how an evidence item was found.
type Provenance string

const (
	ProvenanceIDMatch Provenance = "id-match"
	ProvenanceVector  Provenance = "vector"
)

// ExactProvenance tags a substring hit on the given metadata field.
func ExactProvenance(field string) Provenance {
	return Provenance("exact:" + field)
}

// IsExact reports whether the tag comes from the exact matcher.
func (p Provenance) IsExact() bool {
	return p == ProvenanceIDMatch || strings.HasPrefix(string(p), "exact:")
}

// EvidenceItem is a retrieved document annotated with its provenance.
type EvidenceItem struct {
	Document   Document
	Provenance Provenance
}

// DefaultValidStates is returned when the status sample cannot be read.
var DefaultValidStates = []string{"PENDIENTE", "ADJUDICADO", "NO ADJUDICADO"}
