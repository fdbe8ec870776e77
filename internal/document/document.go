package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role describes which side of the comparison a document belongs to.
type Role string

const (
	RoleRFP            Role = "rfp"
	RoleCompanyProfile Role = "company_profile"
)

// ErrEmptyDocument is returned when an ingested document contains no usable text.
var ErrEmptyDocument = errors.New("document contains no usable text")

// Document is a single ingested document with already-extracted plain text.
// Extraction (PDF/DOCX decoding, encoding handling) happens upstream; the
// pipeline only ever sees plain text.
type Document struct {
	ID   string
	Role Role
	Name string
	Text string
}

// New validates the extracted text and wraps it into a Document.
// Whitespace-only input is rejected before any embedding work starts.
func New(role Role, name, text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s document %q: %w", role, name, ErrEmptyDocument)
	}

	return &Document{
		ID:   uuid.NewString(),
		Role: role,
		Name: name,
		Text: text,
	}, nil
}

// Chunk is a bounded text segment of a document, the unit of embedding and
// retrieval. Chunks ordered by Seq reconstruct the normalized document text
// modulo the leading OverlapWords of each chunk.
type Chunk struct {
	ID           string
	DocumentID   string
	Seq          int
	Text         string
	OverlapWords int
}

// Match pairs a retrieved chunk with its similarity score.
type Match struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is an ordered sequence of matches, descending by score.
// It is created per query and never persisted.
type RetrievalResult struct {
	Matches []Match
}

func (r RetrievalResult) Len() int {
	return len(r.Matches)
}

// Best returns the highest-scored match, if any.
func (r RetrievalResult) Best() (Match, bool) {
	if len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}

// ChunkIDs returns the retrieved chunk ids in rank order.
func (r RetrievalResult) ChunkIDs() []string {
	ids := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		ids = append(ids, m.Chunk.ID)
	}

	return ids
}
