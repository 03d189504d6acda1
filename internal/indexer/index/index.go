// Package index implements the per-field inverted index at the core of the
// search engine. An Index is built once from a batch of documents and is
// read-only afterwards, so any number of goroutines may query it without
// locking.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// State is the lifecycle phase of an Index.
type State int

const (
	StateEmpty State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config names the fields to tokenize and the fields to keep verbatim for
// exact-match filtering. A field may appear in both lists.
type Config struct {
	TextFields    []string `yaml:"textFields" json:"text_fields"`
	KeywordFields []string `yaml:"keywordFields" json:"keyword_fields"`
}

func (c Config) validate(op string) error {
	if len(c.TextFields) == 0 {
		return apperrors.E(op, apperrors.ErrConfiguration, "at least one text field is required")
	}
	return nil
}

// Index is an inverted index over an ordered sequence of documents.
// Insertion order is significant: it breaks ranking ties.
type Index struct {
	cfg         Config
	state       State
	docs        []Document
	postings    map[string]map[string]PostingList
	keywords    map[string][]string
	docLens     map[string][]int
	totalTokens map[string]int
	fingerprint string
}

// New returns an Empty index for the given field configuration.
func New(cfg Config) (*Index, error) {
	if err := cfg.validate("index.new"); err != nil {
		return nil, err
	}
	return &Index{cfg: cloneConfig(cfg), state: StateEmpty}, nil
}

// Build is a convenience for New followed by Fit.
func Build(docs []Document, textFields, keywordFields []string) (*Index, error) {
	idx, err := New(Config{TextFields: textFields, KeywordFields: keywordFields})
	if err != nil {
		return nil, err
	}
	if err := idx.Fit(docs); err != nil {
		return nil, err
	}
	return idx, nil
}

// Fit indexes docs and moves the index from Empty to Ready. It is not safe
// to call concurrently and fails if the index is already Ready; rebuilding
// means constructing a new Index.
func (idx *Index) Fit(docs []Document) error {
	if idx.state == StateReady {
		return apperrors.E("index.fit", apperrors.ErrConfiguration, "index already built; construct a new index to rebuild")
	}
	b, err := NewBuilder(idx.cfg)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			return err
		}
	}
	built, err := b.Build()
	if err != nil {
		return err
	}
	*idx = *built
	return nil
}

// State reports whether the index has been built.
func (idx *Index) State() State {
	return idx.state
}

// Config returns a copy of the field configuration.
func (idx *Index) Config() Config {
	return cloneConfig(idx.cfg)
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Doc returns a copy of the document at insertion position i.
func (idx *Index) Doc(i int) Document {
	return idx.docs[i].Clone()
}

// DocID returns the identifier of the document at insertion position i.
func (idx *Index) DocID(i int) string {
	return idx.docs[i].ID
}

// Fingerprint identifies the indexed content. Two indexes built from
// identical inputs share a fingerprint.
func (idx *Index) Fingerprint() string {
	return idx.fingerprint
}

// IsTextField reports whether field is tokenized by this index.
func (idx *Index) IsTextField(field string) bool {
	return slices.Contains(idx.cfg.TextFields, field)
}

// IsKeywordField reports whether field is stored for exact-match filtering.
func (idx *Index) IsKeywordField(field string) bool {
	return slices.Contains(idx.cfg.KeywordFields, field)
}

// Lookup returns the postings of term in field, ordered by document
// position. An absent term or field yields an empty list.
func (idx *Index) Lookup(term, field string) PostingList {
	return slices.Clone(idx.postingsFor(term, field))
}

// Postings is Lookup without the defensive copy. Callers must not modify
// the returned slice.
func (idx *Index) Postings(term, field string) PostingList {
	return idx.postingsFor(term, field)
}

func (idx *Index) postingsFor(term, field string) PostingList {
	terms, ok := idx.postings[field]
	if !ok {
		return nil
	}
	return terms[term]
}

// KeywordValue returns the verbatim value of a keyword field for the
// document at position doc.
func (idx *Index) KeywordValue(field string, doc int) (string, bool) {
	values, ok := idx.keywords[field]
	if !ok || doc < 0 || doc >= len(values) {
		return "", false
	}
	return values[doc], true
}

// DocLength returns the token count of field in the document at doc.
func (idx *Index) DocLength(field string, doc int) int {
	lens, ok := idx.docLens[field]
	if !ok || doc < 0 || doc >= len(lens) {
		return 0
	}
	return lens[doc]
}

// Stats returns per-field statistics in text-field order.
func (idx *Index) Stats() []FieldStats {
	stats := make([]FieldStats, 0, len(idx.cfg.TextFields))
	for _, field := range idx.cfg.TextFields {
		fs := FieldStats{
			Field:       field,
			Terms:       len(idx.postings[field]),
			TotalTokens: idx.totalTokens[field],
		}
		if len(idx.docs) > 0 {
			fs.AvgDocLength = float64(fs.TotalTokens) / float64(len(idx.docs))
		}
		stats = append(stats, fs)
	}
	return stats
}

// Builder accumulates documents one at a time and produces a Ready Index.
// A Builder is single-use and not safe for concurrent use.
type Builder struct {
	cfg         Config
	docs        []Document
	ids         map[string]struct{}
	postings    map[string]map[string]PostingList
	keywords    map[string][]string
	docLens     map[string][]int
	totalTokens map[string]int
	built       bool
	logger      *slog.Logger
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg Config) (*Builder, error) {
	if err := cfg.validate("index.builder"); err != nil {
		return nil, err
	}
	cfg = cloneConfig(cfg)
	b := &Builder{
		cfg:         cfg,
		ids:         make(map[string]struct{}),
		postings:    make(map[string]map[string]PostingList, len(cfg.TextFields)),
		keywords:    make(map[string][]string, len(cfg.KeywordFields)),
		docLens:     make(map[string][]int, len(cfg.TextFields)),
		totalTokens: make(map[string]int, len(cfg.TextFields)),
		logger:      slog.Default().With("component", "index-builder"),
	}
	for _, field := range cfg.TextFields {
		b.postings[field] = make(map[string]PostingList)
	}
	for _, field := range cfg.KeywordFields {
		b.keywords[field] = nil
	}
	return b, nil
}

// Add tokenizes doc and appends it at the next insertion position. Missing
// fields are indexed as empty text. IDs must be non-empty and unique.
func (b *Builder) Add(doc Document) error {
	if b.built {
		return apperrors.E("index.add", apperrors.ErrConfiguration, "builder already produced an index")
	}
	if doc.ID == "" {
		return apperrors.E("index.add", apperrors.ErrInvalidArgument, "document at position %d has an empty id", len(b.docs))
	}
	if _, dup := b.ids[doc.ID]; dup {
		return apperrors.E("index.add", apperrors.ErrInvalidArgument, "duplicate document id %q", doc.ID)
	}
	b.ids[doc.ID] = struct{}{}

	pos := len(b.docs)
	doc = doc.Clone()
	b.docs = append(b.docs, doc)

	for _, field := range b.cfg.TextFields {
		counts := tokenizer.Counts(doc.Fields[field])
		length := 0
		for term, freq := range counts {
			b.postings[field][term] = append(b.postings[field][term], Posting{Doc: pos, Frequency: freq})
			length += freq
		}
		b.docLens[field] = append(b.docLens[field], length)
		b.totalTokens[field] += length
	}
	for _, field := range b.cfg.KeywordFields {
		b.keywords[field] = append(b.keywords[field], doc.Fields[field])
	}
	return nil
}

// Len returns the number of documents added so far.
func (b *Builder) Len() int {
	return len(b.docs)
}

// Build finalises the accumulated documents into a Ready Index.
func (b *Builder) Build() (*Index, error) {
	if b.built {
		return nil, apperrors.E("index.build", apperrors.ErrConfiguration, "builder already produced an index")
	}
	b.built = true
	b.warnMissingFields()

	idx := &Index{
		cfg:         b.cfg,
		state:       StateReady,
		docs:        b.docs,
		postings:    b.postings,
		keywords:    b.keywords,
		docLens:     b.docLens,
		totalTokens: b.totalTokens,
		fingerprint: fingerprint(b.cfg, b.docs),
	}
	b.logger.Debug("index built",
		"docs", len(idx.docs),
		"text_fields", b.cfg.TextFields,
		"keyword_fields", b.cfg.KeywordFields,
	)
	return idx, nil
}

func (b *Builder) warnMissingFields() {
	if len(b.docs) == 0 {
		return
	}
	fields := append(slices.Clone(b.cfg.TextFields), b.cfg.KeywordFields...)
	slices.Sort(fields)
	for _, field := range slices.Compact(fields) {
		present := false
		for _, doc := range b.docs {
			if _, ok := doc.Fields[field]; ok {
				present = true
				break
			}
		}
		if !present {
			b.logger.Warn("configured field absent from every document, indexing as empty", "field", field)
		}
	}
}

func fingerprint(cfg Config, docs []Document) string {
	h := sha256.New()
	for _, f := range cfg.TextFields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, f := range cfg.KeywordFields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	for _, doc := range docs {
		h.Write([]byte{2})
		h.Write([]byte(doc.ID))
		h.Write([]byte{0})
		keys := make([]string, 0, len(doc.Fields))
		for k := range doc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			h.Write([]byte(doc.Fields[k]))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cloneConfig copies cfg, dropping repeated field names while keeping the
// first occurrence's position.
func cloneConfig(cfg Config) Config {
	return Config{
		TextFields:    uniqueFields(cfg.TextFields),
		KeywordFields: uniqueFields(cfg.KeywordFields),
	}
}

func uniqueFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
