package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// MinWords is the shortest body, in words, a record may have to be kept.
const MinWords = 5

// Source produces the raw documents a Store is built from.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// Record is the on-disk (and database attribute) shape of a content item.
// Kind-specific fields are optional and ignored for other kinds.
type Record struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Chunks      []string `json:"chunks"`

	PropertyType string   `json:"property_type,omitempty"`
	Country      string   `json:"country,omitempty"`
	Challenges   []string `json:"challenges,omitempty"`

	Term        string   `json:"term,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Definition  string   `json:"definition,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// kindDirs maps content sub-directories to document kinds.
var kindDirs = []struct {
	dir  string
	kind Kind
}{
	{"articles", KindArticle},
	{"glossary", KindGlossary},
	{"case-studies", KindCaseStudy},
	{"guides", KindGuide},
	{"pages", KindPage},
}

// DirSource loads JSON records from <Dir>/<kind dir>/*.json. Missing kind
// directories are skipped; malformed or too-short records are logged and
// skipped.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context) ([]Document, error) {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path %s is not a directory", s.Dir)
	}

	perKind := make([][]Document, len(kindDirs))
	g, ctx := errgroup.WithContext(ctx)
	for i, kd := range kindDirs {
		g.Go(func() error {
			docs, err := loadKindDir(ctx, filepath.Join(s.Dir, kd.dir), kd.kind)
			if err != nil {
				return fmt.Errorf("loading %s: %w", kd.dir, err)
			}
			perKind[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Document
	for _, docs := range perKind {
		all = append(all, docs...)
	}
	return all, nil
}

func loadKindDir(ctx context.Context, dir string, kind Kind) ([]Document, error) {
	logger := slog.Default().With("component", "corpus-loader", "kind", kind)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("content directory missing, skipping", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Warn("skipping malformed record", "file", path, "error", err)
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".json")
		doc, ok := rec.Document(kind, string(kind)+"/"+stem)
		if !ok {
			logger.Debug("skipping record with too little text", "file", path)
			continue
		}
		docs = append(docs, doc)
	}
	logger.Info("content loaded", "dir", dir, "documents", len(docs))
	return docs, nil
}

// Document converts a record into a Document of the given kind. It reports
// false when the body has fewer than MinWords words; a long description
// does not make up for a short body.
func (r Record) Document(kind Kind, id string) (Document, bool) {
	body := r.Content
	chunks := cleanChunks(r.Chunks)
	if looksLikeHTML(body) {
		var paragraphs []string
		body, paragraphs = htmlToText(body)
		if len(chunks) == 0 {
			chunks = paragraphs
		}
	} else {
		body = strings.TrimSpace(body)
		if len(chunks) == 0 {
			chunks = splitParagraphs(body)
		}
	}

	doc := Document{
		ID:          id,
		Kind:        kind,
		Title:       normalizeSpace(r.Title),
		Body:        body,
		URL:         strings.TrimSpace(r.URL),
		Description: normalizeSpace(r.Description),
		Chunks:      chunks,
	}
	if len(strings.Fields(doc.Body)) < MinWords {
		return Document{}, false
	}

	switch kind {
	case KindCaseStudy:
		doc.CaseStudy = &CaseStudy{
			PropertyType: strings.TrimSpace(r.PropertyType),
			Country:      strings.TrimSpace(r.Country),
			Challenges:   cleanChunks(r.Challenges),
		}
	case KindGlossary:
		doc.Glossary = r.glossaryEntry(doc)
	}
	return doc, true
}

func (r Record) glossaryEntry(doc Document) *GlossaryEntry {
	entry := &GlossaryEntry{
		Term:        normalizeSpace(r.Term),
		Synonyms:    cleanChunks(r.Synonyms),
		Definition:  normalizeSpace(r.Definition),
		Explanation: strings.TrimSpace(r.Explanation),
	}
	if entry.Term == "" {
		entry.Term = doc.Title
	}
	if entry.Definition == "" {
		entry.Definition = doc.Description
	}
	if entry.Definition == "" && len(doc.Chunks) > 0 {
		entry.Definition = doc.Chunks[0]
	}
	if entry.Explanation == "" {
		entry.Explanation = doc.Body
	}
	return entry
}

func cleanChunks(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if looksLikeHTML(c) {
			c, _ = htmlToText(c)
		}
		if c = normalizeSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Load reads every document from src and freezes them into a Store.
func Load(ctx context.Context, src Source) (*Store, error) {
	start := time.Now()
	docs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	store, err := NewStore(docs)
	if err != nil {
		return nil, err
	}
	st := store.Stats()
	attrs := []any{"total", st.Total, "chunks", st.TotalChunks, "duration_ms", time.Since(start).Milliseconds()}
	for _, k := range Kinds {
		attrs = append(attrs, string(k), st.Counts[k])
	}
	slog.Default().With("component", "corpus").Info("corpus loaded", attrs...)
	return store, nil
}
