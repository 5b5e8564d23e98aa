package corpus

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "articles", "dynamic-pricing.json"), `{
		"title": "Dynamic Pricing 101",
		"url": "https://example.com/dynamic-pricing",
		"description": "An introduction.",
		"content": "Dynamic pricing adjusts room rates to demand.\n\nIt lifts revenue for independent hotels."
	}`)
	writeFile(t, filepath.Join(dir, "articles", "too-short.json"), `{"title": "Stub", "content": "tiny"}`)
	writeFile(t, filepath.Join(dir, "articles", "broken.json"), `{"title": `)
	writeFile(t, filepath.Join(dir, "articles", "notes.txt"), `ignored`)
	writeFile(t, filepath.Join(dir, "glossary", "adr.json"), `{
		"title": "ADR",
		"synonyms": ["Average Daily Rate", " "],
		"description": "Average revenue earned per occupied room.",
		"content": "ADR is room revenue divided by the number of rooms sold."
	}`)
	writeFile(t, filepath.Join(dir, "case-studies", "alpine.json"), `{
		"title": "Alpine Lodge grows RevPAR",
		"content": "<p>An alpine lodge in <b>Switzerland</b> automated pricing.</p><p>RevPAR rose by a fifth in one season.</p><script>track()</script>",
		"property_type": "Lodge",
		"country": "Switzerland",
		"challenges": ["seasonality", "time saving"]
	}`)

	docs, err := DirSource{Dir: dir}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	byID := make(map[string]Document)
	for _, d := range docs {
		byID[d.ID] = d
	}
	if len(byID) != 3 {
		t.Fatalf("Load() returned %d documents, want 3: %v", len(byID), docs)
	}

	article := byID["article/dynamic-pricing"]
	if article.Kind != KindArticle || article.URL != "https://example.com/dynamic-pricing" {
		t.Errorf("article = %+v", article)
	}
	if len(article.Chunks) != 2 {
		t.Errorf("article chunks = %q, want 2 paragraphs", article.Chunks)
	}

	term := byID["glossary-term/adr"]
	if term.Glossary == nil {
		t.Fatal("glossary payload missing")
	}
	if term.Glossary.Term != "ADR" || !reflect.DeepEqual(term.Glossary.Synonyms, []string{"Average Daily Rate"}) {
		t.Errorf("glossary entry = %+v", term.Glossary)
	}
	if term.Glossary.Definition != "Average revenue earned per occupied room." {
		t.Errorf("definition = %q", term.Glossary.Definition)
	}
	if !strings.HasPrefix(term.Glossary.Explanation, "ADR is room revenue") {
		t.Errorf("explanation = %q", term.Glossary.Explanation)
	}

	cs := byID["case-study/alpine"]
	if cs.CaseStudy == nil || cs.CaseStudy.Country != "Switzerland" || len(cs.CaseStudy.Challenges) != 2 {
		t.Errorf("case study payload = %+v", cs.CaseStudy)
	}
	if strings.Contains(cs.Body, "<") || strings.Contains(cs.Body, "track()") {
		t.Errorf("HTML not stripped: %q", cs.Body)
	}
	if !reflect.DeepEqual(cs.Chunks, []string{
		"An alpine lodge in Switzerland automated pricing.",
		"RevPAR rose by a fifth in one season.",
	}) {
		t.Errorf("case study chunks = %q", cs.Chunks)
	}
}

func TestDirSourceMissingRoot(t *testing.T) {
	_, err := DirSource{Dir: filepath.Join(t.TempDir(), "nope")}.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing content directory")
	}
}

func TestLoadBuildsStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pages", "about.json"),
		`{"title": "About", "content": "We build pricing software for independent hotels."}`)
	store, err := Load(context.Background(), DirSource{Dir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Len() != 1 || store.Stats().Counts[KindPage] != 1 {
		t.Errorf("store stats = %+v", store.Stats())
	}
}

func TestRecordDocumentMinWords(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"enough body", Record{Title: "t", Content: "one two three four five"}, true},
		{"short body", Record{Title: "t", Content: "one two three four"}, false},
		{"description does not count", Record{Title: "t", Description: "one two three four five"}, false},
		{"short body long description", Record{Title: "t", Content: "one two", Description: "one two three four five six"}, false},
		{"html body counted after stripping", Record{Title: "t", Content: "<p>one <b>two</b> three</p><p>four five</p>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.rec.Document(KindPage, "page/x"); ok != tt.want {
				t.Errorf("Document() ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestHTMLToTextSkipsContainers(t *testing.T) {
	text, paragraphs := htmlToText(`<ul><li>Occupancy</li><li>ADR <em>and</em> RevPAR</li></ul><div><p>Closing note</p></div>`)
	want := []string{"Occupancy", "ADR and RevPAR", "Closing note"}
	if !reflect.DeepEqual(paragraphs, want) {
		t.Errorf("paragraphs = %q, want %q", paragraphs, want)
	}
	if text != strings.Join(want, "\n\n") {
		t.Errorf("text = %q", text)
	}
}
