// Package testsupport loads configuration object seeds and golden files for
// tests.
package testsupport

import (
	"context"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/reference"
)

//go:embed testdata/*.json
var builtin embed.FS

// Seed describes objects to preload into a store.
type Seed struct {
	Objects []SeedObject `json:"objects"`
}

// SeedObject is one configuration object. Fields keep their listed order.
type SeedObject struct {
	Document string      `json:"document"`
	Class    string      `json:"class"`
	Fields   []SeedField `json:"fields"`
}

// SeedField is a named value.
type SeedField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Putter accepts records without publishing events, like
// document.MemoryStore.Put.
type Putter interface {
	Put(doc reference.Document, class reference.Class, rec *document.Record)
}

// LoadFixture reads a fixture file relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads a JSON fixture into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadSeed reads a Seed fixture.
func LoadSeed(t testing.TB, path string) Seed {
	t.Helper()

	var seed Seed
	LoadFixtureJSON(t, path, &seed)
	return seed
}

// BuiltinSeed loads a seed shipped with this package, such as
// "preferences.json", from any test package.
func BuiltinSeed(t testing.TB, name string) Seed {
	t.Helper()

	data, err := builtin.ReadFile(filepath.ToSlash(filepath.Join("testdata", name)))
	if err != nil {
		t.Fatalf("unknown builtin seed %s: %v", name, err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		t.Fatalf("failed to unmarshal builtin seed %s: %v", name, err)
	}
	return seed
}

// Record builds the document record of o.
func (o SeedObject) Record() *document.Record {
	rec := document.NewRecord()
	for _, f := range o.Fields {
		rec.Set(f.Name, f.Value)
	}
	return rec
}

// References parses the document and class of o. Documents without a wiki
// land in reference.DefaultWiki.
func (o SeedObject) References(t testing.TB) (reference.Document, reference.Class) {
	t.Helper()

	doc, err := reference.ParseDocument(o.Document, reference.DefaultWiki)
	if err != nil {
		t.Fatalf("invalid seed document %q: %v", o.Document, err)
	}
	class, err := reference.ParseClass(o.Class)
	if err != nil {
		t.Fatalf("invalid seed class %q: %v", o.Class, err)
	}
	return doc, class
}

// Put loads every seeded object into p.
func (s Seed) Put(t testing.TB, p Putter) {
	t.Helper()

	for _, o := range s.Objects {
		doc, class := o.References(t)
		p.Put(doc, class, o.Record())
	}
}

// Write stores every seeded field through w, publishing the usual events.
func (s Seed) Write(ctx context.Context, t testing.TB, w document.Writer) {
	t.Helper()

	for _, o := range s.Objects {
		doc, class := o.References(t)
		for _, f := range o.Fields {
			if err := w.SetField(ctx, doc, class, f.Name, f.Value); err != nil {
				t.Fatalf("failed to seed %s.%s: %v", o.Document, f.Name, err)
			}
		}
	}
}

// CompareWithGolden compares actual with the golden file at path, creating it
// when missing.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.Fatalf("failed to read golden file %s: %v", path, err)
		}
		t.Logf("Golden file %s does not exist, creating it", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, actual, 0o644); err != nil {
			t.Fatalf("failed to write golden file %s: %v", path, err)
		}
		return
	}

	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
