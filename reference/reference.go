// Package reference models the wiki entities configuration is read from:
// documents, the classes describing structured objects, and the objects
// attached to a document. References serialize to stable strings which are
// used both as cache key prefixes and as event identities.
package reference

import (
	"fmt"
	"regexp"
	"strings"

	errors "github.com/goliatone/go-errors"
)

const (
	// DefaultWiki is the main wiki identifier used when none is given.
	DefaultWiki = "xwiki"

	wikiSeparator   = ":"
	spaceSeparator  = "."
	objectSeparator = "^"
)

// Document points to a single wiki page.
type Document struct {
	Wiki  string
	Space string
	Page  string
}

// NewDocument builds a document reference.
func NewDocument(wiki, space, page string) Document {
	return Document{Wiki: wiki, Space: space, Page: page}
}

// IsZero reports whether the reference points nowhere.
func (d Document) IsZero() bool {
	return d.Wiki == "" && d.Space == "" && d.Page == ""
}

// Local drops the wiki part, which is how classes are referenced.
func (d Document) Local() Class {
	return Class{Space: d.Space, Page: d.Page}
}

// String serializes the reference as wiki:Space.Page.
func (d Document) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Wiki + wikiSeparator + d.Space + spaceSeparator + d.Page
}

// Validate checks every segment is present and free of separators.
func (d Document) Validate() error {
	if d.Wiki == "" || strings.ContainsAny(d.Wiki, wikiSeparator+objectSeparator) {
		return errors.New(fmt.Sprintf("invalid wiki %q", d.Wiki), errors.CategoryBadInput)
	}
	return d.Local().Validate()
}

// Class identifies the class of a structured object. A class is defined by a
// document, but is referenced without its wiki so one class reference matches
// objects in every wiki.
type Class struct {
	Space string
	Page  string
}

// NewClass builds a class reference.
func NewClass(space, page string) Class {
	return Class{Space: space, Page: page}
}

// IsZero reports whether the reference is empty.
func (c Class) IsZero() bool {
	return c.Space == "" && c.Page == ""
}

// String serializes the class as Space.Page.
func (c Class) String() string {
	if c.IsZero() {
		return ""
	}
	return c.Space + spaceSeparator + c.Page
}

// Validate checks both segments are present and the page carries no separator.
func (c Class) Validate() error {
	if c.Space == "" || c.Page == "" {
		return errors.New(fmt.Sprintf("incomplete reference %q", c.String()), errors.CategoryBadInput)
	}
	if strings.ContainsAny(c.Space, wikiSeparator+objectSeparator) ||
		strings.ContainsAny(c.Page, wikiSeparator+objectSeparator+spaceSeparator) {
		return errors.New(fmt.Sprintf("reserved character in reference %q", c.String()), errors.CategoryBadInput)
	}
	return nil
}

// Object points to one structured object attached to a document.
type Object struct {
	Document Document
	Class    Class
	Number   int
}

// String serializes the object as wiki:Space.Page^Space.Class[n].
func (o Object) String() string {
	return fmt.Sprintf("%s%s%s[%d]", o.Document.String(), objectSeparator, o.Class.String(), o.Number)
}

// ObjectPattern matches the serialized reference of any object of the given
// class, in any document of any wiki.
func ObjectPattern(class Class) *regexp.Regexp {
	return regexp.MustCompile(`^.*` + regexp.QuoteMeta(objectSeparator+class.String()) + `\[\d*\]$`)
}

// ParseDocument reads wiki:Space.Page, falling back to defaultWiki when the
// wiki part is omitted. Nested spaces are kept dotted in Space.
func ParseDocument(s, defaultWiki string) (Document, error) {
	wiki := defaultWiki
	local := s
	if idx := strings.Index(s, wikiSeparator); idx >= 0 {
		wiki = s[:idx]
		local = s[idx+1:]
	}

	class, err := ParseClass(local)
	if err != nil {
		return Document{}, err
	}

	doc := NewDocument(wiki, class.Space, class.Page)
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ParseClass reads Space.Page; the last dot splits the page from the space.
func ParseClass(s string) (Class, error) {
	idx := strings.LastIndex(s, spaceSeparator)
	if idx <= 0 || idx == len(s)-1 {
		return Class{}, errors.New(fmt.Sprintf("cannot parse reference %q", s), errors.CategoryBadInput)
	}

	class := NewClass(s[:idx], s[idx+1:])
	if err := class.Validate(); err != nil {
		return Class{}, err
	}
	return class, nil
}
