package sqlstore

import (
	"bytes"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/reference"
)

// objectRow is one structured object. Its id is derived from the serialized
// object reference so writers never need a lookup to find it.
type objectRow struct {
	bun.BaseModel `bun:"table:config_objects,alias:o"`

	ID        int64     `bun:"id,pk"`
	Reference string    `bun:"reference,notnull"`
	Wiki      string    `bun:"wiki,notnull"`
	Document  string    `bun:"document,notnull"`
	Class     string    `bun:"class,notnull"`
	Number    int       `bun:"number,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// propertyRow is one field of an object. Position keeps insertion order.
type propertyRow struct {
	bun.BaseModel `bun:"table:config_properties,alias:p"`

	ObjectID int64  `bun:"object_id,pk"`
	Name     string `bun:"name,pk"`
	Position int    `bun:"position,notnull"`
	Value    []byte `bun:"value"`
}

func objectID(doc reference.Document, class reference.Class) int64 {
	return int64(xxhash.Sum64String(document.ObjectReference(doc, class).String()))
}

func newObjectRow(doc reference.Document, class reference.Class, now time.Time) *objectRow {
	ref := document.ObjectReference(doc, class)
	return &objectRow{
		ID:        objectID(doc, class),
		Reference: ref.String(),
		Wiki:      doc.Wiki,
		Document:  doc.String(),
		Class:     class.String(),
		Number:    ref.Number,
		UpdatedAt: now,
	}
}

func encodeValue(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// decodeValue widens numbers to int64 or float64 so values read back do not
// depend on the width the encoder picked.
func decodeValue(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if u, ok := v.(uint64); ok && u <= math.MaxInt64 {
		return int64(u), nil
	}
	return v, nil
}
