package cache

import "strings"

// KeySeparator defines the delimiter between the key prefix and the property.
const KeySeparator = ":"

// KeySerializer builds a cache key from a prefix and a property name.
type KeySerializer interface {
	SerializeKey(prefix, property string) string
}

type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the prefix:property serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins prefix and property with KeySeparator. An empty prefix
// yields the bare property.
func (defaultKeySerializer) SerializeKey(prefix, property string) string {
	if prefix == "" {
		return property
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(KeySeparator) + len(property))
	b.WriteString(prefix)
	b.WriteString(KeySeparator)
	b.WriteString(property)
	return b.String()
}
