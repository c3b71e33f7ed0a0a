package cache

// State tags the result of a cache lookup.
type State int

const (
	// Miss means nothing is cached for the key.
	Miss State = iota
	// Hit means a value is cached for the key.
	Hit
	// KnownAbsent means the key was looked up before and had no value.
	KnownAbsent
)

func (s State) String() string {
	switch s {
	case Hit:
		return "hit"
	case KnownAbsent:
		return "known_absent"
	default:
		return "miss"
	}
}

// Lookup is the outcome of Cache.Get.
type Lookup struct {
	state State
	value any
}

// HitOf builds a Lookup holding value.
func HitOf(value any) Lookup {
	return Lookup{state: Hit, value: value}
}

// Absent builds a KnownAbsent Lookup.
func Absent() Lookup {
	return Lookup{state: KnownAbsent}
}

// State returns the lookup tag.
func (l Lookup) State() State { return l.state }

// Value returns the cached value, nil unless State is Hit.
func (l Lookup) Value() any { return l.value }

// Found reports whether the lookup settled the key, as a value or as an absence.
func (l Lookup) Found() bool { return l.state != Miss }

// Cache stores resolved configuration properties.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) Lookup
	Set(key string, value any)
	MarkAbsent(key string)
	Clear()
	Len() int
}
