// Package cache provides the per-source property caches used by
// configuration sources.
//
// # Overview
//
// A Cache maps a property key to a Lookup, a tagged result that tells a
// cached value apart from a remembered absence and from a plain miss:
//
//	switch l := c.Get(key); l.State() {
//	case cache.Hit:
//		return l.Value()
//	case cache.KnownAbsent:
//		return nil
//	}
//	// cache.Miss: fetch and then Set or MarkAbsent
//
// Caches are created through a Manager, which hands out exactly one cache per
// identifier until that identifier is released:
//
//	manager, err := cache.NewManager(cache.DefaultConfig())
//	c, err := manager.NewCache("configuration.document.wiki")
//	defer manager.Release("configuration.document.wiki")
//
// # Keys
//
// KeySerializer builds property keys. The default serializer prefixes the
// property with the serialized document reference, so entries read from
// different wikis never collide:
//
//	cache.NewDefaultKeySerializer().SerializeKey("xwiki:XWiki.XWikiPreferences", "color")
//	// xwiki:XWiki.XWikiPreferences:color
//
// # Backend
//
// The default backend is a sharded sturdyc client. Entries expire after
// Config.TTL even when no invalidation reaches the cache.
package cache
