// Package configsource exposes configuration stored as fields of a structured
// object attached to a wiki document.
//
// A DocumentSource resolves properties lazily: the first lookup of a property
// reads the object from the document store, later lookups are answered from a
// cache until an object or wiki event invalidates it. Absent properties are
// remembered too, so repeated lookups of a missing key do not reach the store.
//
//	domain := configsource.NewWikiPreferencesDomain()
//	src, err := configsource.New(ctx, domain, configsource.Dependencies{
//		Caches:    caches,
//		Bus:       bus,
//		Store:     store,
//		Converter: convert.New(),
//	})
//	if err != nil {
//		return err
//	}
//	defer src.Close(ctx)
//
//	color := configsource.String(ctx, src, "color", "white")
//
// Lookups never fail. Problems resolving the document, reading the store or
// converting a value are logged and surface as absent values.
package configsource
