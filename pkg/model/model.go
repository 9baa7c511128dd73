// Package model declares the schema entities of the finance backend
// and the registry the autogenerator diffs against the live database.
//
// Registration is an explicit list: an entity missing from the registry
// is invisible to the generator and silently produces an empty diff, so
// every new entity must be added to the list in finance.go.
package model

var registry []any

// Register adds entities to the registry.
func Register(models ...any) {
	registry = append(registry, models...)
}

// All returns every registered entity, in registration order.
func All() []any {
	out := make([]any, len(registry))
	copy(out, registry)
	return out
}
