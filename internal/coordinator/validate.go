package coordinator

import (
	"github.com/nerrad567/netrules-core/internal/rules"
)

// Validator checks the shape of a fetched data set before it replaces the
// cache. Returning false makes the coordinator fall back to cached data.
type Validator interface {
	Validate(data map[rules.Kind][]rules.RawEntity) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(data map[rules.Kind][]rules.RawEntity) bool

// Validate implements Validator.
func (f ValidatorFunc) Validate(data map[rules.Kind][]rules.RawEntity) bool {
	return f(data)
}

// DefaultValidator accepts a data set when it is non-nil and every entity
// under a recognised kind is a non-empty object. Unrecognised kinds are
// ignored, matching the snapshot builder's schema-drift policy: a
// controller returning collections this version does not know about is
// not a failed fetch. Empty collections are valid (a site can have zero
// rules of a kind); a nil map is not (that is a failed fetch, not an
// empty one).
func DefaultValidator() Validator {
	return ValidatorFunc(func(data map[rules.Kind][]rules.RawEntity) bool {
		if data == nil {
			return false
		}
		for kind, entities := range data {
			if !rules.KnownKind(kind) {
				continue
			}
			for _, entity := range entities {
				if len(entity) == 0 {
					return false
				}
			}
		}
		return true
	})
}
