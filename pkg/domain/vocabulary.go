package domain

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Vocabulary is the registry of observable features. It accepts definitions
// until Freeze is called and is read-only afterwards; reads of a frozen
// vocabulary take no lock.
type Vocabulary struct {
	mu       sync.RWMutex
	features map[string]Feature
	frozen   atomic.Bool
}

// NewVocabulary returns an empty, unfrozen vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{features: make(map[string]Feature)}
}

// Define registers a feature with its value domain.
func (v *Vocabulary) Define(name string, domain []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frozen.Load() {
		return VocabularyFrozenError{Name: name}
	}
	if name == "" {
		return InvalidFeatureValueError{Reason: "feature name required"}
	}
	if _, ok := v.features[name]; ok {
		return DuplicateFeatureError{Name: name}
	}
	if len(domain) == 0 {
		return InvalidFeatureValueError{Feature: name, Reason: "empty domain"}
	}
	seen := make(map[string]struct{}, len(domain))
	values := make([]string, 0, len(domain))
	for _, value := range domain {
		if value == "" || value == Unknown {
			return InvalidFeatureValueError{Feature: name, Value: value, Reason: "reserved or empty domain value"}
		}
		if _, dup := seen[value]; dup {
			return InvalidFeatureValueError{Feature: name, Value: value, Reason: "duplicate domain value"}
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	v.features[name] = Feature{Name: name, Domain: values}
	return nil
}

// Freeze makes the vocabulary read-only.
func (v *Vocabulary) Freeze() {
	v.mu.Lock()
	v.frozen.Store(true)
	v.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (v *Vocabulary) Frozen() bool { return v.frozen.Load() }

// read runs fn with the feature map, locking only while definitions are
// still accepted.
func (v *Vocabulary) read(fn func(map[string]Feature)) {
	if v.frozen.Load() {
		fn(v.features)
		return
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	fn(v.features)
}

// Validate reports whether value belongs to the feature domain or is Unknown.
// Unregistered features never validate.
func (v *Vocabulary) Validate(feature, value string) bool {
	var f Feature
	var ok bool
	v.read(func(m map[string]Feature) { f, ok = m[feature] })
	if !ok {
		return false
	}
	return value == Unknown || f.Has(value)
}

// Check is Validate returning an InvalidFeatureValueError on failure.
func (v *Vocabulary) Check(feature, value string) error {
	if v.Validate(feature, value) {
		return nil
	}
	if _, ok := v.Lookup(feature); !ok {
		return InvalidFeatureValueError{Feature: feature, Value: value, Reason: "feature not registered"}
	}
	return InvalidFeatureValueError{Feature: feature, Value: value}
}

// Lookup returns the feature definition for name.
func (v *Vocabulary) Lookup(name string) (Feature, bool) {
	var f Feature
	var ok bool
	v.read(func(m map[string]Feature) { f, ok = m[name] })
	if !ok {
		return Feature{}, false
	}
	return Feature{Name: f.Name, Domain: cloneStrings(f.Domain)}, true
}

// Features returns all definitions ordered by name.
func (v *Vocabulary) Features() []Feature {
	var out []Feature
	v.read(func(m map[string]Feature) {
		out = make([]Feature, 0, len(m))
		for _, f := range m {
			out = append(out, Feature{Name: f.Name, Domain: cloneStrings(f.Domain)})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered features.
func (v *Vocabulary) Len() int {
	var n int
	v.read(func(m map[string]Feature) { n = len(m) })
	return n
}
