package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. The typed errors below match them with errors.Is.
var (
	ErrDuplicateFeature        = errors.New("duplicate feature")
	ErrVocabularyFrozen        = errors.New("vocabulary frozen")
	ErrInvalidFeatureValue     = errors.New("invalid feature value")
	ErrUnknownSpeciesReference = errors.New("unknown species reference")
	ErrMalformedEdge           = errors.New("malformed lookalike edge")
	ErrMalformedSpecies        = errors.New("malformed species record")
	ErrNotFound                = errors.New("not found")
)

// DuplicateFeatureError is returned when a feature name is registered twice.
type DuplicateFeatureError struct {
	Name string
}

func (e DuplicateFeatureError) Error() string {
	return fmt.Sprintf("feature %q already defined", e.Name)
}

// Is matches ErrDuplicateFeature.
func (e DuplicateFeatureError) Is(target error) bool { return target == ErrDuplicateFeature }

// VocabularyFrozenError is returned for registrations after the vocabulary was frozen.
type VocabularyFrozenError struct {
	Name string
}

func (e VocabularyFrozenError) Error() string {
	return fmt.Sprintf("cannot define feature %q: vocabulary is frozen", e.Name)
}

// Is matches ErrVocabularyFrozen.
func (e VocabularyFrozenError) Is(target error) bool { return target == ErrVocabularyFrozen }

// InvalidFeatureValueError reports a value outside its feature domain, a
// feature that is not registered, or a malformed domain definition.
type InvalidFeatureValueError struct {
	Feature string
	Value   string
	Reason  string
}

func (e InvalidFeatureValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("feature %q value %q: %s", e.Feature, e.Value, e.Reason)
	}
	return fmt.Sprintf("feature %q value %q not in domain", e.Feature, e.Value)
}

// Is matches ErrInvalidFeatureValue.
func (e InvalidFeatureValueError) Is(target error) bool { return target == ErrInvalidFeatureValue }

// UnknownSpeciesReferenceError is returned when an edge or query names a
// species id that is not in the dataset.
type UnknownSpeciesReferenceError struct {
	SpeciesID string
	Context   string
}

func (e UnknownSpeciesReferenceError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s references unknown species %q", e.Context, e.SpeciesID)
	}
	return fmt.Sprintf("unknown species %q", e.SpeciesID)
}

// Is matches ErrUnknownSpeciesReference.
func (e UnknownSpeciesReferenceError) Is(target error) bool {
	return target == ErrUnknownSpeciesReference
}

// MalformedEdgeError is returned for edges that name no distinguishing
// feature, connect a species to itself, or name unregistered features.
type MalformedEdgeError struct {
	SpeciesA string
	SpeciesB string
	Reason   string
}

func (e MalformedEdgeError) Error() string {
	return fmt.Sprintf("lookalike edge %s<->%s: %s", e.SpeciesA, e.SpeciesB, e.Reason)
}

// Is matches ErrMalformedEdge.
func (e MalformedEdgeError) Is(target error) bool { return target == ErrMalformedEdge }

// MalformedSpeciesError is returned for duplicate ids, records without any
// feature value, and invalid season or edibility fields.
type MalformedSpeciesError struct {
	SpeciesID string
	Reason    string
}

func (e MalformedSpeciesError) Error() string {
	return fmt.Sprintf("species %q: %s", e.SpeciesID, e.Reason)
}

// Is matches ErrMalformedSpecies.
func (e MalformedSpeciesError) Is(target error) bool { return target == ErrMalformedSpecies }
