package operator

import (
	"errors"
	"fmt"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

var (
	ErrUnknownOperatorType = errors.New("unknown operator type")
	ErrUnknownKey          = errors.New("unknown key")
	ErrMissingDependency   = errors.New("missing dependency")
)

// UnknownOperatorTypeError is returned by New for a type tag that is not
// registered.
type UnknownOperatorTypeError struct {
	Type string
	Name string
}

func (e *UnknownOperatorTypeError) Error() string {
	return fmt.Sprintf("unknown operator type %q (name %q)", e.Type, e.Name)
}

func (e *UnknownOperatorTypeError) Unwrap() error { return ErrUnknownOperatorType }

// ConfigError is a malformed operator parameter.
type ConfigError struct {
	Operator string
	Type     string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Operator == "" {
		return fmt.Sprintf("%s operator: %s %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("operator %q (%s): %s %s", e.Operator, e.Type, e.Field, e.Reason)
}

// UnknownKeyError is a reference to a key that no configured operator
// produces and that the frame or annotation does not carry.
type UnknownKeyError struct {
	Operator string
	Source   episode.Source
	Key      string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("operator %q: unknown %s key %q", e.Operator, e.Source, e.Key)
}

func (e *UnknownKeyError) Unwrap() error { return ErrUnknownKey }

// MissingDependencyError is a reference to an operator that is configured
// but has not produced its output yet, which means it was declared later in
// the pipeline than the operator reading it.
type MissingDependencyError struct {
	Operator   string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("operator %q depends on %q, which has not run yet", e.Operator, e.Dependency)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// ClassifyLookup turns a raw lookup failure into UnknownKeyError or
// MissingDependencyError. configured reports whether a name belongs to an
// operator of the current run. Errors that are not key lookups are returned
// unchanged.
func ClassifyLookup(operator string, err error, configured func(name string) bool) error {
	var keyErr *episode.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}
	if keyErr.Source == episode.SourceAnnotation && configured(keyErr.Key) {
		return &MissingDependencyError{Operator: operator, Dependency: keyErr.Key}
	}
	return &UnknownKeyError{Operator: operator, Source: keyErr.Source, Key: keyErr.Key}
}
