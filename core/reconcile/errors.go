package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap them so callers can use errors.Is.
var (
	ErrDuplicateRecord      = errors.New("record already exists")
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidChildType     = errors.New("invalid child type")
	ErrValidation           = errors.New("validation failed")
	ErrMissingIdentifier    = errors.New("identifier is required")
	ErrReferenceNotFound    = errors.New("referenced object not found")
	ErrAmbiguousReference   = errors.New("referenced object is ambiguous")
	ErrAmbiguousAssociation = errors.New("association is ambiguous")
	ErrPlanChanged          = errors.New("diff differs from the expected plan")
)

// DuplicateRecordError is returned by Store.Add when (type, unique id) is already indexed.
type DuplicateRecordError struct {
	Type     string
	UniqueID string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Type, e.UniqueID, ErrDuplicateRecord)
}

func (e *DuplicateRecordError) Unwrap() error { return ErrDuplicateRecord }

// RecordNotFoundError is returned by Store lookups that miss.
type RecordNotFoundError struct {
	Type     string
	UniqueID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Type, e.UniqueID, ErrRecordNotFound)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrRecordNotFound }

// InvalidChildTypeError is returned by Record.AddChild for undeclared child types.
type InvalidChildTypeError struct {
	Parent string
	Child  string
}

func (e *InvalidChildTypeError) Error() string {
	return fmt.Sprintf("%s cannot hold children of type %s: %v", e.Parent, e.Child, ErrInvalidChildType)
}

func (e *InvalidChildTypeError) Unwrap() error { return ErrInvalidChildType }

// ValidationError describes a record or schema that violates its declaration.
// Fields carries the attempted values when known. Err, when set, narrows the cause.
type ValidationError struct {
	Type   string
	Field  string
	Reason string
	Fields map[string]any
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Type
	if e.Field != "" {
		msg += "." + e.Field
	}
	msg += ": " + e.Reason
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(" (values: %v)", e.Fields)
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// ReferenceError is returned when a foreign-key style lookup does not match exactly one object.
type ReferenceError struct {
	Type    string
	Field   string
	Related string
	Lookup  map[string]any
	Matches int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s.%s -> %s %v: %v", e.Type, e.Field, e.Related, e.Lookup, e.Unwrap())
}

func (e *ReferenceError) Unwrap() error {
	if e.Matches == 0 {
		return ErrReferenceNotFound
	}
	return ErrAmbiguousReference
}

// AssociationError is returned when a single-valued association has more than one row.
type AssociationError struct {
	Type         string
	Field        string
	Relationship string
	Rows         int
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("%s.%s: relationship %s has %d rows: %v", e.Type, e.Field, e.Relationship, e.Rows, ErrAmbiguousAssociation)
}

func (e *AssociationError) Unwrap() error { return ErrAmbiguousAssociation }

// PlanChangedError is returned by Run when the computed diff does not match the
// summary the caller expected. Nothing has been written.
type PlanChangedError struct {
	Want Summary
	Got  Summary
}

func (e *PlanChangedError) Error() string {
	return fmt.Sprintf("%v: expected %+v, got %+v", ErrPlanChanged, e.Want, e.Got)
}

func (e *PlanChangedError) Unwrap() error { return ErrPlanChanged }

// SyncError wraps a record-level failure raised while applying a diff.
type SyncError struct {
	Type     string
	UniqueID string
	Action   Action
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Action, e.Type, e.UniqueID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
