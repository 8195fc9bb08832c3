// Package pdferrors defines the error-kind taxonomy shared by every
// component of the renaming pipeline: a closed set of kinds, each carrying
// its own severity and recoverability, wrapped around the underlying error.
package pdferrors

import (
	"fmt"
	"time"
)

// Kind enumerates the error kinds a document operation can fail with.
type Kind int

const (
	KindUnknown Kind = iota
	KindPdfInvalid
	KindEncrypted
	KindDanglingRef
	KindCircularField
	KindBadRect
	KindLargeForm
	KindTrainingCorrupt
	KindNameGrammarViolation
	KindPlanBlocker
	KindValidationFailure
	KindBackupFailure
	KindTimeout
	KindIoFailure
	KindUnsupportedFilter
)

func (k Kind) String() string {
	switch k {
	case KindPdfInvalid:
		return "PdfInvalid"
	case KindEncrypted:
		return "PdfEncrypted"
	case KindDanglingRef:
		return "DanglingRef"
	case KindCircularField:
		return "CircularField"
	case KindBadRect:
		return "BadRect"
	case KindLargeForm:
		return "LargeForm"
	case KindTrainingCorrupt:
		return "TrainingCorrupt"
	case KindNameGrammarViolation:
		return "NameGrammarViolation"
	case KindPlanBlocker:
		return "PlanBlocker"
	case KindValidationFailure:
		return "ValidationFailure"
	case KindBackupFailure:
		return "BackupFailure"
	case KindTimeout:
		return "Timeout"
	case KindIoFailure:
		return "IoFailure"
	case KindUnsupportedFilter:
		return "UnsupportedFilter"
	default:
		return "Unknown"
	}
}

// Severity ranks how serious an error kind is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

// Severity returns the default severity for this kind: warnings let
// processing continue, fatal and critical kinds do not.
func (k Kind) Severity() Severity {
	switch k {
	case KindCircularField, KindBadRect, KindLargeForm, KindUnsupportedFilter:
		return SeverityWarning
	case KindNameGrammarViolation:
		return SeverityWarning
	case KindPdfInvalid, KindEncrypted, KindTrainingCorrupt, KindBackupFailure:
		return SeverityFatal
	case KindValidationFailure:
		return SeverityCritical
	case KindTimeout, KindIoFailure, KindPlanBlocker, KindDanglingRef:
		return SeverityError
	default:
		return SeverityError
	}
}

// Recoverable reports whether processing of the current document can
// continue after this error is raised.
func (k Kind) Recoverable() bool {
	switch k {
	case KindCircularField, KindBadRect, KindLargeForm, KindUnsupportedFilter, KindNameGrammarViolation:
		return true
	default:
		return false
	}
}

// DocumentError wraps an underlying error with kind, context, and the
// implicated object/field.
type DocumentError struct {
	Kind      Kind
	Message   string
	Context   string
	FieldID   string
	ObjectNum int64
	GenNum    int64
	Timestamp time.Time
	Err       error
}

func (e *DocumentError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// New creates a DocumentError of the given kind.
func New(kind Kind, message string) *DocumentError {
	return &DocumentError{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Wrap wraps a standard error as a DocumentError of the given kind.
func Wrap(kind Kind, err error) *DocumentError {
	if err == nil {
		return nil
	}
	return &DocumentError{Kind: kind, Message: err.Error(), Timestamp: time.Now(), Err: err}
}

// WithContext attaches free-form context to the error and returns it.
func (e *DocumentError) WithContext(context string) *DocumentError {
	e.Context = context
	return e
}

// WithField attaches the implicated field id and returns the error.
func (e *DocumentError) WithField(fieldID string) *DocumentError {
	e.FieldID = fieldID
	return e
}

// WithObject attaches the implicated PDF object id and returns the error.
func (e *DocumentError) WithObject(objNum, genNum int64) *DocumentError {
	e.ObjectNum = objNum
	e.GenNum = genNum
	return e
}

// IsCritical reports whether this error's severity is critical or fatal.
func (e *DocumentError) IsCritical() bool {
	s := e.Kind.Severity()
	return s == SeverityCritical || s == SeverityFatal
}

// Collection accumulates errors and warnings for a single document run.
type Collection struct {
	Errors   []*DocumentError
	Warnings []*DocumentError
	Path     string
}

// NewCollection creates an empty collection scoped to a document path.
func NewCollection(path string) *Collection {
	return &Collection{Path: path}
}

// Add routes the error into Errors or Warnings based on its severity.
func (c *Collection) Add(err *DocumentError) {
	if err == nil {
		return
	}
	sev := err.Kind.Severity()
	if sev == SeverityWarning || sev == SeverityInfo {
		c.Warnings = append(c.Warnings, err)
	} else {
		c.Errors = append(c.Errors, err)
	}
}

// HasCritical reports whether any accumulated error is critical or fatal.
func (c *Collection) HasCritical() bool {
	for _, e := range c.Errors {
		if e.IsCritical() {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings accumulated so far.
func (c *Collection) Count() (errs, warns int) {
	return len(c.Errors), len(c.Warnings)
}
