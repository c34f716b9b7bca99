package lib

import (
	"errors"
	"fmt"
)

// Fatal error kinds. Every one of them aborts the run.
var (
	ErrDuplicateAddress        = errors.New("duplicate address")
	ErrOverlappingAddress      = errors.New("overlapping address")
	ErrTypeConflict            = errors.New("type conflict")
	ErrDuplicateDefinition     = errors.New("duplicate definition")
	ErrMalformedExpression     = errors.New("malformed expression")
	ErrMissingRequiredField    = errors.New("missing required field")
	ErrUnsupportedDocumentType = errors.New("unsupported document type")

	// ErrDuplicateDocument is reported when a controller receives two documents
	// of the same type. It matches ErrUnsupportedDocumentType under errors.Is.
	ErrDuplicateDocument = fmt.Errorf("%w: duplicate configuration", ErrUnsupportedDocumentType)

	// ErrFrozen is returned when a symbol is registered after resolution finished.
	ErrFrozen = errors.New("symbol table is frozen")
)

// TraceError attaches the document context the driver was working on when a
// lower level component failed.
type TraceError struct {
	File     string
	DocIndex int
	CPU      string
	Type     string
	Err      error
}

func (e *TraceError) Error() string {
	loc := e.File
	if loc == "" {
		loc = "<memory>"
	}
	if e.DocIndex > 0 {
		loc = fmt.Sprintf("%s doc #%d", loc, e.DocIndex)
	}
	switch {
	case e.CPU != "" && e.Type != "":
		return fmt.Sprintf("%s (%s:%s): %v", loc, e.CPU, e.Type, e.Err)
	case e.CPU != "":
		return fmt.Sprintf("%s (%s): %v", loc, e.CPU, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *TraceError) Unwrap() error {
	return e.Err
}

// Trace identifies where a piece of configuration came from.
type Trace struct {
	File     string
	DocIndex int
	CPU      string
	Type     string
}

// Wrap returns err annotated with t. Errors that already carry a trace are
// returned unchanged so the innermost context wins.
func (t Trace) Wrap(err error) error {
	if err == nil {
		return nil
	}
	var te *TraceError
	if errors.As(err, &te) {
		return err
	}
	return &TraceError{File: t.File, DocIndex: t.DocIndex, CPU: t.CPU, Type: t.Type, Err: err}
}
