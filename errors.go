package pct

import (
	"errors"
	"fmt"
)

var (
	// ErrVariableParent is returned when {{extends}} names its parent with
	// anything other than a string constant
	ErrVariableParent = errors.New("pre-compilation of variable base templates not implemented")

	// ErrMissingParent is returned when {{extends}} has no argument
	ErrMissingParent = errors.New("extends requires a parent template name")

	// ErrTemplateNotFound is returned when no search root holds the template
	ErrTemplateNotFound = errors.New("template not found")
)

// CompilerError reports a template the precompiler refuses to compile
type CompilerError struct {
	Template string
	Err      error
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("pct: cannot precompile %s: %v", e.Template, e.Err)
}

func (e *CompilerError) Unwrap() error {
	return e.Err
}

// LoadError is returned when a template cannot be read
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load template %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a template file cannot be parsed
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse template %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
