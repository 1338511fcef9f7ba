package pct

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"text/template/parse"
)

// DefaultExtensions are the file extensions Discover treats as templates
var DefaultExtensions = []string{".tmpl", ".html", ".gotmpl"}

// Template is a parsed template file
type Template struct {
	Name   string
	Source []byte

	// Tree is the main tree of the file
	Tree *parse.Tree

	// Trees holds every tree the file declares, the main tree included
	Trees map[string]*parse.Tree
}

// Loader resolves a template name into a parsed template
type Loader interface {
	Load(name string) (*Template, error)
}

// FSLoader looks templates up across several file systems in order; the
// first one holding the name wins
type FSLoader struct {
	roots      []fs.FS
	extensions []string
	leftDelim  string
	rightDelim string
}

// LoaderOption configures an FSLoader
type LoaderOption func(*FSLoader)

// WithExtensions sets the extensions Discover matches
func WithExtensions(exts ...string) LoaderOption {
	return func(l *FSLoader) {
		l.extensions = exts
	}
}

// WithDelims sets the action delimiters. Empty values mean "{{" and "}}".
func WithDelims(left, right string) LoaderOption {
	return func(l *FSLoader) {
		l.leftDelim = left
		l.rightDelim = right
	}
}

// NewFSLoader creates a loader searching roots in order
func NewFSLoader(roots []fs.FS, opts ...LoaderOption) *FSLoader {
	l := &FSLoader{
		roots:      roots,
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the named template from the first root holding it
func (l *FSLoader) Load(name string) (*Template, error) {
	for _, root := range l.roots {
		src, err := fs.ReadFile(root, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &LoadError{Name: name, Err: err}
		}
		return ParseTemplate(name, src, l.leftDelim, l.rightDelim)
	}
	return nil, &LoadError{Name: name, Err: ErrTemplateNotFound}
}

// Discover returns the names of every template file under the roots,
// sorted. A name found in several roots is listed once.
func (l *FSLoader) Discover() ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range l.roots {
		err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && l.isTemplate(p) {
				seen[p] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to discover templates: %w", err)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// isTemplate reports whether name has one of the loader's extensions
func (l *FSLoader) isTemplate(name string) bool {
	ext := path.Ext(name)
	for _, e := range l.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseTemplate parses src into a Template. Comments are kept and function
// names are not checked, so {{extends}} needs no function map.
func ParseTemplate(name string, src []byte, leftDelim, rightDelim string) (*Template, error) {
	tree := parse.New(name)
	tree.Mode = parse.ParseComments | parse.SkipFuncCheck

	trees := make(map[string]*parse.Tree)
	if _, err := tree.Parse(string(src), leftDelim, rightDelim, trees); err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}

	main := trees[name]
	if main == nil {
		main = tree
		trees[name] = tree
	}

	return &Template{
		Name:   name,
		Source: src,
		Tree:   main,
		Trees:  trees,
	}, nil
}
