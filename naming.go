package pct

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// UnitPrefix tags every identifier derived from a template name
	UnitPrefix = "PCT_"

	// DefaultBaseName is the base every unit extends when its template has no
	// {{extends}} marker. It names pctrt.PreCompiledTemplate.
	DefaultBaseName = "PreCompiledTemplate"

	// OutputExt is the extension of every generated artifact
	OutputExt = ".go"

	blockMethodPrefix = "RenderBlock_"
	constructorPrefix = "PCT_OBJ_"
)

// UnitName derives the Go identifier of the unit compiled from templateName.
// Slashes become "__" and dots become "___", so "blog/post.html" turns into
// "PCT_blog__post___html". Any other rune that cannot appear in a Go
// identifier is escaped as _<hex>_.
func UnitName(templateName string) string {
	name := strings.ReplaceAll(templateName, "/", "__")
	name = strings.ReplaceAll(name, ".", "___")
	return UnitPrefix + identifier(name)
}

// OutputFileName returns the file name the unit for templateName is written to
func OutputFileName(templateName string) string {
	return UnitName(templateName) + OutputExt
}

// blockMethodName returns the name of the method rendering block
func blockMethodName(block string) string {
	return blockMethodPrefix + identifier(block)
}

// identifier escapes s into a valid Go identifier fragment
func identifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "_%x_", r)
	}
	return b.String()
}
