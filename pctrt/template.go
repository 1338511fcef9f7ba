package pctrt

import (
	"sort"
	"sync"
)

// Template is implemented by every generated unit
type Template interface {
	// RenderBlock appends the render list of the named block to renderList.
	// It reports false when neither the unit nor any base declares the block.
	RenderBlock(name string, renderList []any) ([]any, bool)
}

// PreCompiledTemplate is the root every unit eventually embeds. It declares
// no blocks.
type PreCompiledTemplate struct{}

// RenderBlock implements Template
func (PreCompiledTemplate) RenderBlock(name string, renderList []any) ([]any, bool) {
	return renderList, false
}

var (
	templatesMu sync.RWMutex
	templates   = make(map[string]Template)
)

// Register makes a unit available under its template name. Generated code
// calls it from init. It panics if name is registered twice or t is nil.
func Register(name string, t Template) {
	templatesMu.Lock()
	defer templatesMu.Unlock()

	if t == nil {
		panic("pctrt: Register template is nil")
	}
	if _, dup := templates[name]; dup {
		panic("pctrt: Register called twice for template " + name)
	}
	templates[name] = t
}

// Lookup returns the unit registered for name
func Lookup(name string) (Template, bool) {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	t, ok := templates[name]
	return t, ok
}

// Names returns the sorted names of all registered units
func Names() []string {
	templatesMu.RLock()
	defer templatesMu.RUnlock()

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
