package pct

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ifNodeName is the registry key of parse.IfNode, whose stand-in is built
// by the runtime package
const ifNodeName = "text/template/parse.IfNode"

// argsPlaceholder stands for the comma-joined argument list in a
// constructor template
const argsPlaceholder = "%s"

// SpecKind selects the shape of a generated constructor
type SpecKind int

const (
	// SpecFields constructors take a keyed composite literal of the node type
	SpecFields SpecKind = iota

	// SpecConditional constructors take diagnostic strings only
	SpecConditional
)

// ConstructorSpec records how generated code instantiates one node type
type ConstructorSpec struct {
	PkgPath  string // import path of the type's package
	PkgName  string // package qualifier used in generated code
	TypeName string
	Kind     SpecKind
}

// FullName returns the fully-qualified type name the registry keys on
func (s *ConstructorSpec) FullName() string {
	return s.PkgPath + "." + s.TypeName
}

// MethodName returns the name of the generated constructor
func (s *ConstructorSpec) MethodName() string {
	return constructorPrefix + s.TypeName
}

// TypeExpr returns the qualified type expression, e.g. "parse.ActionNode"
func (s *ConstructorSpec) TypeExpr() string {
	if s.PkgName == "" {
		return s.TypeName
	}
	return s.PkgName + "." + s.TypeName
}

// Template returns the constructor call with a single %s placeholder for
// the argument list
func (s *ConstructorSpec) Template() string {
	if s.Kind == SpecConditional {
		return "t." + s.MethodName() + "(" + argsPlaceholder + ")"
	}
	return "t." + s.MethodName() + "(" + s.TypeExpr() + "{" + argsPlaceholder + "})"
}

// Render returns the declaration of the constructor as a method of unit
func (s *ConstructorSpec) Render(unit string) string {
	if s.Kind == SpecConditional {
		body := "new(" + s.TypeExpr() + ")"
		if s.FullName() == ifNodeName {
			body = runtimeQualifier + ".Conditional(conditions...)"
		}
		return fmt.Sprintf(`
// %[2]s stands in for a %[3]s. Branch logic is not precompiled: the
// arguments only name the types of each condition and branch.
func (%[1]s) %[2]s(conditions ...string) *%[3]s {
	return %[4]s
}
`, unit, s.MethodName(), s.TypeExpr(), body)
	}

	return fmt.Sprintf(`
// %[2]s rebuilds a %[3]s from its captured fields.
func (%[1]s) %[2]s(n %[3]s) *%[3]s {
	return &n
}
`, unit, s.MethodName(), s.TypeExpr())
}

// Registry deduplicates the constructors a compilation unit needs and
// tracks the packages generated code must import.
type Registry struct {
	imports  map[string]struct{}
	creators map[string]*ConstructorSpec
}

// NewRegistry creates a registry whose import set starts with imports
func NewRegistry(imports ...string) *Registry {
	r := &Registry{
		imports:  make(map[string]struct{}),
		creators: make(map[string]*ConstructorSpec),
	}
	for _, imp := range imports {
		r.AddImport(imp)
	}
	return r
}

// AddImport adds an import path; adding one twice is a no-op
func (r *Registry) AddImport(path string) {
	if path == "" {
		return
	}
	r.imports[path] = struct{}{}
}

// Register records a field constructor for the type of instance and returns
// its constructor template. Registering a type again overwrites the spec
// with an equivalent one.
func (r *Registry) Register(instance any) string {
	return r.register(instance, SpecFields)
}

// RegisterConditional is Register for node types whose constructor only
// receives diagnostic strings
func (r *Registry) RegisterConditional(instance any) string {
	return r.register(instance, SpecConditional)
}

func (r *Registry) register(instance any, kind SpecKind) string {
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	spec := &ConstructorSpec{
		PkgPath:  t.PkgPath(),
		PkgName:  packageName(t),
		TypeName: t.Name(),
		Kind:     kind,
	}
	r.AddImport(spec.PkgPath)
	r.creators[spec.FullName()] = spec
	return spec.Template()
}

// Lookup returns the spec registered under a fully-qualified type name
func (r *Registry) Lookup(fullName string) (*ConstructorSpec, bool) {
	spec, ok := r.creators[fullName]
	return spec, ok
}

// Len returns the number of registered constructors
func (r *Registry) Len() int {
	return len(r.creators)
}

// Names returns the fully-qualified names of all registered types, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.creators))
	for name := range r.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Imports returns the import set, sorted
func (r *Registry) Imports() []string {
	imports := make([]string, 0, len(r.imports))
	for imp := range r.imports {
		imports = append(imports, imp)
	}
	sort.Strings(imports)
	return imports
}

// RenderAll returns one constructor declaration per registered type, ordered
// by fully-qualified name
func (r *Registry) RenderAll(unit string) []string {
	names := r.Names()
	decls := make([]string, 0, len(names))
	for _, name := range names {
		decls = append(decls, r.creators[name].Render(unit))
	}
	return decls
}

// Fill substitutes the comma-joined args into a constructor template
func Fill(template string, args []string) string {
	return strings.Replace(template, argsPlaceholder, strings.Join(args, ", "), 1)
}

// packageName returns the qualifier reflect uses for a named type, which is
// the declared package name rather than the last import path element
func packageName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return ""
	}
	s := t.String()
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i]
	}
	return ""
}
