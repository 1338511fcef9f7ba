package pct

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/template/parse"

	"golang.org/x/tools/imports"

	"github.com/livefir/pct/internal/metrics"
)

const (
	// DefaultPackage is the package clause of generated files
	DefaultPackage = "precompiled"

	// DefaultRuntimeImport provides Decode, Unknown and PreCompiledTemplate
	DefaultRuntimeImport = "github.com/livefir/pct/pctrt"
)

// Config holds the settings shared by every unit a compiler produces
type Config struct {
	OutDir        string
	Package       string
	RuntimeImport string
	Logger        *slog.Logger
	Codec         Codec
	Dispatch      DispatchTable
	Metrics       *metrics.Collector
}

// Option configures a Config
type Option func(*Config)

// WithOutDir sets the directory generated files are written to
func WithOutDir(dir string) Option {
	return func(c *Config) {
		c.OutDir = dir
	}
}

// WithPackage sets the package clause of generated files
func WithPackage(name string) Option {
	return func(c *Config) {
		c.Package = name
	}
}

// WithRuntimeImport sets the import path of the runtime support package
func WithRuntimeImport(path string) Option {
	return func(c *Config) {
		c.RuntimeImport = path
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithCodec replaces the YAML codec used for plain attribute values
func WithCodec(codec Codec) Option {
	return func(c *Config) {
		c.Codec = codec
	}
}

// WithMetrics sets the collector compilations are recorded in
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithDispatchTable overrides node handlers. Kinds missing from table keep
// their default handler.
func WithDispatchTable(table DispatchTable) Option {
	return func(c *Config) {
		c.Dispatch = table
	}
}

func newConfig(opts ...Option) Config {
	cfg := Config{
		OutDir:        ".",
		Package:       DefaultPackage,
		RuntimeImport: DefaultRuntimeImport,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Codec == nil {
		cfg.Codec = YAMLCodec{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	return cfg
}

// State is the lifecycle stage of a CompiledOutput
type State int

const (
	StateInitialized State = iota
	StatePopulated
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StatePopulated:
		return "populated"
	case StateRendered:
		return "rendered"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Stats counts what one compilation unit produced
type Stats struct {
	Nodes        int // nodes visited
	Constructors int // distinct node types declared
	Blocks       int
	Expressions  int // render list entries across all blocks
	Sentinels    int // attribute values that could not be captured
	Bytes        int // size of the last rendered file
}

// Block is a named template region: a tree declared with {{define}} or
// {{block}}
type Block struct {
	Name string
	List *parse.ListNode
}

type renderedBlock struct {
	name   string
	method string
	exprs  []string
}

// CompiledOutput is one compilation unit. It accumulates the constructors
// and per-block render lists of a single template, then writes them out as
// a Go source file.
type CompiledOutput struct {
	templateName string
	name         string
	baseName     string

	registry *Registry
	blocks   []renderedBlock
	visitor  *Visitor
	config   Config
	logger   *slog.Logger

	state State
	stats Stats
}

// NewCompiledOutput creates a unit for templateName extending the default
// base
func NewCompiledOutput(templateName string, opts ...Option) *CompiledOutput {
	cfg := newConfig(opts...)
	return newCompiledOutput(templateName, cfg, NewVisitor(cfg.Dispatch, cfg.Codec, cfg.Logger))
}

func newCompiledOutput(templateName string, cfg Config, visitor *Visitor) *CompiledOutput {
	return &CompiledOutput{
		templateName: templateName,
		name:         UnitName(templateName),
		baseName:     DefaultBaseName,
		registry:     NewRegistry(cfg.RuntimeImport),
		visitor:      visitor,
		config:       cfg,
		logger:       cfg.Logger.With("template", templateName),
	}
}

// TemplateName returns the name of the template being compiled
func (u *CompiledOutput) TemplateName() string { return u.templateName }

// Name returns the Go identifier of the unit
func (u *CompiledOutput) Name() string { return u.name }

// BaseName returns the identifier of the unit this one extends
func (u *CompiledOutput) BaseName() string { return u.baseName }

// Registry returns the unit's constructor registry
func (u *CompiledOutput) Registry() *Registry { return u.registry }

// State returns the lifecycle stage
func (u *CompiledOutput) State() State { return u.state }

// Stats returns the unit's counters
func (u *CompiledOutput) Stats() Stats {
	s := u.stats
	s.Constructors = u.registry.Len()
	s.Blocks = len(u.blocks)
	s.Expressions = 0
	for _, b := range u.blocks {
		s.Expressions += len(b.exprs)
	}
	return s
}

// Path returns the file the unit renders to
func (u *CompiledOutput) Path() string {
	return filepath.Join(u.config.OutDir, u.name+OutputExt)
}

// SetParentTemplate makes the unit extend the unit of the named template.
// It has no effect once the unit has been rendered.
func (u *CompiledOutput) SetParentTemplate(name string) {
	if u.state == StateRendered {
		u.logger.Warn("parent set after render ignored", "parent", name)
		return
	}
	u.baseName = UnitName(name)
}

// SetBlockNodes serialises the direct children of each block at depth 0 and
// records the resulting render lists in block order. A block named again
// replaces the earlier one.
func (u *CompiledOutput) SetBlockNodes(blocks []Block) {
	if u.state == StateRendered {
		u.logger.Warn("blocks set after render ignored", "blocks", len(blocks))
		return
	}

	for _, block := range blocks {
		exprs := []string{}
		if block.List != nil {
			for _, node := range block.List.Nodes {
				u.visitor.Serialise(node, 0, u, &exprs)
			}
		}
		u.addBlock(block.Name, exprs)
		u.logger.Debug("block serialised", "block", block.Name, "expressions", len(exprs))
	}
	u.state = StatePopulated
}

func (u *CompiledOutput) addBlock(name string, exprs []string) {
	for i := range u.blocks {
		if u.blocks[i].name == name {
			u.blocks[i].exprs = exprs
			return
		}
	}

	method := blockMethodName(name)
	taken := func(m string) bool {
		for _, b := range u.blocks {
			if b.method == m {
				return true
			}
		}
		return false
	}
	for i := 2; taken(method); i++ {
		method = blockMethodName(name) + "_" + strconv.Itoa(i)
	}

	u.blocks = append(u.blocks, renderedBlock{name: name, method: method, exprs: exprs})
}

// Render writes Source to Path. Rendering again writes the same bytes.
func (u *CompiledOutput) Render() error {
	src, err := u.Source()
	if err != nil {
		return err
	}
	if err := os.WriteFile(u.Path(), src, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", u.Path(), err)
	}

	u.state = StateRendered
	u.stats.Bytes = len(src)
	u.logger.Info("unit rendered", "unit", u.name, "path", u.Path(), "bytes", len(src))
	return nil
}

// Source returns the generated Go file. When the generated text cannot be
// formatted it is returned unformatted.
func (u *CompiledOutput) Source() ([]byte, error) {
	src := []byte(u.source())

	formatted, err := imports.Process(u.name+OutputExt, src, &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		u.logger.Warn("generated source not formatted", "error", err)
		return src, nil
	}
	return formatted, nil
}

const unitSkeleton = `// Code generated by pct from [templateQuoted]. DO NOT EDIT.

package [package]

import (
[imports])

var _ = [rt].Decode[any]
[constructors]
// [unit] is the precompiled form of [templateQuoted].
type [unit] struct {
	[base]
}
[methods]
// RenderBlock implements [rt].Template.
func (t [unit]) RenderBlock(name string, renderList []any) ([]any, bool) {
[dispatch]	return t.[baseField].RenderBlock(name, renderList)
}

func init() {
	[rt].Register([templateQuoted], [unit]{})
}
`

func (u *CompiledOutput) source() string {
	runtimePath := u.config.RuntimeImport

	var imps strings.Builder
	for _, imp := range u.registry.Imports() {
		if imp == runtimePath && path.Base(imp) != runtimeQualifier {
			fmt.Fprintf(&imps, "\t%s %s\n", runtimeQualifier, strconv.Quote(imp))
			continue
		}
		fmt.Fprintf(&imps, "\t%s\n", strconv.Quote(imp))
	}

	base, baseField := u.baseName, u.baseName
	if u.baseName == DefaultBaseName {
		base = runtimeQualifier + "." + DefaultBaseName
	}

	var methods strings.Builder
	for _, b := range u.blocks {
		fmt.Fprintf(&methods, "\n// %s appends the render list of block %s.\n", b.method, strconv.Quote(b.name))
		fmt.Fprintf(&methods, "func (t %s) %s(renderList []any) []any {\n", u.name, b.method)
		if len(b.exprs) == 0 {
			methods.WriteString("\treturn renderList\n}\n")
			continue
		}
		methods.WriteString("\treturn append(renderList,\n")
		for _, expr := range b.exprs {
			fmt.Fprintf(&methods, "\t\t%s,\n", expr)
		}
		methods.WriteString("\t)\n}\n")
	}

	var dispatch strings.Builder
	if len(u.blocks) > 0 {
		dispatch.WriteString("\tswitch name {\n")
		for _, b := range u.blocks {
			fmt.Fprintf(&dispatch, "\tcase %s:\n\t\treturn t.%s(renderList), true\n", strconv.Quote(b.name), b.method)
		}
		dispatch.WriteString("\t}\n")
	}

	r := strings.NewReplacer(
		"[templateQuoted]", strconv.Quote(u.templateName),
		"[package]", u.config.Package,
		"[imports]", imps.String(),
		"[rt]", runtimeQualifier,
		"[constructors]", strings.Join(u.registry.RenderAll(u.name), ""),
		"[unit]", u.name,
		"[base]", base,
		"[methods]", methods.String(),
		"[dispatch]", dispatch.String(),
		"[baseField]", baseField,
	)
	return r.Replace(unitSkeleton)
}
