package pct

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"text/template/parse"
	"time"

	"github.com/livefir/pct/internal/metrics"
)

// Result summarises one compiled template
type Result struct {
	Template   string
	Unit       string
	Parent     string // template named by {{extends}}, empty for a base template
	Path       string
	SourceHash string // hex sha256 of the template source
	Stats      Stats
	Tree       *parse.Tree
}

// Compiler turns templates into generated Go units. A Compiler holds no
// per-template state and may compile several templates concurrently.
type Compiler struct {
	loader  Loader
	config  Config
	visitor *Visitor
	logger  *slog.Logger
}

// NewCompiler creates a compiler resolving template names through loader
func NewCompiler(loader Loader, opts ...Option) *Compiler {
	cfg := newConfig(opts...)
	return &Compiler{
		loader:  loader,
		config:  cfg,
		visitor: NewVisitor(cfg.Dispatch, cfg.Codec, cfg.Logger),
		logger:  cfg.Logger,
	}
}

// Metrics returns the collector compilations are recorded in
func (c *Compiler) Metrics() *metrics.Collector {
	return c.config.Metrics
}

// OutDir returns the directory units are written to
func (c *Compiler) OutDir() string {
	return c.config.OutDir
}

// Compile loads the named template and writes its unit
func (c *Compiler) Compile(name string) (*Result, error) {
	t, err := c.loader.Load(name)
	if err != nil {
		c.config.Metrics.IncrementError(name)
		return nil, err
	}
	return c.CompileTemplate(t)
}

// CompileTemplate writes the unit of an already parsed template. A template
// whose {{extends}} parent is not a string constant fails with a
// *CompilerError and nothing is written.
func (c *Compiler) CompileTemplate(t *Template) (*Result, error) {
	start := time.Now()

	res, err := c.compile(t)
	if err != nil {
		c.config.Metrics.IncrementError(t.Name)
		c.logger.Error("compile failed", "template", t.Name, "error", err)
		return nil, err
	}

	took := time.Since(start)
	s := res.Stats
	c.config.Metrics.RecordCompile(s.Nodes, s.Constructors, s.Blocks, s.Sentinels, s.Bytes, took)
	c.logger.Debug("template compiled",
		"template", t.Name, "unit", res.Unit, "parent", res.Parent, "blocks", s.Blocks, "took", took)
	return res, nil
}

func (c *Compiler) compile(t *Template) (*Result, error) {
	if t.Tree == nil || t.Tree.Root == nil {
		return nil, &CompilerError{Template: t.Name, Err: fmt.Errorf("template has no parse tree")}
	}

	unit := newCompiledOutput(t.Name, c.config, c.visitor)

	var parent string
	if marker := findExtends(t.Tree.Root); marker != nil {
		name, err := parentName(marker)
		if err != nil {
			return nil, &CompilerError{Template: t.Name, Err: err}
		}
		parent = name
		unit.SetParentTemplate(parent)
	}

	unit.SetBlockNodes(collectBlocks(t))

	if err := os.MkdirAll(c.config.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", c.config.OutDir, err)
	}
	if err := unit.Render(); err != nil {
		return nil, err
	}

	return &Result{
		Template:   t.Name,
		Unit:       unit.Name(),
		Parent:     parent,
		Path:       unit.Path(),
		SourceHash: HashSource(t.Source),
		Stats:      unit.Stats(),
		Tree:       t.Tree,
	}, nil
}

// Precompile compiles the named template and returns its parsed main tree
func (c *Compiler) Precompile(name string) (*parse.Tree, error) {
	res, err := c.Compile(name)
	if err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// Precompile compiles the named template from the working directory,
// writing the unit there too unless opts say otherwise
func Precompile(name string, opts ...Option) (*parse.Tree, error) {
	loader := NewFSLoader([]fs.FS{os.DirFS(".")})
	return NewCompiler(loader, opts...).Precompile(name)
}

// HashSource returns the hex sha256 of a template source, as recorded in
// Result.SourceHash
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
