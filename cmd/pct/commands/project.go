package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/livefir/pct"
	"github.com/livefir/pct/cmd/pct/internal/config"
	"github.com/livefir/pct/cmd/pct/internal/manifest"
	"github.com/livefir/pct/internal/metrics"
)

// project is a loaded, validated pct.yaml with everything a command needs
// to compile its templates
type project struct {
	configPath string
	config     *config.Config // paths anchored at the config file
	logger     *slog.Logger
	loader     *pct.FSLoader
	compiler   *pct.Compiler
	metrics    *metrics.Collector

	// settingsHash fingerprints the settings that shape generated files;
	// a change invalidates every recorded artifact
	settingsHash string
}

// loadProject finds the config governing dir and prepares a compiler for it
func loadProject(dir string, logOut io.Writer) (*project, error) {
	path, err := config.FindConfigPath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Resolve(filepath.Dir(path))

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)

	roots := make([]fs.FS, 0, len(cfg.SourceDirs))
	for _, dir := range cfg.SourceDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("source directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("source directory %s is not a directory", dir)
		}
		roots = append(roots, os.DirFS(dir))
	}

	loader := pct.NewFSLoader(roots,
		pct.WithExtensions(cfg.Extensions...),
		pct.WithDelims(cfg.LeftDelim, cfg.RightDelim),
	)

	collector := metrics.NewCollector()
	compiler := pct.NewCompiler(loader,
		pct.WithOutDir(cfg.OutDir),
		pct.WithPackage(cfg.Package),
		pct.WithRuntimeImport(cfg.RuntimeImport),
		pct.WithLogger(logger),
		pct.WithMetrics(collector),
	)

	return &project{
		configPath:   path,
		config:       cfg,
		logger:       logger,
		loader:       loader,
		compiler:     compiler,
		metrics:      collector,
		settingsHash: settingsHash(cfg),
	}, nil
}

func settingsHash(cfg *config.Config) string {
	fields := []string{cfg.OutDir, cfg.Package, cfg.RuntimeImport, cfg.LeftDelim, cfg.RightDelim}
	return pct.HashSource([]byte(strings.Join(fields, "\x00")))
}

func (p *project) openManifest(ctx context.Context) (*manifest.Store, error) {
	return manifest.Open(ctx, p.config.Manifest)
}

// templates returns names, or every template under the source dirs when
// names is empty
func (p *project) templates(names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	return p.loader.Discover()
}
