package commands

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livefir/pct"
	"github.com/livefir/pct/cmd/pct/internal/manifest"
	"github.com/livefir/pct/cmd/pct/internal/ui"
	"github.com/livefir/pct/internal/metrics"
)

// Build compiles the templates named in args, or every template of the
// project when none are named
func Build(args []string) error {
	report, err := build(context.Background(), ".", os.Stdout, os.Stderr, args)
	if err != nil {
		return err
	}
	return report.err()
}

type buildOptions struct {
	jobs  int
	force bool
	stats bool
	names []string
}

func parseBuildFlags(args []string, out io.Writer) (*buildOptions, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(out)
	opts := &buildOptions{}
	fs.IntVar(&opts.jobs, "j", 0, "templates to build concurrently (default from pct.yaml)")
	fs.BoolVar(&opts.force, "force", false, "rebuild templates whose source is unchanged")
	fs.BoolVar(&opts.stats, "stats", false, "print compile metrics as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.names = fs.Args()
	return opts, nil
}

// buildReport is the outcome of one build run
type buildReport struct {
	built    []*pct.Result
	skipped  []string
	failed   map[string]error
	orphans  map[string]string   // template -> parent whose unit is missing
	removed  []string            // recorded templates whose source is gone
	clashes  map[string][]string // unit name -> templates mapping to it
	duration time.Duration
}

func (r *buildReport) err() error {
	if len(r.failed) == 0 {
		return nil
	}
	total := len(r.built) + len(r.skipped) + len(r.failed)
	return fmt.Errorf("%d of %d templates failed", len(r.failed), total)
}

// buildStats is the -stats output
type buildStats struct {
	metrics.CompileMetrics
	ErrorRate    float64 `json:"error_rate"`
	SentinelRate float64 `json:"sentinel_rate"`
}

func build(ctx context.Context, dir string, out, logOut io.Writer, args []string) (*buildReport, error) {
	opts, err := parseBuildFlags(args, out)
	if err != nil {
		return nil, err
	}

	p, err := loadProject(dir, logOut)
	if err != nil {
		return nil, err
	}

	store, err := p.openManifest(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	names, err := p.templates(opts.names)
	if err != nil {
		return nil, err
	}

	jobs := opts.jobs
	if jobs <= 0 {
		jobs = p.config.Jobs
	}

	report := compileAll(ctx, p, store, names, jobs, opts.force)

	// Only a full build knows every template that still exists
	if len(opts.names) == 0 {
		if err := prune(ctx, p, store, names, report); err != nil {
			return nil, err
		}
	}

	printBuildReport(ui.NewPrinter(out), report)

	if opts.stats {
		stats := buildStats{
			CompileMetrics: p.metrics.GetMetrics(),
			ErrorRate:      p.metrics.GetErrorRate(),
			SentinelRate:   p.metrics.GetSentinelRate(),
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode metrics: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return report, nil
}

// unitClashes groups names by the unit they generate and returns the groups
// holding more than one template
func unitClashes(names []string) map[string][]string {
	byUnit := make(map[string][]string)
	for _, name := range names {
		unit := pct.UnitName(name)
		byUnit[unit] = append(byUnit[unit], name)
	}

	clashes := make(map[string][]string)
	for unit, group := range byUnit {
		if len(group) > 1 {
			sort.Strings(group)
			clashes[unit] = group
		}
	}
	return clashes
}

// compileAll builds names with at most jobs in flight. A failing template
// does not stop the others. Templates whose unit name clashes with another
// are not built.
func compileAll(ctx context.Context, p *project, store *manifest.Store, names []string, jobs int, force bool) *buildReport {
	start := time.Now()
	report := &buildReport{
		failed:  map[string]error{},
		orphans: map[string]string{},
		clashes: unitClashes(names),
	}

	clashing := make(map[string]bool)
	for unit, group := range report.clashes {
		for _, name := range group {
			clashing[name] = true
			report.failed[name] = fmt.Errorf("unit %s is also generated by %v", unit, group)
		}
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, name := range names {
		if clashing[name] {
			continue
		}
		name := name
		g.Go(func() error {
			res, skipped, err := compileOne(ctx, p, store, name, force)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.failed[name] = err
			case skipped:
				report.skipped = append(report.skipped, name)
			default:
				report.built = append(report.built, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.built, func(i, j int) bool { return report.built[i].Template < report.built[j].Template })
	sort.Strings(report.skipped)

	// A child unit embeds its parent's type, so the parent must be generated
	// into the same package
	for _, res := range report.built {
		if res.Parent == "" {
			continue
		}
		parentPath := filepath.Join(p.compiler.OutDir(), pct.OutputFileName(res.Parent))
		if _, err := os.Stat(parentPath); errors.Is(err, os.ErrNotExist) {
			report.orphans[res.Template] = res.Parent
			p.logger.Warn("parent unit missing", "template", res.Template, "parent", res.Parent, "expected", parentPath)
		}
	}

	report.duration = time.Since(start)
	return report
}

func compileOne(ctx context.Context, p *project, store *manifest.Store, name string, force bool) (*pct.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	t, err := p.loader.Load(name)
	if err != nil {
		p.metrics.IncrementError(name)
		return nil, false, err
	}

	if !force {
		fresh, err := store.UpToDate(ctx, name, pct.HashSource(t.Source), p.settingsHash)
		if err != nil {
			return nil, false, err
		}
		if fresh {
			p.metrics.IncrementSkipped()
			p.logger.Debug("template up to date", "template", name)
			return nil, true, nil
		}
	}

	res, err := p.compiler.CompileTemplate(t)
	if err != nil {
		return nil, false, err
	}

	err = store.Put(ctx, manifest.Artifact{
		Template:     res.Template,
		Unit:         res.Unit,
		Parent:       res.Parent,
		SourceHash:   res.SourceHash,
		SettingsHash: p.settingsHash,
		OutputPath:   res.Path,
		Constructors: res.Stats.Constructors,
		Blocks:       res.Stats.Blocks,
		Sentinels:    res.Stats.Sentinels,
	})
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

// prune forgets recorded templates missing from names and removes their
// generated files. Units that extended a removed template are reported as
// orphans.
func prune(ctx context.Context, p *project, store *manifest.Store, names []string, report *buildReport) error {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	recorded, err := store.List(ctx)
	if err != nil {
		return err
	}

	for _, a := range recorded {
		if present[a.Template] {
			continue
		}

		if err := os.Remove(a.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", a.OutputPath, err)
		}
		if err := store.Delete(ctx, a.Template); err != nil {
			return err
		}
		report.removed = append(report.removed, a.Template)
		p.logger.Info("removed unit of deleted template", "template", a.Template, "path", a.OutputPath)

		children, err := store.Children(ctx, a.Template)
		if err != nil {
			return err
		}
		for _, child := range children {
			if present[child.Template] {
				report.orphans[child.Template] = a.Template
			}
		}
	}
	return nil
}

func printBuildReport(pr *ui.Printer, r *buildReport) {
	for _, res := range r.built {
		pr.Success("%s -> %s", res.Template, res.Path)
		if res.Stats.Sentinels > 0 {
			pr.Warn("%s: %d values could not be encoded", res.Template, res.Stats.Sentinels)
		}
	}

	for _, name := range sortedKeys(r.failed) {
		pr.Error("%s: %v", name, r.failed[name])
	}

	for _, name := range sortedKeys(r.orphans) {
		pr.Warn("%s extends %s, which has not been built", name, r.orphans[name])
	}

	for _, name := range r.removed {
		pr.Muted("removed %s", name)
	}

	pr.Muted("%d built, %d up to date, %d failed in %s",
		len(r.built), len(r.skipped), len(r.failed), r.duration.Round(time.Millisecond))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
