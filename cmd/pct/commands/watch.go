package commands

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/livefir/pct/cmd/pct/internal/ui"
	"github.com/livefir/pct/cmd/pct/internal/watch"
)

// Watch builds the project, then rebuilds templates as they are saved
// until interrupted
func Watch(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := watchProject(ctx, ".", os.Stdout, os.Stderr, args)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func watchProject(ctx context.Context, dir string, out, logOut io.Writer, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(out)
	jobs := fs.Int("j", 0, "templates to build concurrently (default from pct.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := loadProject(dir, logOut)
	if err != nil {
		return err
	}
	if *jobs <= 0 {
		*jobs = p.config.Jobs
	}

	store, err := p.openManifest(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pr := ui.NewPrinter(out)

	names, err := p.templates(nil)
	if err != nil {
		return err
	}
	report := compileAll(ctx, p, store, names, *jobs, false)
	if err := prune(ctx, p, store, names, report); err != nil {
		return err
	}
	printBuildReport(pr, report)

	w, err := watch.New(p.config.SourceDirs, p.config.Extensions, p.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	pr.Title("Watching %d directories for changes", len(w.Watched()))

	return w.Run(ctx, func(changed []string) {
		p.metrics.Reset()
		printBuildReport(pr, compileAll(ctx, p, store, changed, *jobs, false))
	})
}
