package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/livefir/pct"
	"github.com/livefir/pct/cmd/pct/internal/manifest"
	"github.com/livefir/pct/cmd/pct/internal/ui"
)

// Status shows every template of the project against its last build
func Status(args []string) error {
	return status(context.Background(), ".", os.Stdout, os.Stderr, args)
}

func status(ctx context.Context, dir string, out, logOut io.Writer, args []string) error {
	p, err := loadProject(dir, logOut)
	if err != nil {
		return err
	}

	store, err := p.openManifest(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := p.templates(args)
	if err != nil {
		return err
	}

	rows, err := statusRows(ctx, p, store, names)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		removed, err := removedRows(ctx, store, names)
		if err != nil {
			return err
		}
		rows = append(rows, removed...)
	}

	pr := ui.NewPrinter(out)
	pr.Title("%s", p.configPath)
	fmt.Fprintln(out, ui.StatusTable(rows))
	return nil
}

func statusRows(ctx context.Context, p *project, store *manifest.Store, names []string) ([]ui.Row, error) {
	rows := make([]ui.Row, 0, len(names))
	for _, name := range names {
		row := ui.Row{Template: name, Unit: pct.UnitName(name), State: ui.StateNew}

		a, err := store.Get(ctx, name)
		if errors.Is(err, manifest.ErrNotFound) {
			rows = append(rows, row)
			continue
		}
		if err != nil {
			return nil, err
		}

		row.Parent = a.Parent
		row.Constructors = a.Constructors
		row.Blocks = a.Blocks
		row.Sentinels = a.Sentinels
		row.CompiledAt = a.CompiledAt
		row.State = ui.StateFresh

		t, err := p.loader.Load(name)
		switch {
		case err != nil:
			p.logger.Warn("failed to load template", "template", name, "error", err)
			row.State = ui.StateStale
		case pct.HashSource(t.Source) != a.SourceHash, a.SettingsHash != p.settingsHash:
			row.State = ui.StateStale
		}
		if _, err := os.Stat(a.OutputPath); err != nil {
			row.State = ui.StateMissing
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// removedRows lists recorded templates that are no longer in names
func removedRows(ctx context.Context, store *manifest.Store, names []string) ([]ui.Row, error) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	recorded, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ui.Row
	for _, a := range recorded {
		if present[a.Template] {
			continue
		}
		rows = append(rows, ui.Row{
			Template:     a.Template,
			Unit:         a.Unit,
			Parent:       a.Parent,
			Constructors: a.Constructors,
			Blocks:       a.Blocks,
			Sentinels:    a.Sentinels,
			CompiledAt:   a.CompiledAt,
			State:        ui.StateRemoved,
		})
	}
	return rows, nil
}
