package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/livefir/pct/cmd/pct/internal/config"
	"github.com/livefir/pct/cmd/pct/internal/ui"
)

// Config handles configuration management commands
func Config(args []string) error {
	return configCommand(".", os.Stdout, args)
}

func configCommand(dir string, out io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("command required: init, get, set, list")
	}

	command := args[0]

	switch command {
	case "init":
		return configInit(dir, out)
	case "get":
		return configGet(dir, out, args[1:])
	case "set":
		return configSet(dir, out, args[1:])
	case "list":
		return configList(dir, out)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// configInit writes a default pct.yaml into dir
func configInit(dir string, out io.Writer) error {
	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	ui.NewPrinter(out).Success("Created %s", path)
	return nil
}

func configGet(dir string, out io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("key required: pct config get <key>")
	}

	cfg, _, err := loadConfig(dir)
	if err != nil {
		return err
	}

	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// configSet assigns a value and saves the file, refusing values that would
// leave the config invalid
func configSet(dir string, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("key and value required: pct config set <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	cfg, path, err := loadConfig(dir)
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	ui.NewPrinter(out).Success("Set %s to: %s", key, value)
	return nil
}

func configList(dir string, out io.Writer) error {
	cfg, path, err := loadConfig(dir)
	if err != nil {
		return err
	}

	pr := ui.NewPrinter(out)
	pr.Title("Configuration")
	fmt.Fprintln(out)

	for _, key := range config.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = "(none)"
		}
		fmt.Fprintf(out, "%-16s %s\n", key+":", value)
	}
	fmt.Fprintln(out)

	pr.Muted("Config file: %s", path)
	return nil
}

func loadConfig(dir string) (*config.Config, string, error) {
	path, err := config.FindConfigPath(dir)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}
