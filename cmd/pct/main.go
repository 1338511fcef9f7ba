package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/livefir/pct/cmd/pct/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "build":
		err = commands.Build(args)
	case "watch":
		err = commands.Watch(args)
	case "status":
		err = commands.Status(args)
	case "config":
		err = commands.Config(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("pct version %s\n", version)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	revision := commit
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if revision == "unknown" {
				revision = setting.Value
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision != "unknown" {
		if len(revision) > 12 {
			revision = revision[:12]
		}
		fmt.Printf("commit: %s\n", revision)
	}
	if modified {
		fmt.Printf("modified: true (uncommitted changes)\n")
	}
	fmt.Printf("go: %s\n", info.GoVersion)
}

func printUsage() {
	fmt.Println("pct - precompile Go templates into Go source")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pct build [-j N] [-force] [-stats] [<template>...]   Compile templates")
	fmt.Println("  pct watch [-j N]                                     Compile, then recompile on save")
	fmt.Println("  pct status [<template>...]                           Show templates against the last build")
	fmt.Println("  pct config <command>                                 Manage pct.yaml")
	fmt.Println("  pct version                                          Show version information")
	fmt.Println()
	fmt.Println("Config Commands:")
	fmt.Println("  pct config init                Write a default pct.yaml")
	fmt.Println("  pct config list                Show every setting")
	fmt.Println("  pct config get <key>           Show one setting")
	fmt.Println("  pct config set <key> <value>   Change one setting (lists are comma separated)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pct build")
	fmt.Println("  pct build blog/post.html")
	fmt.Println("  pct config set source_dirs templates,shared/templates")
	fmt.Println()
	fmt.Println("Templates name their parent with {{extends \"base.html\"}}. The generated")
	fmt.Println("file for blog/post.html is PCT_blog__post___html.go in out_dir.")
}
