// Command cnels is a language server and command-line tool for Codename Engine
// mods: Haxe scripts and stage XML files.
//
// # Installation
//
// To install the latest version of cnels, run:
//
//	go install codename.dev/cnels/cmd/cnels@latest
//
// # Supported Features
//
// In Haxe scripts (.hx, .hsc, .hscript):
//
//   - Completion: callback declarations such as create, update and
//     onPlayerHit at the top level of a script; engine types and event classes
//     inside function bodies
//   - Hover: documentation for callbacks, events and types
//
// In stage files (data/stages/*.xml):
//
//   - Completion: stage snippets, and the attributes of the element being edited
//   - Hover: documentation for elements and attributes
//   - Diagnostics: malformed tags and lint rules
//
// # Usage
//
//	cnels [serve]               run the language server on stdin/stdout
//	cnels serve --listen ADDR   serve sessions over websocket at ws://ADDR/
//	cnels scope FILE LINE       report whether LINE of a script is in a function body
//	cnels lint FILE...          check stage files
//	cnels catalog [TABLE]       list callbacks, events, types, elements or snippets
//
// # Configuration
//
// cnels reads .cnels.yaml from the workspace root, or the file named by
// --config:
//
//	haxe_patterns: ["**/*.hx", "**/*.hsc", "**/*.hscript"]
//	stage_patterns: ["**/stages/*.xml", "**/stages/**/*.xml"]
//	catalog_dir: tools/catalog   # JSON tables replacing the built-in ones
//	rules_file: tools/stage.rules
//	max_documents: 256
//	scope:
//	  count_literal_braces: false
//	log_level: info
//
// Editors may send the same keys as initializationOptions, or as the "cnels"
// section of their settings.
//
// # Editor Setup
//
// cnels communicates over stdin/stdout using the LSP protocol.
//
// Using nvim-lspconfig (Neovim 0.5+), add to your init.lua:
//
//	vim.api.nvim_create_autocmd({'BufRead', 'BufNewFile'}, {
//		pattern = {'*.hx', '*.hsc', '*/stages/*.xml'},
//		callback = function()
//			vim.lsp.start({
//				name = 'cnels',
//				cmd = {'cnels'},
//			})
//		end,
//	})
//
// Using eglot:
//
//	(add-to-list 'eglot-server-programs '((haxe-mode nxml-mode) . ("cnels")))
//
// # Helix
//
// Add to languages.toml:
//
//	[language-server.cnels]
//	command = "cnels"
//
//	[[language]]
//	name = "haxe"
//	language-servers = ["cnels"]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"

	"codename.dev/cnels/internal/config"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var e exitError
		if errors.As(err, &e) {
			os.Exit(e.code)
		}
		fmt.Fprintf(os.Stderr, "cnels: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the flags every subcommand accepts.
type globalFlags struct {
	config     string
	logLevel   string
	catalogDir string
}

// apply overrides cfg with the flags that were set.
func (f *globalFlags) apply(cfg *config.Config) {
	if f == nil {
		return
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.catalogDir != "" {
		cfg.CatalogDir = f.catalogDir
	}
}

// load returns the configuration for a command run in the current directory.
func (f *globalFlags) load() (*config.Config, error) {
	path := f.config
	if path == "" {
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a text logger on w and the variable holding its level.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	if l, err := cfg.Level(); err == nil {
		level.Set(l)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), level
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	flags := new(globalFlags)
	root := &cobra.Command{
		Use:           "cnels",
		Short:         "Language server for Codename Engine scripts and stages",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "configuration `file` (default .cnels.yaml in the workspace root)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log `level`: debug, info, warn or error")
	pf.StringVar(&flags.catalogDir, "catalog-dir", "", "`directory` of JSON tables replacing the built-in catalog")

	serve := newServeCmd(flags)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(
		serve,
		newScopeCmd(flags),
		newLintCmd(flags),
		newCatalogCmd(flags),
	)
	return root
}
