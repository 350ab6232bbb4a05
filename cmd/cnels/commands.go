package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"

	"codename.dev/cnels"
	"codename.dev/cnels/catalog"
	"codename.dev/cnels/internal/config"
	"codename.dev/cnels/stagexml"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server",
		Long: `Serve runs the language server on standard input and output.

With --listen, it accepts websocket connections instead and runs an
independent session on each, one JSON-RPC message per text frame.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Without --config, the workspace file is read at initialize.
			cfg, err := config.Load(flags.config)
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, level := newLogger(cmd.ErrOrStderr(), cfg)
			opts := options{
				cfg:    cfg,
				pinned: flags.config != "",
				flags:  flags,
				level:  level,
				logger: logger,
			}
			logger.Info("starting", "version", version, "listen", listen)

			ctx := cmd.Context()
			if listen == "" {
				s, err := newServer(newStreamTransport(cmd.InOrStdin(), cmd.OutOrStdout()), opts)
				if err != nil {
					return err
				}
				return s.run(ctx)
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: wsHandler(ctx, opts)}
			go func() {
				<-ctx.Done()
				srv.Close()
			}()
			logger.Info("listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve websocket sessions on `addr` instead of stdio")
	return cmd
}

func newScopeCmd(flags *globalFlags) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "scope FILE LINE",
		Short: "Report whether a line of a Haxe script is inside a function body",
		Long: `Scope prints "inside" if LINE (1-based) of FILE lies inside the body of a
function, and "outside" otherwise. With -v, it also prints the enclosing
function's lines, or every function span found when outside.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			line, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("bad line number %q", args[1])
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			d := cnels.Detector{CountLiteralBraces: cfg.Scope.CountLiteralBraces}
			buf := cnels.NewBuffer(string(data))
			out := cmd.OutOrStdout()
			span, inside := d.Enclosing(buf, cnels.Position{Line: line - 1})
			switch {
			case inside && verbose:
				fmt.Fprintf(out, "inside %s\n", span)
			case inside:
				fmt.Fprintln(out, "inside")
			default:
				fmt.Fprintln(out, "outside")
				if verbose {
					for _, s := range d.Spans(buf) {
						fmt.Fprintf(out, "\tfunction %s\n", s)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print function spans")
	return cmd
}

func newLintCmd(flags *globalFlags) *cobra.Command {
	var rulesFile string
	cmd := &cobra.Command{
		Use:   "lint FILE...",
		Short: "Check stage files",
		Long: `Lint checks stage XML files against lint rules, printing one line per
problem. It exits with status 1 if it finds any.

Rules come from --rules, else the configured rules_file, else the built-in
rules. Run "cnels lint --print-rules" to see the built-in rules.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if printRules, _ := cmd.Flags().GetBool("print-rules"); printRules {
				_, err := fmt.Fprint(out, stagexml.DefaultRulesText())
				return err
			}
			if len(args) == 0 {
				return errors.New("no files to lint")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if rulesFile == "" {
				rulesFile = cfg.RulesFile
			}
			rules := stagexml.DefaultRules()
			if rulesFile != "" {
				if rules, err = loadRules(rulesFile); err != nil {
					return err
				}
			}

			found := false
			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				for _, p := range stagexml.Lint(stagexml.Parse(string(data)), rules) {
					found = true
					fmt.Fprintf(out, "%s:%s\n", name, p)
				}
			}
			if found {
				return exitError{1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "rules `file` replacing the built-in rules")
	cmd.Flags().Bool("print-rules", false, "print the built-in rules and exit")
	return cmd
}

func newCatalogCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "catalog [TABLE]",
		Short:     "List catalog entries",
		Long:      `Catalog lists the names in TABLE, or every table with its size.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: catalog.Tables,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cat := catalog.Default()
			if cfg.CatalogDir != "" {
				if cat, err = catalog.Load(os.DirFS(cfg.CatalogDir)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				names, err := cat.Names(args[0])
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
			for _, table := range catalog.Tables {
				names, _ := cat.Names(table)
				fmt.Fprintf(tw, "%s\t%d\n", table, len(names))
			}
			return tw.Flush()
		},
	}
}
