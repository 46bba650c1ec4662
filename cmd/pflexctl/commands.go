package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/app"
	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/ledger"
	"github.com/dokzlo13/pflexctl/internal/lua"
	"github.com/dokzlo13/pflexctl/internal/playbook"
)

const defaultConfigPath = "pflexctl.yaml"

type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "pflexctl",
		Short:         "Reconcile PowerFlex storage against declared state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "Path to configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level")

	for _, name := range app.Modules() {
		root.AddCommand(c.moduleCommand(name))
	}
	root.AddCommand(c.applyCommand(), c.runCommand(), c.ledgerCommand())
	return root
}

// setup loads configuration and configures logging. A missing default config file
// falls back to built-in defaults; an explicit --config must exist.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return errs.Mark(errors.Wrapf(err, "load config %s", c.configPath), errs.ErrInvalidParameter)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.cfg = cfg

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
	return nil
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.cfg)
}

func (c *cli) moduleCommand(name string) *cobra.Command {
	var (
		paramsPath string
		check      bool
		diff       bool
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: "Run the " + name + " module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext()
			defer cancel()

			task := &app.Task{Name: name, Module: name, CheckMode: check, Diff: diff}
			if paramsPath != "" {
				if err := readParams(paramsPath, cmd.InOrStdin(), &task.Params); err != nil {
					return err
				}
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Run(ctx, task)
			if err != nil {
				_ = writeJSON(cmd.OutOrStdout(), app.Failure(err))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&paramsPath, "file", "f", "", "Module parameters as YAML (- for stdin)")
	cmd.Flags().BoolVar(&check, "check", false, "Report what would change without changing it")
	cmd.Flags().BoolVar(&diff, "diff", false, "Include before/after state")
	return cmd
}

func (c *cli) applyCommand() *cobra.Command {
	var (
		path  string
		check bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run a YAML list of tasks in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext()
			defer cancel()

			tasks, err := playbook.Load(path)
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			results, runErr := playbook.Run(ctx, a, tasks, check)
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "Playbook file")
	cmd.Flags().BoolVar(&check, "check", false, "Run every task in check mode")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script with the pflex module",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := app.SignalContext()
			defer cancel()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rt := lua.NewRuntime(a, app.Modules())
			defer rt.Close()
			return rt.DoFile(log.Logger.WithContext(ctx), args[0])
		},
	}
}

func (c *cli) ledgerCommand() *cobra.Command {
	var (
		limit     int
		eventType string
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recent recorded operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.Ledger.Enabled() {
				return errs.WithHint(errs.Newf(errs.ErrInvalidParameter, "the ledger is disabled"), "set ledger.path in the configuration")
			}
			var typ ledger.EventType
			if eventType != "" {
				var err error
				if typ, err = ledger.ParseEventType(eventType); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []*ledger.Entry
			if typ != "" {
				entries, err = a.Ledger().GetByType(ctx, typ, limit)
			} else {
				entries, err = a.Ledger().Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "Only show one event type (planned, completed or failed)")
	return cmd
}

func readParams(path string, stdin io.Reader, node *yaml.Node) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return errs.Mark(errors.Wrap(err, "read parameters"), errs.ErrInvalidParameter)
	}
	if err := yaml.Unmarshal(data, node); err != nil {
		return errs.Mark(errors.Wrap(err, "parse parameters"), errs.ErrInvalidParameter)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
