package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const (
	formatTSV   = "tsv"
	formatTable = "table"
)

// config is the resolved command line configuration
type config struct {
	MaxDepth int
	LogLevel slog.Level
	Format   string
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "sheet",
		Short: "Evaluate spreadsheet scripts",
		Long: `Sheet runs a small command language against a single in-memory sheet.

Each line is one command:

  set <cell> <text>     set a cell; text starting with '=' is a formula
  clear <cell>          empty a cell
  get <cell>            print a cell's value
  text <cell>           print a cell's text
  size                  print the printable area as "rows cols"
  print values|texts    print the printable area
  deps <cell>           print every cell that depends on a cell
  refs <cell>           print every cell a cell depends on
  calc                  evaluate every stale formula

Blank lines and lines starting with '#' are ignored.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config %s: %w", configFile, err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	flags.Int("max-depth", spreadsheet.DefaultMaxEvalDepth, "Maximum nesting of formula evaluation")
	flags.String("log-level", "warn", "Log level: debug|info|warn|error")
	flags.String("format", "", "Output format for print: tsv|table (default: table on a terminal, tsv otherwise)")

	v.SetEnvPrefix("SHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	rootCmd.AddCommand(
		newEvalCommand(v),
		newReplCommand(v),
	)
	return rootCmd
}

func newEvalCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [file]",
		Short: "Run a script from a file, or stdin when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			name := "stdin"
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in, name = f, args[0]
			}
			in, err = decodeInput(in, v.GetString("encoding"))
			if err != nil {
				return err
			}

			interp := newInterpreter(commandOutput(cmd), cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err := interp.Run(in); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		},
	}

	cmd.Flags().String("encoding", "utf-8", "Script encoding: utf-8|latin1|windows-1252")
	_ = v.BindPFlag("encoding", cmd.Flags().Lookup("encoding"))
	return cmd
}

func newReplCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run commands interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			interp := newInterpreter(commandOutput(cmd), cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			runRepl(interp)
			return nil
		},
	}
}

// loadConfig resolves flags, environment and config file into a config
func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		MaxDepth: v.GetInt("max-depth"),
		Format:   strings.ToLower(v.GetString("format")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return config{}, fmt.Errorf("invalid log level %q", v.GetString("log-level"))
	}
	if cfg.MaxDepth <= 0 {
		return config{}, fmt.Errorf("max-depth must be positive, got %d", cfg.MaxDepth)
	}

	switch cfg.Format {
	case "":
		cfg.Format = formatTSV
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			cfg.Format = formatTable
		}
	case formatTSV, formatTable:
	default:
		return config{}, fmt.Errorf("unknown format %q, want tsv or table", cfg.Format)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// commandOutput returns the command's output, switching the process stdout
// to a colorable writer so escape sequences work on every platform
func commandOutput(cmd *cobra.Command) io.Writer {
	out := cmd.OutOrStdout()
	if out == os.Stdout {
		return colorable.NewColorableStdout()
	}
	return out
}
