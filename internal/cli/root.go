// Package cli implements the sov command line tool.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-sov/internal/app"
	"github.com/AI-Template-SDK/senso-sov/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigFile string
	Verbose    bool

	build builder
	app   *app.App
}

// builder wires the application for a loaded configuration.
type builder func(ctx context.Context, cfg *config.Config) (*app.App, error)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sov CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return app.Build(ctx, cfg, nil)
	})
}

func newRootCommand(build builder) *cobra.Command {
	opts := &RootOptions{build: build}

	cmd := &cobra.Command{
		Use:           "sov",
		Short:         "Brand share of voice in AI answers",
		Long:          "Profiles a brand's domain, asks AI models buyer questions and measures how often the brand is named against its competitors.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app != nil {
				return opts.app.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML file overriding models and pipeline settings")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewProvidersCommand(opts))
	cmd.AddCommand(NewAliasesCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))

	return cmd
}

// App loads configuration and wires the application once per invocation.
func (o *RootOptions) App(ctx context.Context) (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.ConfigFile != "" {
		if err := cfg.LoadFile(o.ConfigFile); err != nil {
			return nil, err
		}
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	app.SetupLogging(cfg, os.Stderr)

	a, err := o.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	o.app = a
	return a, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
