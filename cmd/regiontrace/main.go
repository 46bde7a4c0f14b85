// Package main is the entry point for the regiontrace CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	rtcli "github.com/NikitaCOEUR/regiontrace/internal/cli"
	"github.com/NikitaCOEUR/regiontrace/internal/config"
	"github.com/NikitaCOEUR/regiontrace/internal/logger"
	"github.com/NikitaCOEUR/regiontrace/internal/report"
	"github.com/NikitaCOEUR/regiontrace/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig merges config files from the working directory upwards with
// the global and replay flags of cmd.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, _, err := rtcli.LoadConfig(currentDir, cmd.String("config"), rtcli.Overrides{
		Backend:   cmd.String("backend"),
		Endpoint:  cmd.String("endpoint"),
		OutputDir: cmd.String("output"),
		LogLevel:  cmd.String("log-level"),
	})
	return cfg, err
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "regiontrace",
		Usage:                 "Record region enter/exit events for a measurement backend",
		Version:               version.Version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides log_level",
				Sources: cli.EnvVars("REGIONTRACE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text, json)",
				Sources: cli.EnvVars("REGIONTRACE_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Config file merged after the ones found from the current directory upwards",
				Sources: cli.EnvVars("REGIONTRACE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "Drive a session from a JSON lines or YAML event log",
				ArgsUsage: "<events-file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "backend",
						Usage: "Backend: memory, otel-stdout, otlp, runtime-trace or none",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory where the experiment directory is created",
					},
					&cli.StringFlag{
						Name:  "endpoint",
						Usage: "OTLP gRPC collector address (host:port)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("events file required")
					}

					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}

					_, err = rtcli.Replay(ctx, rtcli.ReplayParams{
						EventsPath: cmd.Args().First(),
						Config:     cfg,
						Logger:     logger.NewWithFormat(cfg.LogLevel, cmd.String("log-format"), cmd.Root().ErrWriter),
						Stdout:     cmd.Root().Writer,
						Warnings:   cmd.Root().ErrWriter,
					})
					return err
				},
			},
			{
				Name:      "report",
				Usage:     "Show the profile of a recorded trace",
				ArgsUsage: "<trace.json|experiment-dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "template",
						Aliases: []string{"t"},
						Usage:   "Render with a text/template file instead of the built-in view",
					},
					&cli.IntFlag{
						Name:  "top",
						Value: report.DefaultTop,
						Usage: "Number of regions listed",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("trace file required")
					}
					return rtcli.Report(rtcli.ReportParams{
						TracePath:    cmd.Args().First(),
						TemplatePath: cmd.String("template"),
						Top:          int(cmd.Int("top")),
						Stdout:       cmd.Root().Writer,
					})
				},
			},
			{
				Name:      "validate",
				Usage:     "Validate a regiontrace configuration file",
				ArgsUsage: "[config-file]",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return rtcli.Validate(cmd.Args().First(), cmd.Root().Writer)
				},
			},
			{
				Name:      "schema",
				Usage:     "Display or export the JSON Schema for regiontrace configuration files",
				ArgsUsage: "[output-file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (prints to stdout if not specified)",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					outputPath := cmd.String("output")
					if outputPath == "" && cmd.Args().Len() > 0 {
						outputPath = cmd.Args().First()
					}
					return rtcli.Schema(outputPath, cmd.Root().Writer)
				},
			},
			{
				Name:  "init",
				Usage: "Create a sample .regiontrace.yml in the current folder",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return rtcli.Init("", cmd.Root().Writer)
				},
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					rtcli.Version(cmd.Root().Writer)
					return nil
				},
			},
		},
	}
}
