// ABOUTME: Entry point for spark-gateway, the bridge between a watch app and AI chat APIs
// ABOUTME: Defines the command tree, logger setup, and the serve command

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/2389/spark-gateway/internal/config"
	"github.com/2389/spark-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _                      _
 ___ _ __   __ _ _ __| | __      __ _  __ _| |_ _____      ____ _ _   _
/ __| '_ \ / _' | '__| |/ /____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
\__ \ |_) | (_| | |  |   <_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|___/ .__/ \__,_|_|  |_|\_\     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
    |_|                         |___/                             |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "spark-gateway",
		Usage:   "relay watch chat requests to Claude, ChatGPT, OpenRouter, Grok, or a custom endpoint",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to the gateway config file", Sources: cli.EnvVars("SPARK_CONFIG")},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the gateway server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "env-file", Usage: "load environment variables from a dotenv file before reading the config"},
				},
				Action: runServe,
			},
			{
				Name:   "init",
				Usage:  "create a new config file interactively",
				Action: runInit,
			},
			{
				Name:   "health",
				Usage:  "check gateway liveness",
				Flags:  clientFlags(),
				Action: runHealth,
			},
			{
				Name:   "status",
				Usage:  "show the readiness status sent to the watch",
				Flags:  clientFlags(),
				Action: runStatus,
			},
			{
				Name:      "chat",
				Usage:     "talk to the gateway the way the watch does",
				ArgsUsage: "[message]",
				Flags:     clientFlags(),
				Action:    runChat,
			},
			{
				Name:  "settings",
				Usage: "read or replace the provider settings",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print the persisted settings",
						Flags: append(clientFlags(),
							&cli.BoolFlag{Name: "reveal", Usage: "print the API key in full"},
						),
						Action: runSettingsShow,
					},
					{
						Name:      "apply",
						Usage:     "replace the settings; keys not given are cleared unless --merge is set",
						ArgsUsage: "key=value ...",
						Flags: append(clientFlags(),
							&cli.BoolFlag{Name: "merge", Usage: "keep persisted keys that are not given"},
						),
						Action: runSettingsApply,
					},
				},
			},
			{
				Name:  "exchanges",
				Usage: "list recent chat exchanges",
				Flags: append(clientFlags(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of exchanges to list"},
				),
				Action: runExchanges,
			},
			{
				Name:  "stats",
				Usage: "show exchange counts per outcome",
				Flags: append(clientFlags(),
					&cli.StringFlag{Name: "provider", Usage: "only count exchanges for this provider"},
					&cli.StringFlag{Name: "since", Usage: "only count exchanges at or after this RFC 3339 time"},
					&cli.StringFlag{Name: "until", Usage: "only count exchanges before this RFC 3339 time"},
				),
				Action: runStats,
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for the /api routes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "watch", Usage: "token subject"},
					&cli.DurationFlag{Name: "expires", Value: 30 * 24 * time.Hour, Usage: "token lifetime, 0 for no expiry"},
				},
				Action: runToken,
			},
		},
	}
}

// configPath returns --config when given, else the default location.
func configPath(cmd *cli.Command) string {
	if p := cmd.String("config"); p != "" {
		return p
	}
	return config.DefaultPath()
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	if envFile := cmd.String("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	path := configPath(cmd)

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		} else if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Timeout:   %s\n", cfg.Gateway.RequestTimeout)
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! /api routes are unauthenticated (auth.jwt_secret not set)")
	}
	fmt.Println()

	logger.Info("starting spark-gateway",
		"config", path,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
