// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mailforge/mailforge/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "mailforge",
		Usage:   "Mail server provisioning factory",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the API and metrics servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "provision",
				Usage: "Provision mail hosts with packages, accounts and checks",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "host",
						Aliases:  []string{"H"},
						Required: true,
						Usage:    "Target host (repeat for multiple hosts)",
					},
					&cli.StringSliceFlag{
						Name:    "package",
						Aliases: []string{"p"},
						Usage:   "Package to install (repeat for multiple packages)",
					},
					&cli.StringSliceFlag{
						Name:    "service",
						Aliases: []string{"s"},
						Usage:   "Systemd unit to enable and start",
					},
					&cli.StringFlag{
						Name:    "mail-account",
						Aliases: []string{"m"},
						Usage:   "Mail account address to create (password comes from the credential sources)",
					},
					&cli.StringFlag{
						Name:    "cert-path",
						Aliases: []string{"c"},
						Usage:   "TLS certificate to check for expiry after setup",
					},
					&cli.BoolFlag{
						Name:  "skip-selinux",
						Value: false,
						Usage: "Skip the SELinux enforcement check",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunProvision(ctx, commands.ProvisionOptions{
						Hosts:       cmd.StringSlice("host"),
						Packages:    cmd.StringSlice("package"),
						Services:    cmd.StringSlice("service"),
						MailAccount: cmd.String("mail-account"),
						CertPath:    cmd.String("cert-path"),
						SkipSELinux: cmd.Bool("skip-selinux"),
						Format:      cmd.String("format"),
					})
				},
			},
			{
				Name:  "encrypt-value",
				Usage: "Encrypt a configuration value under the master passphrase",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "value",
						Aliases: []string{"v"},
						Usage:   "Value to encrypt (omit to read from stdin)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunEncryptValue(cmd.String("value"), cmd.String("format"), os.Stdin, os.Stdout)
				},
			},
			{
				Name:  "clean-audit-logs",
				Usage: "Delete audit log files older than specified days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "days",
						Aliases:  []string{"d"},
						Required: true,
						Usage:    "Delete audit log files older than this many days",
					},
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Value:   false,
						Usage:   "Show how many files would be deleted without deleting",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCleanAuditLogs(
						ctx,
						cmd.Int("days"),
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
