package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"libraryapi/internal/app"
	"libraryapi/internal/config"
	"libraryapi/internal/logger"
	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/seed"
	"libraryapi/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// opener builds the wired services for a subcommand. Tests swap it out.
var opener = openApp

func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Env)

	repos, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app.New(cfg, repos, log), repos.Close, nil
}

func rootCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Populate the library store with demo data, an admin or Open Library books",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(demoCommand(ctx), adminCommand(ctx), openLibraryCommand(ctx))
	return cmd
}

func demoCommand(ctx context.Context) *cobra.Command {
	var opts seed.Options

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Insert sample books, members and events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := opener(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := a.Seeder.Run(ctx, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete all transactions, events, users and books first")
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "", "also create an admin with this email")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "password for --admin-email")
	return cmd
}

func adminCommand(ctx context.Context) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = seed.DefaultAdminEmail
			}
			if password == "" {
				var err error
				if password, err = promptPassword(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			if err := crypto.ValidatePasswordStrength(password); err != nil {
				return err
			}

			a, closeFn, err := opener(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := a.Seeder.CreateAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email (default "+seed.DefaultAdminEmail+")")
	cmd.Flags().StringVar(&password, "password", "", "admin password; prompted for when empty")
	return cmd
}

func openLibraryCommand(ctx context.Context) *cobra.Command {
	var (
		subject string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "openlibrary",
		Short: "Import books for a subject from the Open Library API",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject = strings.TrimSpace(subject)
			if subject == "" {
				return errors.New("--subject is required")
			}

			a, closeFn, err := opener(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := a.Importer.Run(ctx, subject, limit)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Open Library subject, e.g. science_fiction")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of books to import")
	return cmd
}

func promptPassword(w io.Writer) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(w, "Admin password: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

