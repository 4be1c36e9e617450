package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"speechset/internal/cookies"
	"speechset/internal/logging"
	"speechset/internal/services"
	"speechset/internal/ytdlp"
)

func newCookiesCommand(ctx *commandContext) *cobra.Command {
	cookiesCmd := &cobra.Command{
		Use:   "cookies",
		Short: "Credential utilities",
	}
	cookiesCmd.AddCommand(newCookiesCheckCommand(ctx))
	return cookiesCmd
}

func newCookiesCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Verify credentials against a video without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			creds, err := cookies.Resolve(cfg.Auth.CookiesFile, cfg.Auth.CookiesFromBrowser)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: os.Stderr,
			})
			if err != nil {
				return err
			}

			client := ytdlp.New(cfg.Tools.YtdlpBin, creds, logger)
			result, err := client.CheckAccess(cmd.Context(), args[0], cfg.Audio.FormatSelectors)
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.Is(err, services.ErrAuth) {
					fmt.Fprintln(out, "Credentials rejected: the video requires sign-in and the configured cookies did not grant access.")
				}
				return err
			}

			switch {
			case result.FormatsOK:
				fmt.Fprintf(out, "Access OK: %q is reachable; selector %q resolves audio.\n", result.Title, result.Selector)
			case result.ProbeOK:
				fmt.Fprintf(out, "Credentials OK but no configured format selector matched %q:\n", result.Title)
				for _, failure := range result.Failures {
					fmt.Fprintf(out, "  %s\n", failure)
				}
			}
			if !creds.Provided() {
				fmt.Fprintln(out, "Note: no cookies configured; the check ran unauthenticated.")
			}
			return nil
		},
	}
}
