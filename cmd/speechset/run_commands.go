package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"speechset/internal/config"
	"speechset/internal/logging"
	"speechset/internal/manifest"
	"speechset/internal/pipeline"
	"speechset/internal/preflight"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool
	var noSegments bool
	var autoLanguage string

	cmd := &cobra.Command{
		Use:   "process <input-file>",
		Short: "Download and segment the video references listed in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, overwrite, noSegments, autoLanguage)
			return runFlow(cmd, cfg, args[0], false)
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-fetch and re-cut even when artifacts exist")
	cmd.Flags().BoolVar(&noSegments, "no-segments", false, "Skip transcript-aligned segment cutting")
	cmd.Flags().StringVar(&autoLanguage, "auto-language", "", "Target caption language for the auto transcript track")
	return cmd
}

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool
	var noSegments bool
	var autoLanguage string
	var maxVideos int
	var sortBy string

	cmd := &cobra.Command{
		Use:   "channels <input-file>",
		Short: "Expand channel references and process every listed video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, overwrite, noSegments, autoLanguage)
			if cmd.Flags().Changed("max-videos") {
				cfg.Channels.MaxVideos = maxVideos
			}
			if cmd.Flags().Changed("sort") {
				cfg.Channels.SortBy = sortBy
			}
			return runFlow(cmd, cfg, args[0], true)
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-fetch and re-cut even when artifacts exist")
	cmd.Flags().BoolVar(&noSegments, "no-segments", false, "Skip transcript-aligned segment cutting")
	cmd.Flags().StringVar(&autoLanguage, "auto-language", "", "Target caption language for the auto transcript track")
	cmd.Flags().IntVar(&maxVideos, "max-videos", 0, "Cap on videos fetched per channel (0 means all)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Channel listing order: newest, oldest, or popular")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, overwrite, noSegments bool, autoLanguage string) {
	if overwrite {
		cfg.Overwrite = true
	}
	if noSegments {
		cfg.Segments.Enabled = false
	}
	if cmd.Flags().Changed("auto-language") {
		cfg.Transcripts.AutoLanguage = autoLanguage
	}
}

// runFlow is the shared command body: preflight, logger, driver, summary.
func runFlow(cmd *cobra.Command, cfg *config.Config, inputPath string, channelFlow bool) error {
	out := cmd.OutOrStdout()

	checks := preflight.RunAll(cfg)
	fmt.Fprintln(out, renderPreflight(out, checks))
	if err := preflight.Err(checks); err != nil {
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

	driver, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	var result *pipeline.RunResult
	if channelFlow {
		result, err = driver.ProcessChannels(cmd.Context(), inputPath)
	} else {
		result, err = driver.ProcessInput(cmd.Context(), inputPath)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderSummary(out, result.Summary, channelFlow))
	if code := result.ExitCode(); code != 0 {
		return fmt.Errorf("%d unit(s) failed; see %s", result.Failed,
			manifestFailuresPath(cfg, channelFlow))
	}
	return nil
}

func manifestFailuresPath(cfg *config.Config, channelFlow bool) string {
	name := "failures.jsonl"
	if channelFlow {
		name = "channel_failures.jsonl"
	}
	return cfg.ManifestsDir() + "/" + name
}

func renderPreflight(out io.Writer, checks []preflight.Result) string {
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		status := "OK"
		if !check.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{check.Name, status, check.Detail})
	}
	return renderTable(out, []string{"Check", "Status", "Detail"}, rows, nil)
}

func renderSummary(out io.Writer, summary manifest.Summary, channelFlow bool) string {
	rows := [][]string{
		{"Run ID", summary.RunID},
		{"Units", strconv.Itoa(summary.TotalUnits)},
		{"Success", strconv.Itoa(summary.Success)},
		{"Partial", strconv.Itoa(summary.Partial)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Segments", strconv.Itoa(summary.TotalSegments)},
		{"Wall clock", summary.WallClock.Round(time.Millisecond).String()},
	}
	if channelFlow {
		rows = append(rows,
			[]string{"Channels", strconv.Itoa(summary.ChannelsTotal)},
			[]string{"Channels failed", strconv.Itoa(summary.ChannelsFailed)},
		)
	}
	return renderTable(out, []string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
