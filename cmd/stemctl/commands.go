package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/okian/stemai/internal/stemclient"
	"github.com/okian/stemai/pkg/logger"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	baseURL   string
	timeout   time.Duration
	logLevel  string
	barWidth  int
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "stemctl",
		Short:        "Separate songs into stems and inspect their energy distribution",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWith(cmd.ErrOrStderr(), flags.logFormat); err != nil {
				return err
			}
			return logger.SetLevelString(flags.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "url", stemclient.DefaultBaseURL, "base URL of the separation service")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", stemclient.DefaultTimeout, "per-request timeout")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().IntVar(&flags.barWidth, "width", stemclient.DefaultBarWidth, "chart bar width in characters")

	root.AddCommand(newSeparateCmd(flags), newAnalyzeCmd(flags))
	return root
}

func newSeparateCmd(flags *rootFlags) *cobra.Command {
	var (
		out  string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "separate <file>",
		Short: "Upload an mp3, wav or flac file and report its stem energy distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := stemclient.New(flags.baseURL,
				stemclient.WithTimeout(flags.timeout),
				stemclient.WithLogger(logger.Named("stemctl")),
			)

			job, err := client.Upload(ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if job.Duplicate {
				_, _ = fmt.Fprintf(w, "job %s (already separated)\n", job.ID)
			} else {
				_, _ = fmt.Fprintf(w, "job %s queued\n", job.ID)
			}
			if !wait && out == "" {
				return nil
			}

			job, err = client.Wait(ctx, job.ID)
			if err != nil {
				return err
			}
			if err := stemclient.RenderBars(w, job.Distribution, flags.barWidth); err != nil {
				return err
			}

			if out == "" {
				return nil
			}
			paths, err := client.DownloadStems(ctx, job, out)
			if err != nil {
				return err
			}
			for _, p := range paths {
				_, _ = fmt.Fprintln(w, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "download stems into this directory (implies --wait)")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the job to finish and print the distribution")
	return cmd
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var showEnergy bool
	cmd := &cobra.Command{
		Use:   "analyze <dir>",
		Short: "Compute the energy distribution of <label>.wav stems in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", args[0])
			}

			shares, energies, err := stemclient.AnalyzeDir(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := stemclient.RenderBars(w, shares, flags.barWidth); err != nil {
				return err
			}
			if showEnergy {
				labels := make([]string, 0, len(energies))
				for l := range energies {
					labels = append(labels, l)
				}
				sort.Strings(labels)
				for _, l := range labels {
					_, _ = fmt.Fprintf(w, "%s rms=%.6f\n", l, energies[l])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEnergy, "energy", false, "also print RMS energy per stem")
	return cmd
}
