package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"SiteAuditor/internal/app"
	"SiteAuditor/internal/config"
	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/logging"
)

const shutdownTimeout = 5 * time.Second

type cli struct {
	configPath string
	envErr     error
}

func newRootCmd(envErr error) *cobra.Command {
	c := &cli{envErr: envErr}

	root := &cobra.Command{
		Use:           "siteauditor",
		Short:         "Analyze websites, prioritize findings and notify their owners",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config (default $SITE_AUDITOR_CONFIG)")

	root.AddCommand(
		c.analyzeCmd(),
		c.sendEmailCmd(),
		c.historyCmd(),
		c.showCmd(),
	)
	return root
}

func (c *cli) analyzeCmd() *cobra.Command {
	var url, email string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Submit a url for analysis and narrate the result",
		Long: `Submit a url for analysis and narrate the result.

HIGH priority results are emailed to the contact automatically.
A url that was analyzed before is rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				rec, err := a.Analyze(ctx, url, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nrecord %s: country=%s priority=%s status=%s\n",
					rec.ID, rec.Country, rec.Priority, rec.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "site to analyze")
	cmd.Flags().StringVar(&email, "email", "", "contact notified about the findings")
	return cmd
}

func (c *cli) sendEmailCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "send-email",
		Short: "Send the findings email for a stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				rec, err := a.SendEmail(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "email sent to %s for %s\n", rec.Email, rec.URL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List analyzed sites grouped by country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.Application) error {
				data, countries := a.History()
				return printHistory(cmd.OutOrStdout(), data, countries)
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored record and its analysis log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.Application) error {
				rec, lines, err := a.Show(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "id:       %s\nurl:      %s\nemail:    %s\ncountry:  %s\ndate:     %s\npriority: %s\nstatus:   %s\n\n",
					rec.ID, rec.URL, rec.Email, rec.Country, rec.CreatedAt.String(), rec.Priority, rec.Status)
				for _, line := range lines {
					fmt.Fprintln(out, "> "+line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// withApp loads config, builds the application around fn and tears it down afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(context.Context, *app.Application) error) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if c.envErr != nil && !errors.Is(c.envErr, fs.ErrNotExist) {
		logger.Warn("cannot load .env", "error", c.envErr)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger, app.Options{Narration: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	return fn(ctx, a)
}

func printHistory(w io.Writer, data domain.HistoryByCountry, countries []string) error {
	if len(countries) == 0 {
		_, err := fmt.Fprintln(w, "no sites analyzed yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, country := range countries {
		fmt.Fprintf(tw, "%s (%d)\n", country, len(data[country]))
		for _, rec := range data[country] {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.Priority, rec.Status, rec.URL, rec.CreatedAt.String())
		}
	}
	return tw.Flush()
}
