package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/ghweekly/pkg/histogram"
	"github.com/codeGROOVE-dev/ghweekly/pkg/report"
)

const reportTimeout = 10 * time.Minute

func newReportCmd(g *globals) *cobra.Command {
	var (
		user    string
		days    int
		noChart bool
	)
	cmd := &cobra.Command{
		Use:   "report <owner/repo>",
		Short: "Build a weekly report for a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, ok := report.SplitRepo(args[0])
			if !ok {
				return errors.Wrapf(report.ErrInvalidRepo, "%q", args[0])
			}

			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Days
			}
			logger := g.logger(slog.LevelError)

			ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
			defer cancel()

			r, err := reporter(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Error("failed to close reporter", "error", err)
				}
			}()

			rep, err := r.Report(ctx, report.Request{Owner: owner, Repo: repo, User: user, Days: days})
			if err != nil {
				logger.Error("report failed", "error", err)
				fmt.Fprintln(cmd.ErrOrStderr(), report.UserMessage(err))
				return err
			}

			printReport(cmd.OutOrStdout(), rep)
			if !noChart && len(rep.Activity) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprint(cmd.OutOrStdout(), histogram.Generate(chartRows(rep.Activity), 40))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Focus the report on one GitHub login")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Days of activity to cover (default from config, 7)")
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "Skip the contributor activity chart")
	return cmd
}

func newAboutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "about <owner/repo>",
		Short: "Describe a repository from its GitHub page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, ok := report.SplitRepo(args[0])
			if !ok {
				return errors.Wrapf(report.ErrInvalidRepo, "%q", args[0])
			}
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			logger := g.logger(slog.LevelError)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			r, err := reporter(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Error("failed to close reporter", "error", err)
				}
			}()

			text, err := r.About(ctx, owner, repo)
			if err != nil {
				logger.Error("about failed", "error", err)
				fmt.Fprintln(cmd.ErrOrStderr(), report.UserMessage(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	urlColor     = color.New(color.FgHiBlack)
	newColor     = color.New(color.FgGreen)
)

// printReport writes sections with the first line of each highlighted.
func printReport(w io.Writer, rep *report.Report) {
	for _, section := range rep.Sections {
		head, rest, _ := strings.Cut(section, "\n")
		switch {
		case strings.HasPrefix(head, "first-time contributors:"):
			fmt.Fprintln(w, newColor.Sprint(head))
		case strings.HasPrefix(head, "found "), strings.HasSuffix(head, "referenced in analysis:"):
			fmt.Fprintln(w, headingColor.Sprint(head))
			if strings.TrimSpace(rest) != "" {
				fmt.Fprintln(w, urlColor.Sprint(rest))
			}
			continue
		default:
			fmt.Fprintln(w, head)
		}
		if rest != "" {
			fmt.Fprintln(w, rest)
		}
	}
}

func chartRows(activity []report.Activity) []histogram.Row {
	rows := make([]histogram.Row, len(activity))
	for i, a := range activity {
		rows[i] = histogram.Row{Name: a.Login, Commits: a.Commits, Issues: a.Issues, Discussions: a.Discussions}
	}
	return rows
}
