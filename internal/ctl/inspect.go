package ctl

import (
	"fmt"
	"strings"

	"frameworks/almanac/internal/confidence"
	"frameworks/almanac/internal/intent"
	"frameworks/almanac/internal/routing"
	"frameworks/almanac/pkg/version"

	"github.com/spf13/cobra"
)

type routeReport struct {
	Category  intent.TaskCategory  `json:"category"`
	Escalated bool                 `json:"escalated"`
	Profile   routing.ModelProfile `json:"profile"`
	Fallback  routing.ModelProfile `json:"fallback"`
}

func (a *app) newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Show the task category and route for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := intent.Classify(strings.Join(args, " "))
			report, err := a.route(category, false)
			if err != nil {
				return err
			}
			return a.printRoute(cmd, report)
		},
	}
}

func (a *app) newRouteCmd() *cobra.Command {
	var escalate bool
	cmd := &cobra.Command{
		Use:   "route <category>",
		Short: "Show which model a task category is routed to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := intent.ParseCategory(args[0])
			if err != nil {
				return err
			}
			report, err := a.route(category, escalate)
			if err != nil {
				return err
			}
			return a.printRoute(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&escalate, "escalate", false, "show the escalation model instead of the primary")
	return cmd
}

// route loads the routing file the server would use, so a bad file fails
// here the same way it fails at startup.
func (a *app) route(category intent.TaskCategory, escalate bool) (routeReport, error) {
	path := a.v.GetString("routing_file")
	table, err := routing.LoadTable(path)
	if err != nil {
		return routeReport{}, err
	}
	if _, err := confidence.LoadThresholds(path); err != nil {
		return routeReport{}, err
	}
	profile, err := table.SelectModel(category, escalate)
	if err != nil {
		return routeReport{}, err
	}
	fallback, err := table.Fallback(category)
	if err != nil {
		return routeReport{}, err
	}
	return routeReport{Category: category, Escalated: escalate, Profile: profile, Fallback: fallback}, nil
}

func (a *app) printRoute(cmd *cobra.Command, r routeReport) error {
	if a.jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "category: %s\n", r.Category)
	label := "model"
	if r.Escalated {
		label = "escalation"
	}
	fmt.Fprintf(out, "%s: %s (%s/%s, %s tier)\n", label, r.Profile.Key, r.Profile.Provider, r.Profile.Model, r.Profile.Tier)
	fmt.Fprintf(out, "fallback: %s (%s/%s)\n", r.Fallback.Key, r.Fallback.Provider, r.Fallback.Model)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "almanacctl %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), " - git: %s\n", version.ShortCommit())
			fmt.Fprintf(cmd.OutOrStdout(), " - built: %s\n", info.BuildDate)
			return nil
		},
	}
}
