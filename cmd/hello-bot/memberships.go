package main

import (
	"fmt"
	"strconv"

	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newMembershipsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memberships",
		Short: "Inspect team memberships",
	}

	cmd.AddCommand(newMembershipsListCommand(a))

	return cmd
}

func newMembershipsListCommand(a *app) *cobra.Command {
	var (
		teamID string
		max    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the memberships of a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}

			members, err := api.TeamMemberships.List(teamID, max, nil)
			if err != nil {
				return err
			}

			all, err := members.Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list team memberships: %w", err)
			}

			return outputTeamMemberships(cmd, a.config.Output, all)
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "team id (required)")
	cmd.Flags().IntVar(&max, "max", 0, "page size hint (0 = service default)")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func outputTeamMemberships(cmd *cobra.Command, format string, members []spark.TeamMembership) error {
	out := cmd.OutOrStdout()

	if members == nil {
		members = []spark.TeamMembership{}
	}
	if done, err := writeStructured(out, format, members); done {
		return err
	}

	if len(members) == 0 {
		_, _ = fmt.Fprintln(out, "No team memberships found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Person", "Email", "Moderator")

	for _, m := range members {
		_ = table.Append([]string{m.ID, m.PersonDisplayName, m.PersonEmail, strconv.FormatBool(m.IsModerator)})
	}

	return table.Render()
}
