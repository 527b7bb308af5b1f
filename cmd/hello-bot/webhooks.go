package main

import (
	"fmt"

	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newWebhooksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "webhooks",
		Aliases: []string{"webhook", "wh"},
		Short:   "Manage Spark webhooks",
	}

	cmd.AddCommand(newWebhooksListCommand(a))
	cmd.AddCommand(newWebhooksCreateCommand(a))
	cmd.AddCommand(newWebhooksDeleteCommand(a))

	return cmd
}

func newWebhooksListCommand(a *app) *cobra.Command {
	var max int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}

			webhooks, err := api.Webhooks.List(max)
			if err != nil {
				return err
			}

			all, err := webhooks.Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list webhooks: %w", err)
			}

			return outputWebhooks(cmd, a.config.Output, all)
		},
	}

	cmd.Flags().IntVar(&max, "max", 0, "page size hint (0 = service default)")

	return cmd
}

func outputWebhooks(cmd *cobra.Command, format string, webhooks []spark.Webhook) error {
	out := cmd.OutOrStdout()

	if webhooks == nil {
		webhooks = []spark.Webhook{}
	}
	if done, err := writeStructured(out, format, webhooks); done {
		return err
	}

	if len(webhooks) == 0 {
		_, _ = fmt.Fprintln(out, "No webhooks found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Name", "Target URL", "Resource", "Event", "Status")

	for _, w := range webhooks {
		_ = table.Append([]string{w.ID, w.Name, w.TargetURL, w.Resource, w.Event, w.Status})
	}

	return table.Render()
}

func newWebhooksCreateCommand(a *app) *cobra.Command {
	var resource, event, filter string

	cmd := &cobra.Command{
		Use:   "create NAME TARGET_URL",
		Short: "Register a webhook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}

			webhook, err := api.Webhooks.Create(cmd.Context(), args[0], args[1], resource, event, filter)
			if err != nil {
				return err
			}

			return outputWebhooks(cmd, a.config.Output, []spark.Webhook{webhook})
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "messages", "resource to watch")
	cmd.Flags().StringVar(&event, "event", "created", "event to watch")
	cmd.Flags().StringVar(&filter, "filter", "", "optional event filter, e.g. roomId=...")

	return cmd
}

func newWebhooksDeleteCommand(a *app) *cobra.Command {
	var byName bool

	cmd := &cobra.Command{
		Use:   "delete WEBHOOK_ID",
		Short: "Delete a webhook by id (or by name with --name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}

			id := args[0]
			if byName {
				webhook, found, err := api.Webhooks.FindByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no webhook named %q", args[0])
				}
				id = webhook.ID
			}

			if err := api.Webhooks.Delete(cmd.Context(), id); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted webhook %s\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byName, "name", false, "treat the argument as a webhook name")

	return cmd
}
