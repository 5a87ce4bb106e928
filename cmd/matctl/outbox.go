package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
)

func (c *cli) outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the event outbox",
	}
	cmd.AddCommand(c.deadLettersCmd())
	return cmd
}

func (c *cli) deadLettersCmd() *cobra.Command {
	var (
		limit     int
		reason    string
		eventType string
	)

	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List events the publisher gave up on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := outbox.DLQFilter{Limit: limit}
			if reason != "" {
				parsed, err := enums.ParseOutboxDLQErrorReason(reason)
				if err != nil {
					return err
				}
				filter.Reason = parsed
			}
			if eventType != "" {
				parsed, err := enums.ParseOutboxEventType(eventType)
				if err != nil {
					return err
				}
				filter.EventType = parsed
			}
			return c.run(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.DeadLetters.List(ctx, filter)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(c.out, "no dead letters")
					return nil
				}
				for _, entry := range entries {
					fmt.Fprintf(c.out, "%s %s %s/%s  %s  attempts=%d\n",
						color.New(color.FgRed).Sprint(entry.ErrorReason),
						entry.FailedAt.Format(time.RFC3339),
						entry.AggregateType, entry.AggregateID,
						entry.EventType, entry.AttemptCount)
					if entry.ErrorMessage != nil {
						fmt.Fprintf(c.out, "    %s\n", *entry.ErrorMessage)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	cmd.Flags().StringVar(&reason, "reason", "", "only list max_attempts or non_retryable entries")
	cmd.Flags().StringVar(&eventType, "event-type", "", "only list entries of this event type")
	return cmd
}
