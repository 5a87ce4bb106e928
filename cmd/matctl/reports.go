package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/internal/reports"
)

func (c *cli) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Read operational reports",
	}
	cmd.AddCommand(c.reportsOverdueCmd())
	return cmd
}

func (c *cli) reportsOverdueCmd() *cobra.Command {
	var (
		days  int
		owner string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List cycles on trial for longer than a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must be zero or positive")
			}
			var ownerID *uuid.UUID
			if owner != "" {
				id, err := parseUUIDArg("owner", owner)
				if err != nil {
					return err
				}
				ownerID = &id
			}
			return c.run(cmd, func(ctx context.Context, a *app) error {
				rows, err := a.Reports.Overdue(ctx, reports.OverdueFilter{
					ThresholdDays: days,
					OwnerID:       ownerID,
					Now:           time.Now().UTC(),
					Limit:         limit,
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(rows)
				}
				if len(rows) == 0 {
					fmt.Fprintf(c.out, "no cycles on trial longer than %d days\n", days)
					return nil
				}
				fmt.Fprintf(c.out, "%s %d cycles on trial longer than %d days\n", color.New(color.FgYellow).Sprint("OVERDUE"), len(rows), days)
				for _, row := range rows {
					fmt.Fprintf(c.out, "  %-14s %3d days  since %s  cycle %s\n",
						row.AssetCode, row.DaysOnTest, row.TestStartAt.Format(time.DateOnly), row.CycleID)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "trial length threshold in days")
	cmd.Flags().StringVar(&owner, "owner", "", "restrict to one asset owner")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows to print")
	return cmd
}
