package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/internal/pickups"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
)

type batchOp func(ctx context.Context, o pickups.Orchestrator, batchID, actorID uuid.UUID) (*pickups.BatchResult, error)

func (c *cli) pickupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pickups",
		Short: "Drive pickup batches",
	}
	cmd.AddCommand(c.batchCmd("complete", "Complete a batch: close every cycle and free its asset",
		func(ctx context.Context, o pickups.Orchestrator, batchID, actorID uuid.UUID) (*pickups.BatchResult, error) {
			return o.CompleteBatch(ctx, batchID, actorID)
		}))
	cmd.AddCommand(c.batchCmd("cancel", "Cancel a batch: revert its cycles to dirty and delete it",
		func(ctx context.Context, o pickups.Orchestrator, batchID, actorID uuid.UUID) (*pickups.BatchResult, error) {
			return o.CancelBatch(ctx, batchID, actorID)
		}))
	return cmd
}

func (c *cli) batchCmd(use, short string, op batchOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <batch-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := c.actorID()
			if err != nil {
				return err
			}
			batchID, err := parseUUIDArg("batch id", args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app) error {
				result, err := op(ctx, a.Pickups, batchID, actorID)
				if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodePartialFailure) {
					return err
				}
				if printErr := c.printBatchResult(use, batchID, result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func (c *cli) printBatchResult(op string, batchID uuid.UUID, result *pickups.BatchResult) error {
	if result == nil {
		return nil
	}
	if c.asJSON {
		return c.printJSON(result)
	}

	header := color.New(color.FgGreen).Sprint("OK")
	if len(result.Failed) > 0 {
		header = color.New(color.FgYellow).Sprint("PARTIAL")
	}
	fmt.Fprintf(c.out, "%s %s batch %s\n", header, op, batchID)
	fmt.Fprintf(c.out, "  transitioned: %d\n", len(result.Transitioned))
	if len(result.Skipped) > 0 {
		fmt.Fprintf(c.out, "  skipped:      %d\n", len(result.Skipped))
	}
	if result.Deleted {
		fmt.Fprintln(c.out, "  batch deleted")
	}
	for _, failure := range result.Failed {
		fmt.Fprintf(c.out, "  %s %s: %s (%s)\n", color.New(color.FgRed).Sprint("FAILED"), failure.CycleID, failure.Message, failure.Code)
	}
	return nil
}
