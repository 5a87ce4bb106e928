package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

func (c *cli) assetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage the asset code ledger",
	}
	cmd.AddCommand(c.assetsAllocateCmd())
	return cmd
}

func (c *cli) assetsAllocateCmd() *cobra.Command {
	var (
		owner   string
		prefix  string
		count   int
		pending bool
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Issue new unique asset codes for an owner",
		Example: `  matctl assets allocate --owner 2f1c... --prefix MAT --count 25
  matctl assets allocate --owner 2f1c... --prefix MAT --count 10 --pending`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := c.actorID()
			if err != nil {
				return err
			}
			ownerID, err := parseUUIDArg("owner", owner)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app) error {
				issued, err := a.Assets.Allocate(ctx, assets.AllocateInput{
					OwnerID: ownerID,
					Prefix:  prefix,
					Count:   count,
					Pending: pending,
					ActorID: actorID,
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(issued)
				}
				fmt.Fprintf(c.out, "%s %d codes for owner %s\n", color.New(color.FgGreen).Sprint("ALLOCATED"), len(issued), ownerID)
				for _, asset := range issued {
					fmt.Fprintf(c.out, "  %s  %s\n", asset.Code, statusLabel(string(asset.Status)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id the codes belong to")
	cmd.Flags().StringVar(&prefix, "prefix", "", "code prefix (letters, up to 10)")
	cmd.Flags().IntVar(&count, "count", 1, "number of codes to issue")
	cmd.Flags().BoolVar(&pending, "pending", false, "issue codes ahead of the physical items")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}

func statusLabel(status string) string {
	switch status {
	case string(enums.AssetStatusAvailable), string(enums.CycleStatusClean), string(enums.PickupBatchStatusCompleted):
		return color.New(color.FgGreen).Sprint(status)
	case string(enums.AssetStatusPending), string(enums.CycleStatusDirty), string(enums.CycleStatusWaitingDriver):
		return color.New(color.FgYellow).Sprint(status)
	case string(enums.CycleStatusOnTest), string(enums.PickupBatchStatusInProgress):
		return color.New(color.FgCyan).Sprint(status)
	default:
		return status
	}
}
