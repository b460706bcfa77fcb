package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orgraph/pkg/checkpoint"
)

func (c *CLI) checkpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset scan progress",
	}
	cmd.AddCommand(c.checkpointShowCommand())
	cmd.AddCommand(c.checkpointClearCommand())
	return cmd
}

func (c *CLI) checkpointShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [repo]",
		Short: "List checkpointed repositories, or the dependencies of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				deps, ok := records[args[0]]
				if !ok {
					return fmt.Errorf("%s is not in the checkpoint", args[0])
				}
				records = map[string][]string{args[0]: deps}
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			c.printCheckpoint(records, len(args) == 1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON")
	return cmd
}

func (c *CLI) printCheckpoint(records map[string][]string, withDeps bool) {
	p := c.printer()
	if len(records) == 0 {
		p.info("Checkpoint is empty")
		return
	}
	empty := 0
	for _, repo := range checkpoint.Repos(records) {
		deps := records[repo]
		if len(deps) == 0 {
			empty++
		}
		p.keyValue(repo, fmt.Sprintf("%d dependencies", len(deps)))
		if withDeps {
			for _, d := range deps {
				p.detail("%s", d)
			}
		}
	}
	p.success("%d repositories checkpointed (%d without dependencies)", len(records), empty)
}

func (c *CLI) checkpointClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard all scan progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Load(ctx)
			if err != nil {
				loggerFromContext(ctx).Warn("checkpoint unreadable, clearing anyway", "err", err)
			}
			if err := store.Clear(ctx); err != nil {
				return err
			}
			c.printer().success("Cleared %d checkpointed repositories", len(records))
			return nil
		},
	}
}
