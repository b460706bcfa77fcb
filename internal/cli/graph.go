package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orgraph/pkg/graph"
)

func (c *CLI) graphCommand() *cobra.Command {
	var flags outputFlags

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Rebuild the graph from the checkpoint without contacting GitHub",
		Long: `Rebuild the dependency graph from the repositories recorded in the checkpoint.

Use this to change the internal prefix or the output formats without
crawling the organization again.`,
		Example: `  orgraph graph --prefix @acme/ --svg graph.svg`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd.Flags(), c.Config)
			return c.runGraph(cmd.Context())
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func (c *CLI) runGraph(ctx context.Context) error {
	cs, err := c.newRunner(ctx, false)
	if err != nil {
		return err
	}
	defer cs.close()

	prog := newProgress(c.Logger)
	res, err := cs.runner.Rebuild(ctx, c.pipelineOptions())
	if err != nil {
		return err
	}
	prog.done("Rebuilt graph from checkpoint")
	c.printRunResult(res, false)
	return nil
}

func (c *CLI) statsCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats [graph.json]",
		Short: "Summarize a graph document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.Config.Output.Path
			if len(args) == 1 {
				path = args[0]
			}
			g, err := graph.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					c.printer().nextStep("No graph yet; create one with", "orgraph scan")
				}
				return err
			}
			p := c.printer()
			p.info("Graph %s", StyleHighlight.Render(path))
			p.summary(graph.Stats(g, top))
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of most depended-on packages to list (0 for all)")
	return cmd
}
