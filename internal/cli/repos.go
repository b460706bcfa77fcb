package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orgraph/pkg/github"
)

func (c *CLI) reposCommand() *cobra.Command {
	var (
		limit           int
		includeArchived bool
		includeForks    bool
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List the repositories a scan would visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			cfg := c.Config
			if fs.Changed("limit") {
				cfg.GitHub.RepoLimit = limit
			}
			if fs.Changed("include-archived") {
				cfg.GitHub.IncludeArchived = includeArchived
			}
			if fs.Changed("include-forks") {
				cfg.GitHub.IncludeForks = includeForks
			}

			client, err := c.newGitHubClient()
			if err != nil {
				return err
			}
			if err := c.verifyToken(cmd.Context(), client); err != nil {
				return err
			}
			sp := newSpinner(cmd.Context(), os.Stderr, "Listing repositories of "+cfg.GitHub.Org+"...")
			sp.Start()
			all, err := client.ListOrgRepos(cmd.Context(), cfg.GitHub.RepoLimit)
			sp.Stop()
			if err != nil {
				return err
			}
			repos := github.FilterRepos(all, cfg.GitHub.IncludeArchived, cfg.GitHub.IncludeForks)

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(github.Names(repos))
			}
			c.printRepos(repos, len(all))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&limit, "limit", 0, "list at most this many repositories (0 for all)")
	fs.BoolVar(&includeArchived, "include-archived", false, "include archived repositories")
	fs.BoolVar(&includeForks, "include-forks", false, "include forks")
	fs.BoolVar(&asJSON, "json", false, "print names as a JSON array")
	return cmd
}

func (c *CLI) printRepos(repos []github.Repo, total int) {
	p := c.printer()
	for _, r := range repos {
		var tags []string
		if r.Archived {
			tags = append(tags, "archived")
		}
		if r.Fork {
			tags = append(tags, "fork")
		}
		if r.Language != "" {
			tags = append(tags, r.Language)
		}
		p.keyValue(r.Name, StyleDim.Render(strings.Join(tags, ", ")))
	}
	p.success("%d of %d repositories selected", len(repos), total)
}
