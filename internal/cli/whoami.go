package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the GitHub account the configured token authenticates as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.Config.GitHub.Token == "" {
				return errors.New("no GitHub token configured (set github.token or GITHUB_TOKEN)")
			}
			client, err := c.newGitHubClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			user, err := client.FetchUser(ctx)
			if err != nil {
				return err
			}

			p := c.printer()
			p.success("GitHub token is valid")
			p.keyValue("Username", "@"+user.Login)
			if user.Name != "" {
				p.keyValue("Name", user.Name)
			}
			p.keyValue("Organization", client.Org())
			return nil
		},
	}
}
