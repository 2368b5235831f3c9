package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/triagebot/internal/config"
	"github.com/nextlevelbuilder/triagebot/internal/store/pg"
	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

// sessionsCmd lists the worker identities on disk and how much group quota
// each has left. Operational aid for capacity planning.
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List worker identities and their remaining group quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			dbPool, err := pg.Connect(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer dbPool.Close()
			repo := pg.New(dbPool)

			auth, err := workers.ParseProxyAuth(cfg.ProxyAuth)
			if err != nil {
				return err
			}
			pool, err := workers.NewPool(cfg.SessionsDir, auth, repo)
			if err != nil {
				return err
			}

			names := pool.Names()
			if len(names) == 0 {
				fmt.Println("no worker identities found in", cfg.SessionsDir)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTITY\tGROUPS\tQUOTA LEFT")
			for _, name := range names {
				count, err := repo.CountGroupsCreatedBy(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%d\n", name, count, workers.GroupLimit-count)
			}
			return w.Flush()
		},
	}
}
