// clean.go implements the "compass clean" command for pruning old sessions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/cleanup"
	"github.com/berth-dev/compass/internal/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old sessions and run directories",
	Long: `Remove finished sessions and their directories under .compass/runs/.

By default, removes completed and cancelled sessions older than the
configured max_age_days (default 30). Use --keep to keep only the N most
recent run directories instead. Use --dry-run to preview what would be
removed.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

var (
	keepFlag   int
	dryRunFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the last N run directories (0 = use age-based cleanup)")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runsDir := config.RunsDir(a.root)
	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}

	if keepFlag > 0 {
		pruned, err := cleanup.PruneKeepRecent(runsDir, keepFlag, dryRunFlag)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		if len(pruned) == 0 {
			fmt.Println("No runs to clean up.")
			return nil
		}
		for _, name := range pruned {
			fmt.Printf("  %s %s\n", verb, name)
		}
		fmt.Printf("%s %d run(s).\n", verb, len(pruned))
		return nil
	}

	maxAge := a.cfg.Cleanup.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}
	res, err := cleanup.PruneSessions(a.store, runsDir, maxAge, dryRunFlag)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	if len(res.Sessions) == 0 {
		fmt.Println("No sessions to clean up.")
		return nil
	}

	for _, id := range res.Sessions {
		fmt.Printf("  %s %s\n", verb, id)
	}
	fmt.Printf("%s %d session(s) and %d run director(ies).\n", verb, len(res.Sessions), len(res.RunDirs))
	return nil
}
