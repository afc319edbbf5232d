// report.go implements the "compass report" command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/report"
	"github.com/berth-dev/compass/internal/tui"
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Summarize a session",
	Long: `Build a summary of the session from its snapshot and the event log,
write it to .compass/runs/<id>/report.md and print it.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.Get(args[0])
	if err != nil {
		return err
	}

	r, err := report.Generate(snap, a.logger, config.RunDir(a.root, snap.ID))
	if err != nil {
		return err
	}

	rendered, err := tui.RenderMarkdown(report.FormatReport(r), tui.TerminalWidth(100))
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Fprint(os.Stdout, rendered)
	return nil
}
