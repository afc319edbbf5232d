// run.go implements the "compass run" and "compass resume" commands, which
// drive a session through interview -> plan -> confirm -> execute.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/cleanup"
	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/report"
	"github.com/berth-dev/compass/internal/server"
	"github.com/berth-dev/compass/internal/tui"
	"github.com/berth-dev/compass/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Plan and execute a request interactively",
	Long: `Start a planning session for the request and walk it through the whole
workflow: answer the clarifying questions, review the drafted plan, then
confirm it to start execution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue an unfinished session",
	Long: `Pick up a session where it stopped: unanswered questions are asked,
a missing plan is drafted, and an interrupted execution continues from its
checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var (
	runTypeFlag          string
	runSkipInterviewFlag bool
	runYesFlag           bool
)

func init() {
	runCmd.Flags().StringVar(&runTypeFlag, "type", "", "Project type (default: project.default_type)")
	runCmd.Flags().BoolVar(&runSkipInterviewFlag, "skip-interview", false, "Plan straight from the request")
	runCmd.Flags().BoolVarP(&runYesFlag, "yes", "y", false, "Confirm the drafted plan without asking")
	resumeCmd.Flags().BoolVarP(&runYesFlag, "yes", "y", false, "Confirm the drafted plan without asking")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	autoPrune(a)

	prompt := strings.Join(args, " ")
	projectType := runTypeFlag
	if projectType == "" {
		projectType = a.cfg.Project.DefaultType
	}

	ctx := cmd.Context()
	stopFollow := followEvents(ctx, a)
	defer stopFollow()

	fmt.Println("Analyzing request...")
	snap, err := a.ctrl.Start(ctx, prompt, projectType, controller.StartOptions{
		SkipInterview: runSkipInterviewFlag || a.cfg.Interview.Skip,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Session %s\n", snap.ID)

	return drive(ctx, a, snap.ID, bufio.NewReader(os.Stdin), os.Stdout, runYesFlag)
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	stopFollow := followEvents(ctx, a)
	defer stopFollow()

	return drive(ctx, a, args[0], bufio.NewReader(os.Stdin), os.Stdout, runYesFlag)
}

// drive advances the session one state at a time until it ends or needs
// the user to come back later.
func drive(ctx context.Context, a *app, id string, in *bufio.Reader, out io.Writer, autoConfirm bool) error {
	for {
		snap, err := a.ctrl.Get(id)
		if err != nil {
			return err
		}

		switch snap.State {
		case planning.StateInterviewing:
			err := tui.RunInterview(in, out, snap.Interview.Questions, responder{ctrl: a.ctrl, id: id})
			if errors.Is(err, tui.ErrInterviewAborted) {
				fmt.Fprintf(out, "Interview paused. Continue with: compass resume %s\n", id)
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := a.ctrl.CompleteInterview(id); err != nil {
				if errors.Is(err, planning.ErrStateTransition) {
					fmt.Fprintf(out, "%v\nAnswer with: compass answer %s <value>, then: compass resume %s\n", err, id, id)
					return nil
				}
				return err
			}

		case planning.StatePlanning:
			fmt.Fprintln(out, "Drafting plan...")
			if _, err := a.ctrl.GeneratePlan(ctx, id); err != nil {
				return err
			}

		case planning.StateConfirming:
			if err := printPlan(out, *snap.Plan); err != nil {
				return err
			}
			if autoConfirm {
				if _, err := a.ctrl.Confirm(id); err != nil {
					return err
				}
				continue
			}
			done, err := askConfirmation(a, id, in, out)
			if err != nil || done {
				return err
			}

		case planning.StateExecuting:
			if err := executeSession(ctx, a, id, *snap.Plan, out); err != nil {
				return err
			}

		case planning.StateCompleted:
			fmt.Fprintln(out, tui.BadgeDone+" Session completed.")
			return nil

		case planning.StateCancelled:
			fmt.Fprintln(out, tui.BadgeCancelled+" Session cancelled.")
			return nil

		default:
			return fmt.Errorf("session %s is in unexpected state %s", id, snap.State)
		}
	}
}

// askConfirmation asks the user to confirm, modify or cancel the plan.
// done is true when the session should not be driven further.
func askConfirmation(a *app, id string, in *bufio.Reader, out io.Writer) (done bool, err error) {
	for {
		fmt.Fprint(out, "\nProceed? [y]es / [m]odify / [c]ancel: ")
		line, readErr := in.ReadString('\n')
		choice := strings.ToLower(strings.TrimSpace(line))

		switch choice {
		case "y", "yes":
			_, err := a.ctrl.Confirm(id)
			return false, err

		case "m", "modify":
			fmt.Fprint(out, "What should change? ")
			feedback, _ := in.ReadString('\n')
			_, err := a.ctrl.Modify(id, feedback)
			return false, err

		case "c", "cancel":
			_, err := a.ctrl.Cancel(id)
			if err == nil {
				fmt.Fprintln(out, tui.BadgeCancelled+" Plan cancelled.")
			}
			return true, err
		}

		if readErr != nil {
			fmt.Fprintf(out, "\nPlan is waiting for confirmation. Continue with: compass confirm %s\n", id)
			return true, nil
		}
	}
}

// executeSession runs the plan with a progress display. While it runs, an
// in-process server lets each task's Claude process reach the session
// through the MCP bridge.
func executeSession(ctx context.Context, a *app, id string, p planning.Plan, out io.Writer) error {
	stop, err := startBridge(a, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: MCP bridge unavailable: %v\n", err)
	} else {
		defer stop()
	}

	display := ui.NewProgressDisplay(p.Title)
	_, err = a.ctrl.Execute(ctx, id, display.Update)
	display.Finish(err)
	if err != nil {
		return fmt.Errorf("%w (continue with: compass resume %s)", err, id)
	}
	runDir := config.RunDir(a.root, id)
	fmt.Fprintf(out, "Results: %s\n", filepath.Join(runDir, "tasks"))

	snap, err := a.ctrl.Get(id)
	if err != nil {
		return err
	}
	if _, err := report.Generate(snap, a.logger, runDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "Report: %s\n", filepath.Join(runDir, "report.md"))
	return nil
}

// startBridge serves the controller on a random local port and points the
// runner at an MCP config for it.
func startBridge(a *app, id string) (func(), error) {
	srv := server.New(a.ctrl, nil)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		return nil, err
	}
	go func() { _ = srv.Start() }()

	path := filepath.Join(config.RunDir(a.root, id), "mcp-config.json")
	if err := server.WriteMCPConfig(path, srv.Addr(), id); err != nil {
		_ = srv.Stop(context.Background())
		return nil, err
	}
	a.runner.UseMCPConfig(path)

	return func() {
		a.runner.UseMCPConfig("")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}, nil
}

// autoPrune removes stale finished sessions, as configured.
func autoPrune(a *app) {
	if a.cfg.Cleanup.MaxAgeDays <= 0 {
		return
	}
	res, err := cleanup.PruneSessions(a.store, config.RunsDir(a.root), a.cfg.Cleanup.MaxAgeDays, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cleanup failed: %v\n", err)
		return
	}
	if len(res.Sessions) > 0 {
		fmt.Fprintf(os.Stderr, "Cleaned up %d old session(s)\n", len(res.Sessions))
	}
}
