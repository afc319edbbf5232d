// session.go defines the single-step session commands. Each one performs
// one controller operation so a session can be driven from scripts.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/plan"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/tui"
)

var newCmd = &cobra.Command{
	Use:   "new <request>",
	Short: "Create a session and generate its questions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNew,
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's state, interview and plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var answerCmd = &cobra.Command{
	Use:   "answer <session-id> <value>",
	Short: "Answer an interview question",
	Long: `Answer the current interview question, or the one named by --key or
--index. Answering an already answered question replaces its answer.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAnswer,
}

var skipCmd = &cobra.Command{
	Use:   "skip <session-id>",
	Short: "Skip an optional interview question",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkip,
}

var planCmd = &cobra.Command{
	Use:   "plan <session-id>",
	Short: "Draft the plan, or install one from a file",
	Long: `Finish the interview if needed and ask Claude for a plan. With --file the
plan is read from a markdown or JSON file instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <session-id>",
	Short: "Accept the drafted plan",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionOp(func(c *controller.Controller, id string) (planning.Snapshot, error) { return c.Confirm(id) }),
}

var modifyCmd = &cobra.Command{
	Use:   "modify <session-id> <feedback>",
	Short: "Discard the drafted plan and plan again with feedback",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runModify,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a session awaiting confirmation",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionOp(func(c *controller.Controller, id string) (planning.Snapshot, error) { return c.Cancel(id) }),
}

var progressCmd = &cobra.Command{
	Use:   "progress <session-id> <task> <percent>",
	Short: "Record execution progress",
	Args:  cobra.ExactArgs(3),
	RunE:  runProgress,
}

var completeCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Mark an executing session as completed",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionOp(func(c *controller.Controller, id string) (planning.Snapshot, error) { return c.Finish(id) }),
}

var executeCmd = &cobra.Command{
	Use:   "execute <session-id>",
	Short: "Run a confirmed plan with Claude",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecute,
}

var (
	showJSONFlag    bool
	showHistoryFlag bool
	listLimitFlag   int
	answerIndexFlag int
	answerKeyFlag   string
	planFileFlag    string
)

func init() {
	showCmd.Flags().BoolVar(&showJSONFlag, "json", false, "Print the session snapshot as JSON")
	showCmd.Flags().BoolVar(&showHistoryFlag, "history", false, "Include answer and progress history")
	listCmd.Flags().IntVarP(&listLimitFlag, "limit", "n", 20, "Maximum sessions to list (0 for all)")

	answerCmd.Flags().IntVar(&answerIndexFlag, "index", -1, "Zero-based question index (default: current question)")
	answerCmd.Flags().StringVar(&answerKeyFlag, "key", "", "Question key")
	skipCmd.Flags().IntVar(&answerIndexFlag, "index", -1, "Zero-based question index (default: current question)")
	skipCmd.Flags().StringVar(&answerKeyFlag, "key", "", "Question key")

	planCmd.Flags().StringVarP(&planFileFlag, "file", "f", "", "Install the plan in this file instead of drafting one")
}

// sessionOp wraps a controller operation that only needs the session id.
func sessionOp(op func(*controller.Controller, string) (planning.Snapshot, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := op(a.ctrl, args[0])
		if err != nil {
			return err
		}
		printStatus(os.Stdout, snap)
		return nil
	}
}

func runNew(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.Start(cmd.Context(), strings.Join(args, " "), a.cfg.Project.DefaultType, controller.StartOptions{
		SkipInterview: a.cfg.Interview.Skip,
	})
	if err != nil {
		return err
	}
	fmt.Println(snap.ID)
	printQuestions(os.Stdout, snap.Interview)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.Get(args[0])
	if err != nil {
		return err
	}

	if showJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	out := os.Stdout
	fmt.Fprintf(out, "%s  %s\n", tui.TitleStyle.Render(snap.ID), tui.StateBadge(string(snap.State)))
	fmt.Fprintf(out, "Request: %s\n", snap.Prompt)
	if snap.ProjectType != "" {
		fmt.Fprintf(out, "Type:    %s\n", snap.ProjectType)
	}
	fmt.Fprintf(out, "Created: %s\n", snap.CreatedAt.Local().Format("2006-01-02 15:04"))

	if len(snap.Interview.Questions) > 0 {
		fmt.Fprintln(out)
		printQuestions(out, snap.Interview)
	}
	if snap.Plan != nil {
		fmt.Fprintln(out)
		if err := printPlan(out, *snap.Plan); err != nil {
			return err
		}
	}
	if snap.Execution != nil {
		fmt.Fprintf(out, "\nProgress: %d%% %s\n", snap.Execution.Percent, snap.Execution.TaskName)
	}

	if showHistoryFlag {
		return printHistory(a, out, snap.ID)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.ctrl.List(listLimitFlag)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Start one with: compass run \"<request>\"")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.ID, tui.StateBadge(s.State), s.UpdatedAt.Local().Format("2006-01-02 15:04"), oneLine(s.Prompt, 60))
	}
	return tw.Flush()
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	index, err := questionIndex(a.ctrl, id, answerKeyFlag, answerIndexFlag)
	if err != nil {
		return err
	}
	snap, err := a.ctrl.Answer(id, index, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printStatus(os.Stdout, snap)
	return nil
}

func runSkip(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	index, err := questionIndex(a.ctrl, id, answerKeyFlag, answerIndexFlag)
	if err != nil {
		return err
	}
	snap, err := a.ctrl.Skip(id, index)
	if err != nil {
		return err
	}
	printStatus(os.Stdout, snap)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	snap, err := a.ctrl.Get(id)
	if err != nil {
		return err
	}
	if snap.State == planning.StateInterviewing {
		if _, err := a.ctrl.CompleteInterview(id); err != nil {
			return err
		}
	}

	if planFileFlag != "" {
		data, err := os.ReadFile(planFileFlag)
		if err != nil {
			return fmt.Errorf("reading plan file: %w", err)
		}
		p, err := plan.ParseOutput(string(data))
		if err != nil {
			return err
		}
		snap, err = a.ctrl.InstallPlan(id, *p)
		if err != nil {
			return err
		}
	} else {
		fmt.Println("Drafting plan...")
		snap, err = a.ctrl.GeneratePlan(cmd.Context(), id)
		if err != nil {
			return err
		}
	}

	if err := printPlan(os.Stdout, *snap.Plan); err != nil {
		return err
	}
	fmt.Printf("\nConfirm with: compass confirm %s\n", id)
	return nil
}

func runModify(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.Modify(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printStatus(os.Stdout, snap)
	return nil
}

func runProgress(cmd *cobra.Command, args []string) error {
	percent, err := strconv.Atoi(strings.TrimSuffix(args[2], "%"))
	if err != nil {
		return fmt.Errorf("percent must be a whole number: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.ReportProgress(args[0], args[1], percent)
	if err != nil {
		return err
	}
	printStatus(os.Stdout, snap)
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.ctrl.Get(args[0])
	if err != nil {
		return err
	}
	if snap.State != planning.StateExecuting {
		return fmt.Errorf("session %s is %s, confirm a plan first", snap.ID, snap.State)
	}
	ctx := cmd.Context()
	stopFollow := followEvents(ctx, a)
	defer stopFollow()
	if err := executeSession(ctx, a, snap.ID, *snap.Plan, os.Stdout); err != nil {
		return err
	}
	fmt.Println(tui.BadgeDone + " Session completed.")
	return nil
}

// questionIndex resolves --key / --index to a question index. With neither
// set, the current question is used.
func questionIndex(ctrl *controller.Controller, id, key string, index int) (int, error) {
	snap, err := ctrl.Get(id)
	if err != nil {
		return 0, err
	}
	return resolveQuestion(snap.Interview, key, index)
}

func resolveQuestion(iv planning.InterviewSnapshot, key string, index int) (int, error) {
	if key != "" {
		for i, q := range iv.Questions {
			if q.Key == key {
				return i, nil
			}
		}
		return 0, fmt.Errorf("question key %q %w", key, planning.ErrNotFound)
	}
	if index >= 0 {
		return index, nil
	}
	return iv.CurrentIndex, nil
}

func printStatus(out io.Writer, snap planning.Snapshot) {
	fmt.Fprintf(out, "%s %s\n", snap.ID, tui.StateBadge(string(snap.State)))
	switch snap.State {
	case planning.StateInterviewing:
		if q := snap.Interview.CurrentIndex; q < len(snap.Interview.Questions) {
			fmt.Fprintf(out, "Next question (%d): %s\n", q, snap.Interview.Questions[q].Text)
		}
	case planning.StateExecuting:
		if snap.Execution != nil {
			fmt.Fprintf(out, "Progress: %d%% %s\n", snap.Execution.Percent, snap.Execution.TaskName)
		}
	}
}

func printQuestions(out io.Writer, iv planning.InterviewSnapshot) {
	for i, q := range iv.Questions {
		marker := "  "
		if i == iv.CurrentIndex {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%d. [%s] %s", marker, i, q.Key, q.Text)
		if q.Required {
			fmt.Fprint(out, " *")
		}
		fmt.Fprintln(out)

		switch {
		case q.Skipped():
			fmt.Fprintln(out, tui.DimStyle.Render("     (skipped)"))
		case q.Answered:
			fmt.Fprintf(out, "     %s\n", q.Value())
		}
	}
}

// printPlan renders the plan as markdown.
func printPlan(out io.Writer, p planning.Plan) error {
	rendered, err := tui.RenderMarkdown(plan.FormatPlan(p), tui.TerminalWidth(100))
	if err != nil {
		return fmt.Errorf("rendering plan: %w", err)
	}
	fmt.Fprint(out, rendered)
	return nil
}

func printHistory(a *app, out io.Writer, id string) error {
	answers, err := a.store.GetAnswers(id)
	if err != nil {
		return err
	}
	progress, err := a.store.GetProgress(id)
	if err != nil {
		return err
	}

	if len(answers) > 0 {
		fmt.Fprintln(out, "\nAnswer history:")
		for _, ans := range answers {
			value := ans.Value
			if ans.Skipped {
				value = "(skipped)"
			}
			fmt.Fprintf(out, "  %s  %d [%s] %s\n", ans.Timestamp.Local().Format("15:04:05"), ans.Index, ans.Key, value)
		}
	}
	if len(progress) > 0 {
		fmt.Fprintln(out, "\nProgress history:")
		for _, p := range progress {
			fmt.Fprintf(out, "  %s  %3d%% %s\n", p.Timestamp.Local().Format("15:04:05"), p.Percent, p.TaskName)
		}
	}
	return nil
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
