// log.go implements the "compass log" command and the --verbose event feed.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/log"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print session events",
	Long: `Print the events recorded in .compass/log.jsonl. With --follow, keep
printing new events as they are written until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

var (
	logSessionFlag string
	logFollowFlag  bool
)

func init() {
	logCmd.Flags().StringVarP(&logSessionFlag, "session", "s", "", "Only show events for this session")
	logCmd.Flags().BoolVarP(&logFollowFlag, "follow", "f", false, "Keep printing new events")
}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	emit := func(e log.LogEvent) error {
		if logSessionFlag != "" && e.SessionID != logSessionFlag {
			return nil
		}
		fmt.Fprintln(os.Stdout, formatEvent(e))
		return nil
	}

	if !logFollowFlag {
		events, err := a.logger.ReadAll()
		if err != nil {
			return err
		}
		for _, e := range events {
			_ = emit(e)
		}
		return nil
	}

	err = a.logger.Follow(cmd.Context(), emit)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// followEvents prints new log events to stderr while --verbose is set. The
// returned func stops the feed.
func followEvents(ctx context.Context, a *app) func() {
	if !verbose {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	since := time.Now()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.logger.Follow(ctx, func(e log.LogEvent) error {
			if e.Time.Before(since) {
				return nil
			}
			fmt.Fprintln(os.Stderr, formatEvent(e))
			return nil
		})
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// formatEvent renders one event as a single line.
func formatEvent(e log.LogEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-22s", e.Time.Local().Format("15:04:05"), e.Event)
	if e.SessionID != "" {
		fmt.Fprintf(&b, " %s", e.SessionID)
	}

	switch e.Event {
	case log.EventSessionCreated:
		writeField(&b, "prompt", oneLine(e.Prompt, 60))
	case log.EventQuestionsAdded:
		if n, ok := e.Data["count"]; ok {
			writeField(&b, "questions", fmt.Sprint(n))
		}
	case log.EventAnswerRecorded, log.EventQuestionSkipped:
		writeField(&b, "index", fmt.Sprint(e.Index))
		writeField(&b, "question", e.Question)
	case log.EventPlanReady:
		writeField(&b, "title", e.Title)
		writeField(&b, "tasks", fmt.Sprint(e.Tasks))
	case log.EventModificationRequested, log.EventPlanCancelled:
		writeField(&b, "reason", oneLine(e.Reason, 60))
	case log.EventTaskProgress:
		writeField(&b, "task", e.TaskName)
		writeField(&b, "percent", fmt.Sprint(e.Percent))
	case log.EventTaskRetry:
		writeField(&b, "task", e.TaskName)
		writeField(&b, "attempt", fmt.Sprint(e.Attempt))
	}
	if e.State != "" {
		writeField(&b, "state", e.State)
	}
	if e.Error != "" {
		writeField(&b, "error", e.Error)
	}
	if e.DurationMs > 0 {
		writeField(&b, "took", (time.Duration(e.DurationMs) * time.Millisecond).String())
	}
	return b.String()
}

func writeField(w io.Writer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, " %s=%s", key, value)
}
