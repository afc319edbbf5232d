// display.go handles the line-based interview used when stdin is not a terminal.
package understand

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/berth-dev/compass/internal/planning"
)

// Responder applies the user's replies to the session.
type Responder interface {
	Answer(index int, value string) error
	Skip(index int) error
}

// RunLineInterview prompts for every unanswered question in order, reading
// one line per question from in. An empty line skips an optional question and
// re-asks a required one. EOF stops the interview early without error.
func RunLineInterview(in io.Reader, out io.Writer, questions []planning.Question, r Responder) error {
	reader := bufio.NewReader(in)
	total := len(questions)

	for i, q := range questions {
		if q.Answered {
			continue
		}

		for {
			fmt.Fprintln(out)
			suffix := " (optional, press enter to skip)"
			if q.Required {
				suffix = " (required)"
			}
			fmt.Fprintf(out, "[%d/%d] %s%s\n", i+1, total, q.Text, suffix)
			fmt.Fprint(out, "  > ")

			line, err := reader.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading answer: %w", err)
			}
			eof := errors.Is(err, io.EOF)
			line = strings.TrimSpace(line)

			if line != "" {
				if aerr := r.Answer(i, line); aerr != nil {
					return aerr
				}
				break
			}
			if eof {
				return nil
			}
			if !q.Required {
				if serr := r.Skip(i); serr != nil {
					return serr
				}
				break
			}
			fmt.Fprintln(out, "  This question needs an answer.")
		}
	}

	return nil
}
