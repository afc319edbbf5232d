package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single invalid config value.
type ValidationError struct {
	Field   string // dotted YAML path, e.g. "execution.max_retries"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every problem found in a config.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d config errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidModels lists the Claude model aliases accepted in config.
func ValidModels() []string {
	return []string{"opus", "sonnet", "haiku"}
}

// Validate checks the config and returns nil or a ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if !slices.Contains(ValidModels(), c.Model) {
		errs = append(errs, ValidationError{"model", c.Model, "must be one of " + strings.Join(ValidModels(), ", ")})
	}
	if c.Interview.MaxQuestions < 0 {
		errs = append(errs, ValidationError{"interview.max_questions", c.Interview.MaxQuestions, "must not be negative"})
	}
	if c.Execution.MaxRetries < 0 {
		errs = append(errs, ValidationError{"execution.max_retries", c.Execution.MaxRetries, "must not be negative"})
	}
	if c.Execution.TimeoutPerTask <= 0 {
		errs = append(errs, ValidationError{"execution.timeout_per_task", c.Execution.TimeoutPerTask, "must be positive"})
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, ValidationError{"server.addr", c.Server.Addr, "must be host:port"})
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		errs = append(errs, ValidationError{"storage.db_path", c.Storage.DBPath, "must not be empty"})
	}
	if c.Cleanup.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{"cleanup.max_age_days", c.Cleanup.MaxAgeDays, "must not be negative"})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
