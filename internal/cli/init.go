// init.go implements the "compass init" command.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/detect"
	"github.com/berth-dev/compass/internal/session"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize compass in the current directory",
	Long: `Create the .compass/ directory with a default configuration and an
empty session database, and add compass runtime files to .gitignore.`,
	RunE: runInit,
}

var (
	initModelFlag string
	initTypeFlag  string
	initForceFlag bool
)

func init() {
	initCmd.Flags().StringVar(&initModelFlag, "model", "", "Claude model to use (opus, sonnet, haiku)")
	initCmd.Flags().StringVar(&initTypeFlag, "type", "", "Default project type for new sessions (default: detected)")
	initCmd.Flags().BoolVar(&initForceFlag, "force", false, "Overwrite an existing configuration without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	compassDir := config.Dir(dir)
	if info, statErr := os.Stat(compassDir); statErr == nil && info.IsDir() && !initForceFlag {
		fmt.Println("Warning: .compass/ directory already exists.")
		fmt.Print("Reinitialize? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(config.RunsDir(dir), 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", config.RunsDir(dir), err)
	}

	cfg := config.DefaultConfig()
	cfg.Project.Name = filepath.Base(dir)
	if initModelFlag != "" {
		cfg.Model = initModelFlag
	}
	cfg.Project.DefaultType = initTypeFlag
	if cfg.Project.DefaultType == "" {
		cfg.Project.DefaultType = detect.ProjectType(dir)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create the database now so schema problems surface at init time.
	store, err := session.NewStore(cfg.DBPath(dir))
	if err != nil {
		return err
	}
	_ = store.Close()

	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Println("Compass initialized")
	fmt.Printf("  Project: %s\n", cfg.Project.Name)
	fmt.Printf("  Type:    %s\n", cfg.Project.DefaultType)
	fmt.Printf("  Model:   %s\n", cfg.Model)
	fmt.Println()
	fmt.Println("Configuration written to .compass/config.yaml")
	fmt.Println("Ready to run: compass run \"your request\"")
	return nil
}

// ensureGitignore appends compass runtime entries to .gitignore when they
// are missing. config.yaml stays tracked.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	requiredEntries := []string{
		// Secrets
		".env",
		// Compass runtime
		".compass/log.jsonl",
		".compass/sessions.db*",
		".compass/runs/",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	if existing != "" {
		b.WriteString("\n")
	}
	b.WriteString("# compass\n")
	for _, entry := range missing {
		b.WriteString(entry)
		b.WriteString("\n")
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
