package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BuildMCPConfig returns a Claude --mcp-config document that launches this
// binary's `mcp` command as a bridge for sessionID.
func BuildMCPConfig(addr, sessionID string) []byte {
	binary, _ := os.Executable()
	if binary == "" {
		binary = "compass"
	}

	config := map[string]any{
		"mcpServers": map[string]any{
			"compass": map[string]any{
				"command": binary,
				"args":    []string{"mcp", "--addr", addr, "--session", sessionID},
			},
		},
	}

	data, _ := json.Marshal(config)
	return data
}

// WriteMCPConfig writes BuildMCPConfig's output to path.
func WriteMCPConfig(path, addr, sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating mcp config directory: %w", err)
	}
	if err := os.WriteFile(path, BuildMCPConfig(addr, sessionID), 0644); err != nil {
		return fmt.Errorf("writing mcp config: %w", err)
	}
	return nil
}
