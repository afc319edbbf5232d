// bridge.go implements the hidden "compass mcp" command, an MCP stdio bridge
// that Claude processes use to reach a session on the compass server.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/server"
)

var (
	bridgeAddr      string
	bridgeSessionID string
)

var mcpCmd = &cobra.Command{
	Use:    "mcp",
	Hidden: true,
	Short:  "MCP stdio bridge to the compass HTTP server (internal use only)",
	Args:   cobra.NoArgs,
	RunE:   runBridge,
}

func init() {
	mcpCmd.Flags().StringVar(&bridgeAddr, "addr", "", "Compass server address (host:port)")
	mcpCmd.Flags().StringVar(&bridgeSessionID, "session", "", "Session the tools act on")
	_ = mcpCmd.MarkFlagRequired("addr")
}

func runBridge(cmd *cobra.Command, args []string) error {
	return server.RunBridge(bridgeAddr, bridgeSessionID)
}
