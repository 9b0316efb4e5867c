// Package cmd provides the CLI commands for krug-mcp.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/krug-dev/krug-mcp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "krug-mcp",
	Short: "krug-mcp - MCP tool server over Streamable HTTP",
	Long: `krug-mcp serves Model Context Protocol tools over JSON-RPC 2.0 on a
single HTTP endpoint, with optional SSE responses and bearer authentication.

Quick start:
  1. Run: krug-mcp start --dev
  2. POST JSON-RPC to http://127.0.0.1:8080/mcp with "Authorization: Bearer dev-token"

Configuration:
  Config is loaded from krug-mcp.yaml in the current directory,
  $HOME/.krug-mcp/, or /etc/krug-mcp/.

  Environment variables can override config values with the KRUG_MCP_ prefix.
  Example: KRUG_MCP_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the server
  stop        Stop the running server
  config      Print the effective configuration
  hash-token  Generate an argon2id hash for auth.token_hash
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./krug-mcp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
