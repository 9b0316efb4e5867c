// Command krug-mcp serves MCP tools over Streamable HTTP.
package main

import "github.com/krug-dev/krug-mcp/cmd/krug-mcp/cmd"

func main() {
	cmd.Execute()
}
