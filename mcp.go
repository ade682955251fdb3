package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/aihelper/aihelper/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect the configured MCP servers",
	}
	var refresh bool
	toolsCmd := &cobra.Command{
		Use:   "tools [server...]",
		Short: "List the tools of the enabled MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := settingsMCP()
			if err != nil {
				return cliError{err, "Could not create the tools cache."}
			}
			if refresh {
				if err := m.Forget(args...); err != nil {
					return cliError{err, "Could not clear the cached tool lists."}
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), settings.MCPTimeout)
			defer cancel()
			servers, err := m.ListTools(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				return cliError{
					err:    fmt.Errorf("timeout while listing tools: %w", err),
					reason: "Could not list tools. Make sure the server configuration is correct, and that any container it needs is running.",
				}
			}
			if err != nil {
				return cliError{err, "Could not list tools."}
			}
			mcpListTools(cmd.OutOrStdout(), servers)
			return nil
		},
	}
	toolsCmd.Flags().BoolVar(&refresh, "refresh", false, "Ask the servers again instead of using the cached tool lists")
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the MCP servers and whether they are enabled",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			mcpList(cmd.OutOrStdout(), &tools.MCP{
				Servers:  settings.MCPServers,
				Disabled: settings.MCPDisable,
			})
		},
	}, toolsCmd)
	return cmd
}

func settingsMCP() (*tools.MCP, error) {
	return tools.NewMCP(settings.MCPServers, settings.MCPDisable, settings.CachePath, newLogger(settings.LogLevel).WithPrefix("mcp")) //nolint:wrapcheck
}

func mcpList(w io.Writer, m *tools.MCP) {
	for _, name := range slices.Sorted(maps.Keys(m.Servers)) {
		s := name
		if m.IsEnabled(name) {
			s += stdoutStyles().Timeago.Render(" (enabled)")
		}
		fmt.Fprintln(w, s)
	}
}

func mcpListTools(w io.Writer, servers map[string][]mcp.Tool) {
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		for _, tool := range servers[name] {
			fmt.Fprint(w, stdoutStyles().Timeago.Render(name+" > "))
			fmt.Fprintln(w, tool.Name)
		}
	}
}
