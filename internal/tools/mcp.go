package tools

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/caarlos0/go-shellwords"
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

// Server is a stdio MCP server. When Args is empty Command is split
// shell-style, so "npx -y server" works as a single string.
type Server struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
	Env     []string `yaml:"env" json:"env"`
}

func (s Server) argv() (string, []string, error) {
	if len(s.Args) > 0 {
		return s.Command, s.Args, nil
	}
	words, err := shellwords.Parse(s.Command)
	if err != nil {
		return "", nil, fmt.Errorf("parse command %q: %w", s.Command, err)
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], words[1:], nil
}

// MCP dispatches tool calls to external MCP servers. Tools are exposed
// to models as "server_tool".
type MCP struct {
	Servers map[string]Server
	// Disabled lists server names to skip, "*" disables all of them.
	Disabled []string
	// Cache keeps the tool lists of servers between runs. Nil disables it.
	Cache  *cache.Cache[[]mcp.Tool]
	Logger *log.Logger
}

// NewMCP returns an MCP dispatcher caching tool lists under cacheDir.
func NewMCP(servers map[string]Server, disabled []string, cacheDir string, logger *log.Logger) (*MCP, error) {
	tc, err := cache.New[[]mcp.Tool](cacheDir, cache.ToolCache)
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &MCP{
		Servers:  servers,
		Disabled: disabled,
		Cache:    tc,
		Logger:   logger,
	}, nil
}

// cacheKey changes whenever the server's name or launch settings do, so a
// reconfigured server is listed again.
func (s Server) cacheKey(name string) string {
	h := sha256.New()
	for _, part := range slices.Concat([]string{name, s.Command}, s.Args, s.Env) {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("mcp-%x", h.Sum(nil)[:8])
}

func (m *MCP) logger() *log.Logger {
	if m.Logger == nil {
		return log.New(io.Discard)
	}
	return m.Logger
}

// Forget drops the cached tool lists of the named servers, or of all of
// them when none are named.
func (m *MCP) Forget(names ...string) error {
	if m.Cache == nil {
		return nil
	}
	if len(names) == 0 {
		names = slices.Collect(maps.Keys(m.Servers))
	}
	for _, name := range names {
		server, ok := m.Servers[name]
		if !ok {
			return fmt.Errorf("mcp: invalid server name: %q", name)
		}
		if err := m.Cache.Delete(server.cacheKey(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("mcp: forget %s: %w", name, err)
		}
	}
	return nil
}

// Enabled returns the names of the enabled servers, sorted.
func (m *MCP) Enabled() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(m.Servers)) {
		if m.IsEnabled(name) {
			names = append(names, name)
		}
	}
	return names
}

// IsEnabled reports whether the named server is enabled.
func (m *MCP) IsEnabled(name string) bool {
	return !slices.Contains(m.Disabled, "*") &&
		!slices.Contains(m.Disabled, name)
}

func (m *MCP) connect(ctx context.Context, name string) (*client.Client, error) {
	server, ok := m.Servers[name]
	if !ok {
		return nil, fmt.Errorf("mcp: invalid server name: %q", name)
	}
	if !m.IsEnabled(name) {
		return nil, fmt.Errorf("mcp: server is disabled: %q", name)
	}
	cmd, args, err := server.argv()
	if err != nil {
		return nil, fmt.Errorf("mcp: %s: %w", name, err)
	}
	cli, err := client.NewStdioMCPClient(cmd, append(os.Environ(), server.Env...), args...)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	return cli, nil
}

// ListTools lists the tools of every enabled server, concurrently.
func (m *MCP) ListTools(ctx context.Context) (map[string][]mcp.Tool, error) {
	var mu sync.Mutex
	var wg errgroup.Group
	result := map[string][]mcp.Tool{}
	for _, name := range m.Enabled() {
		wg.Go(func() error {
			tools, err := m.toolsFor(ctx, name)
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("timeout while listing tools for %q, make sure the configuration is correct: %w", name, err)
			}
			if err != nil {
				return err
			}
			mu.Lock()
			result[name] = append(result[name], tools...)
			mu.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return result, nil
}

func (m *MCP) toolsFor(ctx context.Context, name string) ([]mcp.Tool, error) {
	var key string
	if server, ok := m.Servers[name]; ok && m.Cache != nil {
		key = server.cacheKey(name)
		if tools, err := m.Cache.Get(key); err == nil {
			return tools, nil
		}
	}
	cli, err := m.connect(ctx, name)
	if err != nil {
		return nil, err
	}
	defer cli.Close() //nolint:errcheck
	tools, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("could not list tools of %s: %w", name, err)
	}
	if key != "" {
		if err := m.Cache.Put(key, tools.Tools); err != nil {
			m.logger().Warn("could not cache tool list", "server", name, "err", err)
		}
	}
	return tools.Tools, nil
}

// Tools returns the tools of every enabled server, renamed to
// "server_tool".
func (m *MCP) Tools(ctx context.Context) ([]mcp.Tool, error) {
	servers, err := m.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	var tools []mcp.Tool
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		for _, tool := range servers[name] {
			tool.Name = name + "_" + tool.Name
			tools = append(tools, tool)
		}
	}
	return tools, nil
}

// split resolves a "server_tool" name. Server names may contain
// underscores themselves, the longest configured one that prefixes name
// wins.
func (m *MCP) split(name string) (string, string, bool) {
	var server string
	for sname := range m.Servers {
		if len(sname) > len(server) && strings.HasPrefix(name, sname+"_") {
			server = sname
		}
	}
	if server == "" {
		return "", "", false
	}
	tool := strings.TrimPrefix(name, server+"_")
	return server, tool, tool != ""
}

// Call runs a "server_tool" call.
func (m *MCP) Call(ctx context.Context, name string, data []byte) (string, error) {
	sname, tool, ok := m.split(name)
	if !ok {
		return "", fmt.Errorf("mcp: invalid tool name: %q", name)
	}
	var args map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			return "", fmt.Errorf("mcp: %w: %s", err, string(data))
		}
	}
	cli, err := m.connect(ctx, sname)
	if err != nil {
		return "", err
	}
	defer cli.Close() //nolint:errcheck

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}
	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}
