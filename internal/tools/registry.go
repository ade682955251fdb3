// Package tools provides the tools models can call while answering: a
// calculator, the current date, the current weather and any configured
// MCP server.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
)

// Local tool names.
const (
	CalculatorTool = "calculator"
	HumanDateTool  = "get_human_date"
	WeatherTool    = "get_weather"
)

// ErrUnknownTool is returned when calling a tool no one provides.
var ErrUnknownTool = errors.New("unknown tool")

// Registry exposes the local tools and the MCP server tools.
type Registry struct {
	Weather *WeatherClient
	MCP     *MCP
	Now     func() time.Time
	Logger  *log.Logger
}

// Local returns the definitions of the built-in tools.
func (r *Registry) Local() []mcp.Tool {
	tools := []mcp.Tool{
		mcp.NewTool(CalculatorTool,
			mcp.WithDescription("A simple calculator that can add, subtract, multiply, and divide."),
			mcp.WithString("expression", mcp.Required(), mcp.Description("Arithmetic expression, e.g. (2+3)*4")),
		),
		mcp.NewTool(HumanDateTool,
			mcp.WithDescription("Returns the current date in a human readable form."),
		),
	}
	if r.Weather != nil {
		tools = append(tools, mcp.NewTool(WeatherTool,
			mcp.WithDescription("A tool to get the current weather information."),
			mcp.WithString("location", mcp.Description("City and country, defaults to "+DefaultWeatherLocation)),
		))
	}
	return tools
}

// Tools returns the built-in tools followed by the MCP server tools.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	tools := r.Local()
	if r.MCP == nil {
		return tools, nil
	}
	remote, err := r.MCP.Tools(ctx)
	if err != nil {
		return nil, err
	}
	return append(tools, remote...), nil
}

// Call runs the named tool with its JSON arguments.
func (r *Registry) Call(ctx context.Context, name string, data []byte) (string, error) {
	out, err := r.call(ctx, name, data)
	if err != nil && r.Logger != nil {
		r.Logger.Warn("tool call failed", "tool", name, "err", err)
	}
	return out, err
}

func (r *Registry) call(ctx context.Context, name string, data []byte) (string, error) {
	switch name {
	case CalculatorTool:
		var args struct {
			Expression string `json:"expression"`
		}
		if err := decodeArgs(data, &args); err != nil {
			return "", err
		}
		v, err := Calculate(args.Expression)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case HumanDateTool:
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		return HumanDate(now()), nil
	case WeatherTool:
		if r.Weather == nil {
			break
		}
		var args struct {
			Location string `json:"location"`
		}
		if err := decodeArgs(data, &args); err != nil {
			return "", err
		}
		w, err := r.Weather.Current(ctx, args.Location)
		if err != nil {
			return "", err
		}
		bts, err := json.Marshal(w)
		if err != nil {
			return "", fmt.Errorf("encode weather: %w", err)
		}
		return string(bts), nil
	}
	if r.MCP != nil {
		return r.MCP.Call(ctx, name, data)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Caller binds ctx to Call, in the shape chat requests expect.
func (r *Registry) Caller(ctx context.Context) func(name string, data []byte) (string, error) {
	return func(name string, data []byte) (string, error) {
		return r.Call(ctx, name, data)
	}
}

func decodeArgs(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid tool arguments %s: %w", string(data), err)
	}
	return nil
}
