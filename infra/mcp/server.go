// Package mcp exposes the vehicle command dispatcher as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kilianp07/vcmd/core/catalog"
	"github.com/kilianp07/vcmd/core/model"
	"github.com/kilianp07/vcmd/infra/logger"
)

const (
	serverName = "vcmd"
	// ServerVersion is reported to MCP clients.
	ServerVersion = "0.1.0"
)

// Dispatcher executes one vehicle command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd model.Command) model.Outcome
}

// CommandInput is the vehicle_command tool input.
type CommandInput struct {
	Method    string         `json:"method" jsonschema:"whitelisted vehicle command, see vehicle_commands"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"command parameters"`
	ForceWake bool           `json:"force_wake,omitempty" jsonschema:"confirm waking an asleep vehicle when the gateway is unreachable"`
}

// CommandsInput is the vehicle_commands tool input.
type CommandsInput struct {
	Direction string `json:"direction,omitempty" jsonschema:"filter by read or write"`
}

// CommandsResult lists the whitelisted commands.
type CommandsResult struct {
	Commands []catalog.Entry `json:"commands"`
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	log       logger.Logger
}

// New creates an MCP server bound to d.
func New(d Dispatcher) (*Server, error) {
	if d == nil {
		return nil, errors.New("mcp: dispatcher is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: ServerVersion}, nil)
	mcp.AddTool(server, CommandTool(), CommandHandler(d))
	mcp.AddTool(server, CommandsTool(), CommandsHandler())
	return &Server{mcpServer: server, log: logger.New("mcp")}, nil
}

// Serve runs the server on stdio until ctx is canceled or the client leaves.
func (s *Server) Serve(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves on an arbitrary transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	s.log.Infof("serving MCP")
	if err := s.mcpServer.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// CommandTool defines the vehicle_command tool.
func CommandTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vehicle_command",
		Description: "Runs a whitelisted vehicle command through the node gateway, falling back to the local CLI",
	}
}

// CommandsTool defines the vehicle_commands tool.
func CommandsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vehicle_commands",
		Description: "Lists the whitelisted vehicle commands",
	}
}

// CommandHandler dispatches whitelisted commands. A wake confirmation
// request is a normal result; failures and unlisted methods are tool errors.
func CommandHandler(d Dispatcher) mcp.ToolHandlerFor[CommandInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in CommandInput) (*mcp.CallToolResult, any, error) {
		method := strings.TrimSpace(in.Method)
		if method == "" {
			return nil, nil, fmt.Errorf("method is required")
		}
		if _, ok := catalog.Lookup(method); !ok {
			return nil, nil, model.Errorf(model.KindUnsupported, "method %s is not whitelisted; see vehicle_commands", method)
		}
		params := in.Params
		if in.ForceWake {
			if params == nil {
				params = map[string]any{}
			}
			params[model.ParamForceWake] = true
		}
		out := d.Dispatch(ctx, model.Command{Method: method, Params: params})
		switch out.Status {
		case model.StatusSuccess:
			text, err := json.MarshalIndent(out.Value, "", "  ")
			if err != nil {
				return nil, nil, fmt.Errorf("encode result: %w", err)
			}
			if out.Note != "" {
				text = append([]byte(out.Note+"\n"), text...)
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(text)}}}, nil, nil
		case model.StatusRequiresWakeConfirmation:
			msg := fmt.Sprintf("%s\n\nCall vehicle_command again with force_wake=true to wake the vehicle and run %s.", out.Message, method)
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: msg}}}, nil, nil
		default:
			return nil, nil, out.Err()
		}
	}
}

// CommandsHandler lists the catalog, optionally filtered by direction.
func CommandsHandler() mcp.ToolHandlerFor[CommandsInput, CommandsResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, in CommandsInput) (*mcp.CallToolResult, CommandsResult, error) {
		switch catalog.Direction(strings.ToLower(in.Direction)) {
		case "":
			return nil, CommandsResult{Commands: catalog.All()}, nil
		case catalog.Read:
			return nil, CommandsResult{Commands: catalog.ByDirection(catalog.Read)}, nil
		case catalog.Write:
			return nil, CommandsResult{Commands: catalog.ByDirection(catalog.Write)}, nil
		default:
			return nil, CommandsResult{}, fmt.Errorf("direction must be read or write, got %q", in.Direction)
		}
	}
}
