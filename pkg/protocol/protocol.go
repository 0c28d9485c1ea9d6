// Package protocol exposes the mirror to an AI agent over the Model Context
// Protocol, so that the agent can discover where it should work.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/version"
)

const (
	// ServerName is the name the server reports to clients.
	ServerName = "samar-mcp-server"

	workspaceInfoTool = "get_workspace_info"
	resetTool         = "reset_shadow_workspace"
	briefingPrompt    = "samar_safety_briefing"
)

// Workspace is the running sync session that the server describes. It's
// implemented by sync.Engine.
type Workspace interface {
	SourceRoot() string
	MirrorRoot() string
	Strict() bool
	Reset() error
}

// WorkspaceInfo is the response to the get_workspace_info tool.
type WorkspaceInfo struct {
	Status       string `json:"status"`
	Mode         string `json:"mode"`
	RealPath     string `json:"real_path"`
	ShadowPath   string `json:"shadow_path"`
	Instructions string `json:"instructions"`
}

// Server answers agent requests about a Workspace.
type Server struct {
	workspace Workspace
	mcpServer *server.MCPServer
}

// New creates a Server for `workspace`, with all tools and prompts
// registered.
func New(workspace Workspace) *Server {
	s := &Server{
		workspace: workspace,
		mcpServer: server.NewMCPServer(
			ServerName,
			version.Get(),
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcpServer.AddTool(mcp.NewTool(workspaceInfoTool,
		mcp.WithDescription("Returns critical information about the current Safe Shadow "+
			"Workspace, including the path where file operations should be performed."),
	), s.getWorkspaceInfo)

	s.mcpServer.AddTool(mcp.NewTool(resetTool,
		mcp.WithDescription("Completely wipes and re-creates the Shadow Workspace from the "+
			"Real Workspace. Use this if the environment gets messed up or out of sync."),
	), s.resetWorkspace)

	s.mcpServer.AddPrompt(mcp.NewPrompt(briefingPrompt,
		mcp.WithPromptDescription("Injects the Samar safety protocols and workspace paths "+
			"into the agent's context."),
	), s.safetyBriefing)

	return s
}

// ServeStdio serves requests over stdin and stdout until stdin is closed or
// the process is signalled. Nothing else may write to stdout while it runs.
func (s *Server) ServeStdio() error {
	errLogger := stdlog.New(log.StandardLogger().WriterLevel(log.ErrorLevel), "", 0)
	if err := server.ServeStdio(s.mcpServer, server.WithErrorLogger(errLogger)); err != nil {
		return errors.WithContext(err, "serve stdio")
	}
	return nil
}

func (s *Server) info() WorkspaceInfo {
	mode := "normal"
	if s.workspace.Strict() {
		mode = "strict"
	}
	return WorkspaceInfo{
		Status:       "active",
		Mode:         mode,
		RealPath:     s.workspace.SourceRoot(),
		ShadowPath:   s.workspace.MirrorRoot(),
		Instructions: "Perform ALL file modifications in the 'shadow_path'. Do NOT touch 'real_path'.",
	}
}

func (s *Server) getWorkspaceInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infoJSON, err := json.MarshalIndent(s.info(), "", "  ")
	if err != nil {
		return nil, errors.WithContext(err, "marshal")
	}
	return mcp.NewToolResultText(string(infoJSON)), nil
}

func (s *Server) resetWorkspace(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.workspace.Reset(); err != nil {
		log.WithError(err).Error("Failed to reset shadow workspace")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reset the Shadow Workspace: %s", err)), nil
	}
	return mcp.NewToolResultText("Shadow Workspace has been successfully reset and " +
		"re-synced from the source of truth."), nil
}

func (s *Server) safetyBriefing(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	strictMode := "Inactive. Secrets are blocked from syncing back."
	if s.workspace.Strict() {
		strictMode = "ACTIVE. Secrets created here will be destroyed immediately."
	}

	text := fmt.Sprintf(`You are operating within a **Samar Shadow Workspace**.

1. **Safety**: This is a sandboxed environment. You can freely create, edit, or delete files here.
2. **Synchronization**: Changes you make here are synced back to the real project *unless* they are dangerous (e.g. secrets).
3. **Location**: Your workspace is located at:
%s
4. **Strict Mode**: %s

Please perform your tasks within this directory.`, s.workspace.MirrorRoot(), strictMode)

	return mcp.NewGetPromptResult("Samar safety briefing", []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	}), nil
}
