package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/samar/pkg/errors"
)

type mockWorkspace struct {
	strict   bool
	resetErr error
	resets   int
}

func (w *mockWorkspace) SourceRoot() string { return "/home/user/project" }
func (w *mockWorkspace) MirrorRoot() string { return "/tmp/samar-project-abc" }
func (w *mockWorkspace) Strict() bool       { return w.strict }

func (w *mockWorkspace) Reset() error {
	w.resets++
	return w.resetErr
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGetWorkspaceInfo(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		exp    WorkspaceInfo
	}{
		{
			name:   "Normal",
			strict: false,
			exp: WorkspaceInfo{
				Status:       "active",
				Mode:         "normal",
				RealPath:     "/home/user/project",
				ShadowPath:   "/tmp/samar-project-abc",
				Instructions: "Perform ALL file modifications in the 'shadow_path'. Do NOT touch 'real_path'.",
			},
		},
		{
			name:   "Strict",
			strict: true,
			exp: WorkspaceInfo{
				Status:       "active",
				Mode:         "strict",
				RealPath:     "/home/user/project",
				ShadowPath:   "/tmp/samar-project-abc",
				Instructions: "Perform ALL file modifications in the 'shadow_path'. Do NOT touch 'real_path'.",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			s := New(&mockWorkspace{strict: test.strict})
			result, err := s.getWorkspaceInfo(context.Background(), mcp.CallToolRequest{})
			require.NoError(t, err)
			assert.False(t, result.IsError)

			var info WorkspaceInfo
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &info))
			assert.Equal(t, test.exp, info)
		})
	}
}

func TestResetWorkspace(t *testing.T) {
	workspace := &mockWorkspace{}
	s := New(workspace)

	result, err := s.resetWorkspace(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "successfully reset")
	assert.Equal(t, 1, workspace.resets)

	workspace.resetErr = errors.New("disk full")
	result, err = s.resetWorkspace(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "disk full")
	assert.Equal(t, 2, workspace.resets)
}

func TestSafetyBriefing(t *testing.T) {
	for _, strict := range []bool{true, false} {
		s := New(&mockWorkspace{strict: strict})
		result, err := s.safetyBriefing(context.Background(), mcp.GetPromptRequest{})
		require.NoError(t, err)
		require.Len(t, result.Messages, 1)
		assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)

		text, ok := result.Messages[0].Content.(mcp.TextContent)
		require.True(t, ok)
		assert.Contains(t, text.Text, "/tmp/samar-project-abc")
		if strict {
			assert.Contains(t, text.Text, "ACTIVE")
		} else {
			assert.Contains(t, text.Text, "Inactive")
		}
	}
}

func TestUnknownTool(t *testing.T) {
	s := New(&mockWorkspace{})
	resp := s.mcpServer.HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_everything"}}`))

	_, isErr := resp.(mcp.JSONRPCError)
	assert.True(t, isErr, "unexpected response: %#v", resp)
}
