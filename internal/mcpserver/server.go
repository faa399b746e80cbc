// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz task tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *api.Service
	store storage.Provider
}

// New creates a new MCP server with all Dagaz tools registered.
func New(svc *api.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List every task in the collection, document-sourced and calendar-only alike. "+
			"Optional filters on tag and status."),
		mcp.WithString("tag", mcp.Description("Only tasks carrying this tag")),
		mcp.WithString("status", mcp.Description("Only tasks with this status: todo, in-progress, done, cancelled")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw Markdown of a vault document. Task lines follow the "+
			"format described by the get_task_format tool or the dagaz://task-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. notes/todo.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of a document-sourced task. The change is written back "+
			"into the source line, preserving everything else on it. Pass an empty string to clear a field."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id (path:line for document tasks)")),
		mcp.WithString("date", mcp.Description("Scheduled date YYYY-MM-DD, empty to clear")),
		mcp.WithString("time", mcp.Description("Scheduled time HH:MM, empty to clear")),
		mcp.WithNumber("duration", mcp.Description("Duration in minutes, 0 to clear")),
		mcp.WithString("status", mcp.Description("New status: todo, in-progress, done, cancelled")),
		mcp.WithString("priority", mcp.Description("New priority: low, medium, high, critical, empty to clear")),
	), s.updateTask)

	s.mcp.AddTool(mcp.NewTool("import_ics",
		mcp.WithDescription("Import an iCalendar payload. Recurring events are expanded into "+
			"individual occurrences; events already imported (same UID) are skipped."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Raw ICS text")),
	), s.importICS)

	s.mcp.AddTool(mcp.NewTool("timer_toggle",
		mcp.WithDescription("Toggle the work timer for a task: starts a session, or flips "+
			"pause/resume when the session already tracks that task."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id to time")),
	), s.timerToggle)

	s.mcp.AddTool(mcp.NewTool("get_task_format",
		mcp.WithDescription("Returns the canonical Dagaz task line format. "+
			"Call this before writing task lines into documents."),
	), s.getTaskFormat)

	// Resource: task line format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://task-format", "Task Line Format Contract",
			mcp.WithResourceDescription("Canonical Markdown task line format that all task lines must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	status := models.Status(req.GetString("status", ""))
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", status)), nil
	}

	tasks, err := s.svc.ListTasks(tag, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(tasks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	patch := api.PatchDocumentTaskRequest{ID: id}
	args := req.GetArguments()
	if v, ok := args["date"].(string); ok {
		patch.Date = &v
	}
	if v, ok := args["time"].(string); ok {
		patch.Time = &v
	}
	if v, ok := args["duration"].(float64); ok {
		d := int(v)
		patch.Duration = &d
	}
	if v, ok := args["status"].(string); ok {
		patch.Status = &v
	}
	if v, ok := args["priority"].(string); ok {
		patch.Priority = &v
	}

	task, err := s.svc.UpdateDocumentTask(ctx, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(task, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) importICS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.ImportICS(content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %d, duplicates skipped: %d", resp.Imported, resp.Duplicates)), nil
}

func (s *Server) timerToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	derived, err := s.svc.ToggleTimer(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if derived != nil {
		return mcp.NewToolResultText(fmt.Sprintf("timer started, tracking task %s", derived.ID)), nil
	}
	status := s.svc.TimerStatus()
	if status.Active && status.Session.Paused {
		return mcp.NewToolResultText("timer paused"), nil
	}
	return mcp.NewToolResultText("timer resumed"), nil
}

func (s *Server) getTaskFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://task-format",
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
