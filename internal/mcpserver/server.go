// Package mcpserver exposes the renaming pipeline's five operations as
// MCP tools: a thin Server wrapping a *server.MCPServer, one
// mcp.NewTool/AddTool pair per operation, handlers that translate request
// arguments into a typed call and format the result as text.
package mcpserver

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/modify"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pipeline"
)

// Server wraps a pipeline.Pipeline behind an MCP tool surface.
type Server struct {
	name, version string
	pipeline      *pipeline.Pipeline
	mcpServer     *server.MCPServer
}

// NewServer constructs a Server around an already-configured pipeline.
func NewServer(name, version string, p *pipeline.Pipeline) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	s := &Server{
		name:     name,
		version:  version,
		pipeline: p,
		mcpServer: server.NewMCPServer(
			name, version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	pathArg := mcp.WithString("path", mcp.Required(), mcp.Description("Full path to the PDF file"))
	passphraseArg := mcp.WithString("passphrase", mcp.Description("Owner/user passphrase, if the document is encrypted"))
	outputDirArg := mcp.WithString("output_dir", mcp.Description("Directory to write output artifacts into (default: next to the input)"))

	s.mcpServer.AddTool(mcp.NewTool(
		"analyze",
		mcp.WithDescription("Extract AcroForm fields and their surrounding page context from a PDF"),
		pathArg, passphraseArg,
	), s.handleAnalyze)

	s.mcpServer.AddTool(mcp.NewTool(
		"plan",
		mcp.WithDescription("Decide new BEM names for every field and build the ordered, safety-scored modification plan"),
		pathArg, passphraseArg,
	), s.handlePlan)

	s.mcpServer.AddTool(mcp.NewTool(
		"apply",
		mcp.WithDescription("Plan and apply field renames, writing a modified document, mapping CSV, and JSON report"),
		pathArg, passphraseArg, outputDirArg,
	), s.handleApply)

	s.mcpServer.AddTool(mcp.NewTool(
		"rollback",
		mcp.WithDescription("Restore a document's original bytes from a prior apply's backup"),
		mcp.WithString("original_path", mcp.Required(), mcp.Description("Path the backup should be restored to")),
		mcp.WithString("backup_path", mcp.Required(), mcp.Description("Path of the backup file written by a prior apply")),
	), s.handleRollback)

	s.mcpServer.AddTool(mcp.NewTool(
		"process",
		mcp.WithDescription("Run analyze, plan, and apply in one call"),
		pathArg, passphraseArg, outputDirArg,
	), s.handleProcess)
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	passphrase := optionalString(request, "passphrase")

	result, err := s.pipeline.Analyze(path, passphrase)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Analyzed %s\nPDF version: %s\nFields found: %d\nFields with context: %d\n",
		result.Metadata.Path, result.Metadata.Version, result.Metadata.FieldCount, len(result.Contexts))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	passphrase := optionalString(request, "passphrase")

	plan, decisions, _, err := s.pipeline.Plan(path, passphrase)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Plan for %s\nModifications: %d\nSafety score: %.2f\n\n", path, len(plan.Modifications), plan.SafetyScore)
	for _, m := range plan.Modifications {
		line := fmt.Sprintf("  %s -> %s", m.OldName, m.NewName)
		for _, dep := range m.DependentRefs {
			if dep.Blocker {
				line += fmt.Sprintf(" [BLOCKED: %s]", dep.Reason)
			}
		}
		text += line + "\n"
	}
	if len(plan.ConflictReport) > 0 {
		text += fmt.Sprintf("\nConflicts: %d\n", len(plan.ConflictReport))
		for _, c := range plan.ConflictReport {
			text += fmt.Sprintf("  %s: %s\n", c.FieldID, c.Message)
		}
	}
	_ = decisions
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	passphrase := optionalString(request, "passphrase")
	outputDir := optionalString(request, "output_dir")

	plan, decisions, analysis, err := s.pipeline.Plan(path, passphrase)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.pipeline.Apply(path, passphrase, plan, decisions, analysis, outputDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Applied %d modification(s) to %s\nModified: %s\nMapping: %s\nReport: %s\nBackup ID: %s\n",
		len(plan.Modifications), path, result.ModifiedPath, result.MappingPath, result.ReportPath, result.BackupID)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRollback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	originalPath, err := request.RequireString("original_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	backupPath, err := request.RequireString("backup_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	restoredPath, err := s.pipeline.Rollback(modify.BackupRecord{
		OriginalPath: originalPath,
		BackupPath:   backupPath,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Restored %s from %s", restoredPath, backupPath)), nil
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	passphrase := optionalString(request, "passphrase")
	outputDir := optionalString(request, "output_dir")

	result, err := s.pipeline.Process(path, passphrase, outputDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Processed %s\nModified: %s\nMapping: %s\nReport: %s\n",
		path, result.ModifiedPath, result.MappingPath, result.ReportPath)
	return mcp.NewToolResultText(text), nil
}

func optionalString(request mcp.CallToolRequest, key string) string {
	args := request.GetArguments()
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// Run starts the server over stdio. Logging goes to stderr so it never
// interleaves with the MCP protocol on stdout.
func (s *Server) Run(ctx context.Context) error {
	log.SetOutput(os.Stderr)
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
