// Package mcp exposes the polish pipeline and its run history as MCP
// tools over stdio. Only non-interactive modes are available here:
// there is no operator to prompt on the far side of the transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/decision"
	"github.com/polish-dev/polish/internal/gitutil"
	"github.com/polish-dev/polish/internal/output"
	"github.com/polish-dev/polish/internal/patch"
	"github.com/polish-dev/polish/internal/pipeline"
	"github.com/polish-dev/polish/internal/store"
)

// Server wraps the polish pipeline and data layer as MCP tools.
type Server struct {
	store     store.Store
	git       gitutil.Client
	registry  *analyzer.Registry
	invoker   analyzer.Invoker
	backupDir string
	base      pipeline.Config
}

// NewServer creates the MCP server wrapper with all required
// dependencies. base supplies the timeouts, size guard, and worker
// count; its mode is overridden per tool call.
func NewServer(s store.Store, gc gitutil.Client, reg *analyzer.Registry, inv analyzer.Invoker, backupDir string, base pipeline.Config) *Server {
	return &Server{
		store:     s,
		git:       gc,
		registry:  reg,
		invoker:   inv,
		backupDir: backupDir,
		base:      base,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("polish", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.runTool())
	srv.AddTool(s.previewTool())
	srv.AddTool(s.listAnalyzersTool())
	srv.AddTool(s.historyTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// coordinator builds a pipeline coordinator for one tool call.
func (s *Server) coordinator(mode decision.Mode) *pipeline.Coordinator {
	cfg := s.base
	cfg.Mode = mode
	cfg.DefaultAction = decision.ActionSkip

	ui := &output.UI{Out: os.Stderr, ErrOut: os.Stderr}
	return &pipeline.Coordinator{
		Config:   cfg,
		Registry: s.registry,
		Invoker:  s.invoker,
		UI:       ui,
		Controller: &decision.Controller{
			Mode:          mode,
			Timeout:       cfg.PromptTimeout,
			DefaultAction: cfg.DefaultAction,
			Committer:     &patch.Committer{BackupDir: s.backupDir},
			Priority:      s.registry.Priority,
			UI:            ui,
		},
	}
}

// resolveFiles expands the files argument, falling back to the staged
// files of the current repository when none are given.
func (s *Server) resolveFiles(request mcp.CallToolRequest) ([]string, error) {
	files := request.GetStringSlice("files", nil)
	if len(files) > 0 {
		return files, nil
	}
	if s.git == nil {
		return nil, fmt.Errorf("no files given and no git client available")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := s.git.RepoRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("no files given and not in a git repository: %w", err)
	}
	return s.git.StagedFiles(root)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// polish_run
func (s *Server) runTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("polish_run",
		mcp.WithDescription("Run the configured analyzers over files and apply their suggestions. Mode auto applies everything; mode preview only reports what would change. Defaults to the staged files of the current repository when no files are given. Returns a JSON run summary."),
		mcp.WithString("mode", mcp.Description("Run mode: auto or preview (default: preview)")),
		mcp.WithArray("files", mcp.Description("File paths to process (default: staged files)"), mcp.WithStringItems()),
	)
	return tool, s.handleRun
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modeStr := request.GetString("mode", string(decision.ModePreview))
	mode, err := decision.ParseMode(modeStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch mode {
	case decision.ModeAuto, decision.ModePreview:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("mode %q is not available over MCP; use auto or preview", mode)), nil
	}

	files, err := s.resolveFiles(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText(`{"files_total":0,"message":"nothing to process"}`), nil
	}

	summary, err := s.coordinator(mode).Run(ctx, files)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}

	s.persist(ctx, summary)

	type fileOut struct {
		Path    string `json:"path"`
		Outcome string `json:"outcome"`
		Total   int    `json:"total"`
		Applied int    `json:"applied"`
		Dropped int    `json:"dropped"`
		Backup  string `json:"backup,omitempty"`
		Message string `json:"message,omitempty"`
	}
	out := make([]fileOut, len(summary.Files))
	for i, rec := range summary.Files {
		out[i] = fileOut{
			Path:    rec.Path,
			Outcome: string(rec.Outcome),
			Total:   rec.Total,
			Applied: rec.Applied,
			Dropped: rec.Dropped,
			Backup:  rec.BackupPath,
			Message: rec.Message,
		}
	}

	result := map[string]any{
		"mode":                mode,
		"files_total":         summary.FilesTotal,
		"files_applied":       summary.FilesApplied,
		"files_clean":         summary.FilesClean,
		"files_skipped":       summary.FilesSkipped,
		"files_errored":       summary.FilesErrored,
		"suggestions_applied": summary.SuggestionsApplied,
		"suggestions_dropped": summary.SuggestionsDropped,
		"elapsed_ms":          summary.Elapsed.Milliseconds(),
		"files":               out,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// polish_preview
func (s *Server) previewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("polish_preview",
		mcp.WithDescription("Analyze one file and return its suggestions plus a unified-style diff of what applying them would change. Never modifies the file."),
		mcp.WithString("file", mcp.Required(), mcp.Description("File path to analyze")),
	)
	return tool, s.handlePreview
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: file"), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", file, err)), nil
	}
	content := string(data)

	var results []*analyzer.Result
	for _, def := range s.registry.Enabled() {
		results = append(results, s.invoker.Invoke(ctx, def, file, s.base.AnalyzerTimeout))
	}

	report := decision.BuildReport(file, content, results)

	type suggestionOut struct {
		ID          string `json:"id"`
		Analyzer    string `json:"analyzer"`
		Category    string `json:"category"`
		Severity    string `json:"severity"`
		Lines       string `json:"lines"`
		Rationale   string `json:"rationale"`
		Replacement string `json:"replacement"`
	}
	suggestions := make([]suggestionOut, len(report.Suggestions))
	for i, sg := range report.Suggestions {
		suggestions[i] = suggestionOut{
			ID:          sg.ID,
			Analyzer:    sg.Analyzer,
			Category:    string(sg.Category),
			Severity:    string(sg.Severity),
			Lines:       sg.Lines.String(),
			Rationale:   sg.Rationale,
			Replacement: sg.ReplacementText,
		}
	}

	var diff string
	if len(report.Suggestions) > 0 {
		res := patch.Apply(content, report.Suggestions, s.registry.Priority)
		if res.Changed {
			diff = output.Diff(file, content, res.NewContent)
		}
	}

	result := map[string]any{
		"file":        file,
		"status":      string(report.Status),
		"suggestions": suggestions,
		"diff":        diff,
	}
	for _, res := range results {
		if res.Diagnostic != "" {
			result["diagnostics"] = diagnostics(results)
			break
		}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal preview: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// polish_list_analyzers
func (s *Server) listAnalyzersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("polish_list_analyzers",
		mcp.WithDescription("List the configured analyzers in priority order. Returns a JSON array with name, command, and enabled flag."),
	)
	return tool, s.handleListAnalyzers
}

func (s *Server) handleListAnalyzers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type analyzerOut struct {
		Name     string   `json:"name"`
		Command  string   `json:"command"`
		Args     []string `json:"args,omitempty"`
		Enabled  bool     `json:"enabled"`
		Priority int      `json:"priority"`
	}

	var out []analyzerOut
	for _, def := range s.registry.All() {
		out = append(out, analyzerOut{
			Name:     def.Name,
			Command:  def.Command,
			Args:     def.Args,
			Enabled:  !def.Disabled,
			Priority: s.registry.Priority(def.Name),
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal analyzers: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// polish_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("polish_history",
		mcp.WithDescription("List recent runs, or the per-file results of one run when run_id is given. Returns JSON."),
		mcp.WithString("run_id", mcp.Description("Run ID to expand into per-file results")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run history is not available"), nil
	}

	if runID := request.GetString("run_id", ""); runID != "" {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
		}
		files, err := s.store.ListFileResults(ctx, run.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list file results: %v", err)), nil
		}

		type fileOut struct {
			Path    string `json:"path"`
			Outcome string `json:"outcome"`
			Total   int    `json:"total"`
			Applied int    `json:"applied"`
			Dropped int    `json:"dropped"`
			Backup  string `json:"backup,omitempty"`
			Message string `json:"message,omitempty"`
		}
		out := make([]fileOut, len(files))
		for i, f := range files {
			out[i] = fileOut{
				Path:    f.Path,
				Outcome: string(f.Outcome),
				Total:   f.Total,
				Applied: f.Applied,
				Dropped: f.Dropped,
				Backup:  f.BackupPath,
				Message: f.Message,
			}
		}

		result := map[string]any{
			"run_id":     run.ID,
			"mode":       run.Mode,
			"started_at": run.StartedAt.Format(time.RFC3339),
			"files":      out,
		}
		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal run: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	limit := request.GetInt("limit", 20)
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID                 string `json:"id"`
		Mode               string `json:"mode"`
		StartedAt          string `json:"started_at"`
		FilesTotal         int    `json:"files_total"`
		FilesApplied       int    `json:"files_applied"`
		FilesErrored       int    `json:"files_errored"`
		SuggestionsApplied int    `json:"suggestions_applied"`
	}
	out := make([]runOut, len(runs))
	for i, r := range runs {
		out[i] = runOut{
			ID:                 r.ID,
			Mode:               r.Mode,
			StartedAt:          r.StartedAt.Format(time.RFC3339),
			FilesTotal:         r.FilesTotal,
			FilesApplied:       r.FilesApplied,
			FilesErrored:       r.FilesErrored,
			SuggestionsApplied: r.SuggestionsApplied,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// persist records the run and its per-file results, best-effort.
func (s *Server) persist(ctx context.Context, summary *pipeline.RunSummary) {
	if s.store == nil {
		return
	}
	cwd, _ := os.Getwd()
	run := summary.Run(cwd)
	if err := s.store.CreateRun(ctx, run); err != nil {
		return
	}
	for _, rec := range summary.Files {
		rec.RunID = run.ID
		_ = s.store.CreateFileResult(ctx, rec)
	}
}

func diagnostics(results []*analyzer.Result) []string {
	var out []string
	for _, res := range results {
		if res.Diagnostic != "" {
			out = append(out, fmt.Sprintf("%s: %s", res.Analyzer, res.Diagnostic))
		}
	}
	return out
}
