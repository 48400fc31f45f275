// Package mcp exposes the instance's local error knowledge as MCP tools so
// editor assistants can capture errors and look up fixes in-session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"errorshare/backend/internal/config"
	"errorshare/backend/internal/localstore"
	"errorshare/backend/internal/normalize"
	"errorshare/backend/internal/similarity"
	"errorshare/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	store     *localstore.Store
	matcher   *similarity.Matcher
}

func NewServer(store *localstore.Store, simCfg config.SimilarityConfig) *Server {
	scorer := similarity.Scorer{
		CategoryBonus:  simCfg.CategoryBonus,
		LanguageBonus:  simCfg.LanguageBonus,
		FrameworkBonus: simCfg.FrameworkBonus,
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"ErrorShare",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		store:   store,
		matcher: similarity.NewMatcher(store, scorer, simCfg.MinScore, simCfg.CandidatePool),
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"capture_error",
			mcp.WithDescription("Anonymize and record an error message in the local knowledge base"),
			mcp.WithString("message", mcp.Required(), mcp.Description("The raw error message")),
			mcp.WithString("category", mcp.Required(), mcp.Description("Error category, e.g. import_error")),
			mcp.WithString("language", mcp.Required(), mcp.Description("Programming language the error occurred in")),
			mcp.WithString("framework", mcp.Description("Framework, if relevant")),
		),
		s.handleCaptureError,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"find_similar",
			mcp.WithDescription("Find locally known error patterns similar to a message"),
			mcp.WithString("message", mcp.Required(), mcp.Description("The error message to match")),
			mcp.WithString("language", mcp.Description("Restrict matches to one language")),
		),
		s.handleFindSimilar,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"record_solution",
			mcp.WithDescription("Record a fix for a captured error pattern"),
			mcp.WithString("signature", mcp.Required(), mcp.Description("The pattern signature the fix applies to")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short name for the fix")),
			mcp.WithString("description", mcp.Required(), mcp.Description("What to do")),
			mcp.WithString("code_snippet", mcp.Description("Optional code for the fix")),
		),
		s.handleRecordSolution,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"record_feedback",
			mcp.WithDescription("Report whether a solution worked"),
			mcp.WithString("solution_id", mcp.Required(), mcp.Description("The solution that was tried")),
			mcp.WithBoolean("was_helpful", mcp.Required(), mcp.Description("Whether it fixed the problem")),
		),
		s.handleRecordFeedback,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"known_solutions",
			mcp.WithDescription("List local and cached community solutions for a pattern signature"),
			mcp.WithString("signature", mcp.Required(), mcp.Description("The pattern signature")),
		),
		s.handleKnownSolutions,
	)
}

func (s *Server) handleCaptureError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	message, ok := args["message"].(string)
	if !ok || message == "" {
		return mcp.NewToolResultError("Missing required parameter: message"), nil
	}
	category, ok := args["category"].(string)
	if !ok || category == "" {
		return mcp.NewToolResultError("Missing required parameter: category"), nil
	}
	language, ok := args["language"].(string)
	if !ok || language == "" {
		return mcp.NewToolResultError("Missing required parameter: language"), nil
	}

	pattern := &models.Pattern{
		Signature:   normalize.Signature(category, message),
		Category:    category,
		Language:    language,
		Description: normalize.Message(message),
		Anonymized:  true,
		Severity:    models.SeverityMedium,
	}
	if framework, ok := args["framework"].(string); ok && framework != "" {
		pattern.Framework = &framework
	}

	stored, err := s.store.Capture(ctx, pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to capture: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(stored)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	message, ok := args["message"].(string)
	if !ok || message == "" {
		return mcp.NewToolResultError("Missing required parameter: message"), nil
	}
	language, _ := args["language"].(string)

	matches, err := s.matcher.Match(ctx, similarity.Query{
		Description: normalize.Message(message),
		Language:    language,
	}, 10)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(matches)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRecordSolution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	signature, ok := args["signature"].(string)
	if !ok || signature == "" {
		return mcp.NewToolResultError("Missing required parameter: signature"), nil
	}
	title, ok := args["title"].(string)
	if !ok || title == "" {
		return mcp.NewToolResultError("Missing required parameter: title"), nil
	}
	description, ok := args["description"].(string)
	if !ok || description == "" {
		return mcp.NewToolResultError("Missing required parameter: description"), nil
	}

	solution := &models.Solution{
		PatternSignature: signature,
		Title:            title,
		Description:      description,
	}
	if snippet, ok := args["code_snippet"].(string); ok && snippet != "" {
		solution.CodeSnippet = &snippet
	}

	stored, err := s.store.RecordSolution(ctx, solution)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to record solution: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(stored)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRecordFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	solutionID, ok := args["solution_id"].(string)
	if !ok || solutionID == "" {
		return mcp.NewToolResultError("Missing required parameter: solution_id"), nil
	}
	wasHelpful, ok := args["was_helpful"].(bool)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: was_helpful"), nil
	}

	_, err := s.store.RecordFeedback(ctx, &models.Feedback{
		SolutionID: solutionID,
		WasHelpful: wasHelpful,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to record feedback: %v", err)), nil
	}

	return mcp.NewToolResultText("Feedback recorded"), nil
}

func (s *Server) handleKnownSolutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	signature, ok := args["signature"].(string)
	if !ok || signature == "" {
		return mcp.NewToolResultError("Missing required parameter: signature"), nil
	}

	local, err := s.store.SolutionsForPattern(ctx, signature)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list solutions: %v", err)), nil
	}
	cached, err := s.store.KnownSolutions(ctx, signature)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read cache: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(map[string]any{
		"local":  local,
		"cached": cached,
	})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
