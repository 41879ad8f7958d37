package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vectorcode/internal/app"
	"github.com/dshills/vectorcode/internal/config"
	"github.com/dshills/vectorcode/internal/output"
	"github.com/dshills/vectorcode/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound     = -32001 // project_root is not a readable directory
	ErrorCodeIndexingInProgress  = -32002 // Another vectorise run is active for the project
	ErrorCodeNotIndexed          = -32003 // Project has no collection
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
	ErrorCodeRerankerUnavailable = -32005 // Configured reranker cannot be used
	ErrorCodeEmbeddingMismatch   = -32006 // Collection was built with another embedding function
)

// handleQuery handles the query tool invocation
func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := projectRoot(args)
	if err != nil {
		return nil, err
	}

	queries := getStrings(args, "query")
	if len(queries) == 0 {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	cfg, err := s.app.ProjectConfig(root)
	if err != nil {
		return nil, mapError("failed to load project config", err)
	}

	var overrides config.Overrides
	if n, ok := getInt(args, "n_result"); ok {
		overrides.NResult = &n
	}
	overrides.Exclude = getStrings(args, "exclude")

	queryCfg := *cfg
	queryCfg.MergeFrom(overrides)
	if err := queryCfg.Validate(); err != nil {
		return nil, mapError("invalid query parameters", err)
	}

	resp, err := s.app.Query(ctx, &queryCfg, queries, getBoolDefault(args, "absolute", false))
	if err != nil {
		return nil, mapError("query failed", err)
	}

	var buf bytes.Buffer
	if err := output.New(&buf, true).Results(resp.Results); err != nil {
		return nil, mapError("failed to encode results", err)
	}

	response := map[string]interface{}{
		"results":     json.RawMessage(bytes.TrimSpace(buf.Bytes())),
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.NoData {
		response["message"] = "Empty collection!"
	}
	if len(resp.Stale) > 0 {
		response["stale"] = resp.Stale
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleVectorise handles the vectorise tool invocation
func (s *Server) handleVectorise(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := projectRoot(args)
	if err != nil {
		return nil, err
	}

	lock := s.lock(root)
	if !lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "vectorise already in progress for this project", map[string]interface{}{
			"project_root": root,
		})
	}
	defer lock.Release()

	cfg, err := s.app.ProjectConfig(root)
	if err != nil {
		return nil, mapError("failed to load project config", err)
	}

	stats, err := s.app.Vectorise(ctx, cfg, app.VectoriseOptions{
		Paths:     getStrings(args, "files"),
		Recursive: getBoolDefault(args, "recursive", true),
		Force:     getBoolDefault(args, "force", false),
	})
	if err != nil {
		return nil, mapError("vectorise failed", err)
	}

	response := map[string]interface{}{
		"project_root": root,
		"add":          stats.Add,
		"update":       stats.Update,
		"removed":      stats.Removed,
		"skipped":      stats.Skipped,
		"failed":       stats.Failed,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleList handles the ls tool invocation
func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.app.List(ctx)
	if err != nil {
		return nil, mapError("failed to list collections", err)
	}

	var buf bytes.Buffer
	if err := output.New(&buf, true).Collections(infos, ""); err != nil {
		return nil, mapError("failed to encode collections", err)
	}
	return mcp.NewToolResultText(string(bytes.TrimSpace(buf.Bytes()))), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// mapError converts a domain error to an MCPError with the matching code
func mapError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrNoCollection):
		code = ErrorCodeNotIndexed
	case errors.Is(err, types.ErrSchemaMismatch):
		code = ErrorCodeEmbeddingMismatch
	case errors.Is(err, types.ErrRerankerUnavailable):
		code = ErrorCodeRerankerUnavailable
	case errors.Is(err, types.ErrInvalidResultCount),
		errors.Is(err, types.ErrInvalidOverlap),
		errors.Is(err, config.ErrInvalidConfig):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// projectRoot extracts and validates the project_root argument
func projectRoot(args map[string]interface{}) (string, error) {
	root, ok := args["project_root"].(string)
	if !ok || root == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "project_root parameter is required", map[string]interface{}{
			"param":  "project_root",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(root); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotDirectory) {
			code = ErrorCodeProjectNotFound
		}
		return "", newMCPError(code, "invalid project_root", map[string]interface{}{
			"param":  "project_root",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(root), nil
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(out)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getInt extracts an integer parameter; JSON numbers arrive as float64
func getInt(args map[string]interface{}, key string) (int, bool) {
	switch val := args[key].(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	}
	return 0, false
}

// getStrings extracts a string array parameter. A single string is accepted as a one-element array.
func getStrings(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
