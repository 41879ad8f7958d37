package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolQuery     = "query"
	ToolVectorise = "vectorise"
	ToolList      = "ls"
)

// queryTool returns the tool definition for query
func queryTool() mcp.Tool {
	return mcp.Tool{
		Name: ToolQuery,
		Description: "Retrieve files from a vectorised project that are relevant to the query. " +
			"Returns the path and full content of each file, most relevant first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "array",
					"description": "Query keywords or sentences; each entry is searched and the results are merged",
					"items": map[string]interface{}{
						"type": "string",
					},
					"minItems": 1,
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the vectorised project",
				},
				"n_result": map[string]interface{}{
					"type":        "integer",
					"description": "Number of files to return; defaults to the project's n_result setting",
					"minimum":     1,
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Files or glob patterns, relative to project_root, that must not be returned",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"absolute": map[string]interface{}{
					"type":        "boolean",
					"description": "Return absolute paths instead of paths relative to project_root",
					"default":     false,
				},
			},
			Required: []string{"query", "project_root"},
		},
	}
}

// vectoriseTool returns the tool definition for vectorise
func vectoriseTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolVectorise,
		Description: "Add files of a project to its vector collection so they can be queried",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project",
				},
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Files, directories or glob patterns to vectorise; defaults to the whole project",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Descend into subdirectories of the given directories",
					"default":     true,
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Include files matched by .gitignore and vendored paths",
					"default":     false,
				},
			},
			Required: []string{"project_root"},
		},
	}
}

// listTool returns the tool definition for ls
func listTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolList,
		Description: "List the vectorised projects of the current user on this machine",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
