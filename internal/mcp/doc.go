// Package mcp implements the Model Context Protocol (MCP) server for vectorcode.
//
// The server exposes three tools to AI coding assistants:
//   - query: retrieve the files of a project most relevant to a set of queries
//   - vectorise: add files of a project to its collection
//   - ls: list the vectorised projects of the current user
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started by the serve command:
//
//	vectorcode serve
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: query
//
//	Request:
//	{
//	  "name": "query",
//	  "arguments": {
//	    "query": ["reranker", "mean distance"],
//	    "project_root": "/path/to/project",
//	    "n_result": 3,
//	    "exclude": ["README.md"]
//	  }
//	}
//
//	Response:
//	{
//	  "results": [{"path": "internal/rerank/rerank.go", "document": "..."}],
//	  "duration_ms": 41
//	}
//
// An empty collection yields an empty result list and the message
// "Empty collection!". Files that were indexed but have since been deleted
// are listed under "stale".
//
// # Tool: vectorise
//
//	Request:
//	{
//	  "name": "vectorise",
//	  "arguments": {"project_root": "/path/to/project", "files": ["src/**/*.go"]}
//	}
//
//	Response:
//	{"add": 12, "update": 1, "removed": 0, "skipped": 40, "failed": 0, ...}
//
// Only one vectorise run per project may be active; a second run fails with
// ErrorCodeIndexingInProgress.
//
// # Error Handling
//
// Handler failures are returned as *MCPError values. Domain errors map to
// codes: a project without a collection to ErrorCodeNotIndexed, a collection
// built with another embedding function to ErrorCodeEmbeddingMismatch and an
// unusable reranker to ErrorCodeRerankerUnavailable.
package mcp
