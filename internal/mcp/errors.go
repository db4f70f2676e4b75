// Package mcp exposes contract review as MCP (Model Context Protocol) tools,
// so AI assistants can parse risk responses and review contracts.
package mcp

import "errors"

var (
	// ErrMissingFactory is returned when no session factory is provided.
	ErrMissingFactory = errors.New("mcp: session factory is required")

	// ErrMissingPath is returned when a tool that reads a contract gets no path.
	ErrMissingPath = errors.New("mcp: path is required")
)
