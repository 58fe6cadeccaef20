package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/ops"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store    store.Backend
	ingester *ops.Ingester
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(s store.Backend, ing *ops.Ingester) *Handlers {
	return &Handlers{store: s, ingester: ing}
}

// Request types for each tool

// IngestRequest represents the arguments for signature_ingest. The
// submission stays raw so it goes through the same tolerant decoding as
// HTTP bodies.
type IngestRequest struct {
	Submission json.RawMessage `json:"submission"`
}

// FetchRequest represents the arguments for signature_fetch.
type FetchRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for signature_list.
type ListRequest struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// AuthorRequest represents the arguments for author_fetch.
type AuthorRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// HandleIngest handles the signature_ingest tool call.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if len(input.Submission) == 0 {
		return errorResult(errors.NewInvalidRequest("submission is required")), nil
	}

	sub, err := record.ParseSubmission(input.Submission)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.ingester.Ingest(ctx, sub)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result.Response())
}

// HandleFetch handles the signature_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Fetch(ctx, h.store, ops.FetchInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the signature_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAuthor handles the author_fetch tool call.
func (h *Handlers) HandleAuthor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AuthorRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Author(ctx, h.store, input.Fingerprint)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAuthors handles the author_list tool call.
func (h *Handlers) HandleAuthors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Authors(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleOverview handles the signature_overview tool call.
func (h *Handlers) HandleOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Overview(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTrusted handles the trusted_list tool call.
func (h *Handlers) HandleTrusted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.TrustedDomains(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	sErr := errors.As(err)

	errorObj := map[string]any{
		"code":    sErr.Code,
		"message": sErr.Message,
		"status":  sErr.Status,
	}
	// Internal and persistence details carry file paths and driver errors
	if !sErr.Private() && sErr.Details != nil {
		errorObj["details"] = sErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
