package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/ops"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store"
	"github.com/sisilabsai/thesignal/internal/testutil"
)

// testSetup creates an in-memory store, ingester and config for testing.
func testSetup(t *testing.T) (*Handlers, *config.Config) {
	t.Helper()
	s := store.NewMemoryStore()
	ing := ops.NewIngester(s, ops.WithClock(testutil.TickingClock(1e9).Now))
	return NewHandlers(s, ing), config.DefaultConfig()
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// submissionArg converts a submission to the generic form a client sends.
func submissionArg(t *testing.T, sub *record.Submission) map[string]any {
	t.Helper()
	data, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal submission: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal submission: %v", err)
	}
	return m
}

// ingest stores a submission through the tool and returns the record id.
func ingest(t *testing.T, h *Handlers, sub *record.Submission) string {
	t.Helper()
	result, err := h.HandleIngest(context.Background(), makeRequest(map[string]any{"submission": submissionArg(t, sub)}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func TestHandleIngest(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	signer := testutil.NewSigner(t)

	valid := signer.Submission(t, "https://example.com/a", "A", "Hello world")
	tampered := signer.Submission(t, "https://example.com/b", "B", "Hello world")
	tampered.Title = "changed"

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "valid submission",
			args:      map[string]any{"submission": submissionArg(t, valid)},
			wantError: false,
		},
		{
			name:      "identical resubmission",
			args:      map[string]any{"submission": submissionArg(t, valid)},
			wantError: false,
		},
		{
			name:      "missing submission",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "submission not an object",
			args:      map[string]any{"submission": "text"},
			wantError: true,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "wrong field types",
			args:      map[string]any{"submission": map[string]any{"version": "signal-v1", "url": 7}},
			wantError: true,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "tampered submission",
			args:      map[string]any{"submission": submissionArg(t, tampered)},
			wantError: true,
			errorCode: "INVALID_SIGNATURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleIngest(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}

	all, err := ops.List(ctx, h.store, ops.ListInput{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 1 {
		t.Errorf("stored records = %d, want 1", all.Total)
	}
}

func TestHandleIngest_SemanticDuplicate(t *testing.T) {
	h, _ := testSetup(t)
	signer := testutil.NewSigner(t)
	id := ingest(t, h, signer.Submission(t, "https://example.com/a", "A", "Hello world"))

	again := signer.SubmissionAt(t, "https://example.com/a", "A", "Hello world", "2025-01-01")
	again.Author = &record.AuthorInput{Name: "Ada"}
	result, err := h.HandleIngest(context.Background(), makeRequest(map[string]any{"submission": submissionArg(t, again)}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["id"] != id {
		t.Errorf("id = %v, want %s", out["id"], id)
	}
	if out["duplicate"] != true {
		t.Errorf("duplicate = %v, want true", out["duplicate"])
	}
}

func TestHandleFetch(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	id := ingest(t, h, testutil.NewSigner(t).Submission(t, "https://example.com/a", "A", "Hello world"))

	result, err := h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["canonicalMessage"] == nil {
		t.Error("fetch should include canonicalMessage")
	}

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": "missing"}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": 12}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleList(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	signer := testutil.NewSigner(t)
	for i := range 3 {
		ingest(t, h, signer.Submission(t, fmt.Sprintf("https://example.com/%d", i), "Title", fmt.Sprintf("excerpt %d", i)))
	}

	result, err := h.HandleList(ctx, makeRequest(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["total"] != float64(3) {
		t.Errorf("total = %v, want 3", out["total"])
	}
	if items := out["items"].([]any); len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}
	pagination := out["pagination"].(map[string]any)
	if pagination["has_more"] != true {
		t.Errorf("has_more = %v, want true", pagination["has_more"])
	}

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{"query": "excerpt 1"}))
	if out := parseOutput(t, result); out["total"] != float64(1) {
		t.Errorf("query total = %v, want 1", out["total"])
	}

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{"limit": "ten"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleAuthor(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	signer := testutil.NewSigner(t)
	sub := signer.Submission(t, "https://example.com/a", "A", "Hello world")
	sub.Author = &record.AuthorInput{Name: "Ada", Bio: "Mathematician"}
	ingest(t, h, sub)

	result, err := h.HandleAuthor(ctx, makeRequest(map[string]any{"fingerprint": signer.Fingerprint(t)}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	author := out["author"].(map[string]any)
	if author["name"] != "Ada" {
		t.Errorf("author = %v", author)
	}

	result, _ = h.HandleAuthor(ctx, makeRequest(map[string]any{"fingerprint": "ffff"}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleAuthorsAndOverview(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	a := testutil.NewSigner(t)
	b := testutil.NewSigner(t)
	ingest(t, h, a.Submission(t, "https://example.com/1", "One", "one"))
	ingest(t, h, a.Submission(t, "https://example.com/2", "Two", "two"))
	ingest(t, h, b.Submission(t, "https://example.com/3", "Three", "three"))

	result, err := h.HandleAuthors(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	items := out["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("authors = %d, want 2", len(items))
	}
	top := items[0].(map[string]any)
	if top["fingerprint"] != a.Fingerprint(t) || top["count"] != float64(2) {
		t.Errorf("top author = %v", top)
	}

	result, err = h.HandleOverview(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out = parseOutput(t, result)
	if out["records"] != float64(3) || out["authors"] != float64(2) {
		t.Errorf("overview = %v", out)
	}
}

func TestHandleTrusted(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleTrusted(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if domains := parseOutput(t, result)["domains"].([]any); len(domains) != 0 {
		t.Errorf("domains = %v, want empty", domains)
	}

	if _, err := ops.Trust(ctx, h.store, "https://www.news.example/a"); err != nil {
		t.Fatalf("Trust() error = %v", err)
	}
	result, err = h.HandleTrusted(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	domains := parseOutput(t, result)["domains"].([]any)
	if len(domains) != 1 || domains[0] != "news.example" {
		t.Errorf("domains = %v, want [news.example]", domains)
	}
}

func TestServerRegistration(t *testing.T) {
	h, cfg := testSetup(t)

	s := NewServer(h.store, h.ingester, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"signature_ingest",
		"signature_fetch",
		"signature_list",
		"author_fetch",
		"author_list",
		"signature_overview",
		"trusted_list",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = []string{"signature_ingest", "author_list", "author_list"}
	tools := NewServer(h.store, h.ingester, cfg, "test").ListTools()

	if len(tools) != 5 {
		t.Errorf("registered tool count = %d, want 5", len(tools))
	}
	for _, name := range []string{"signature_ingest", "author_list"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	tools := NewServer(h.store, h.ingester, cfg, "test").ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"signature_ingest", "author_list"}, 0},
		{"one unknown", []string{"signature_ingest", "signature_delete"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 7 {
		t.Errorf("AllToolNames() returned %d names, want 7", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_PersistenceDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewPersistence(fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrPersistence) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrPersistence)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected PERSISTENCE errors to omit details")
	}
	if msg, _ := errObj["message"].(string); strings.Contains(msg, "10.0.0.5") {
		t.Errorf("message leaks the backend cause: %q", msg)
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	r := errorResult(fmt.Errorf("ingest: %w", errors.NewInvalidSignature()))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInvalidSignature) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidSignature)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewValidationFailed([]string{"Invalid url"}))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrValidationFailed) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrValidationFailed)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestDecode(t *testing.T) {
	got, err := decode[ListRequest](makeRequest(map[string]any{"query": "go", "limit": 5}))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if got.Query != "go" || got.Limit != 5 {
		t.Errorf("decode() = %+v", got)
	}

	_, err = decode[FetchRequest](makeRequest(map[string]any{"id": 12}))
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("decode() error = %v, want INVALID_REQUEST", err)
	}
	if msg := errors.As(err).Message; msg != "invalid id" {
		t.Errorf("message = %q, want %q", msg, "invalid id")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error %s, got success", expectedCode)
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("error code = %v, want %s", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}
