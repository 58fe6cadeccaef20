package mcp

import "github.com/mark3labs/mcp-go/mcp"

var ingestToolDef = mcp.NewTool("signature_ingest",
	mcp.WithDescription("Verify a signed excerpt and store it. Identical resubmissions return the existing record; "+
		"a resubmission of the same url and content by the same key returns the existing record and refreshes its author profile."),
	mcp.WithObject("submission",
		mcp.Required(),
		mcp.Description("Signed payload: version, url, title, excerpt, createdAt, contentHash, publicKey, signature, optional author {name, handle, url, bio}"),
	),
	mcp.WithDestructiveHintAnnotation(false),
)

var fetchToolDef = mcp.NewTool("signature_fetch",
	mcp.WithDescription("Fetch one stored signature record by id, including its canonical message and key material."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("signature_list",
	mcp.WithDescription("Search stored signatures, newest first. The query matches title, excerpt and url case-insensitively."),
	mcp.WithString("query", mcp.Description("Substring to search for")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 50, max 200)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var authorFetchToolDef = mcp.NewTool("author_fetch",
	mcp.WithDescription("List every record signed by one key, identified by its fingerprint (hex SHA-256 of the public key)."),
	mcp.WithString("fingerprint", mcp.Required(), mcp.Description("Key fingerprint")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var authorListToolDef = mcp.NewTool("author_list",
	mcp.WithDescription("Aggregate records by signing key: count, latest profile and last seen time, most prolific first."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var overviewToolDef = mcp.NewTool("signature_overview",
	mcp.WithDescription("Totals for the record collection: records, distinct keys, records with a profile."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var trustedListToolDef = mcp.NewTool("trusted_list",
	mcp.WithDescription("List the trusted publisher domains, sorted. Hosts are lowercase without a leading www."),
	mcp.WithReadOnlyHintAnnotation(true),
)
