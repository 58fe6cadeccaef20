package mcp

import (
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sisilabsai/thesignal/internal/errors"
)

// decode unmarshals MCP request arguments into a typed struct. Arguments of
// the wrong shape yield an INVALID_REQUEST error.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest("arguments are not valid JSON")
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest("invalid " + typeErr.Field)
		}
		return result, errors.NewInvalidRequest("invalid arguments")
	}
	return result, nil
}
