package search

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/yae-assistant/yae/internal/llm"
)

const (
	toolName        = "web_search"
	toolDescription = "A powerful web search tool that provides comprehensive, real-time results using LinkUp's AI " +
		"search engine. Ideal for gathering current information, news, and detailed web content analysis."

	badArgumentsText = "The search query is missing."
)

// Arguments are the parameters the model passes to the tool.
type Arguments struct {
	Query string `json:"query" jsonschema:"description=The search query."`
}

// Tool exposes a LinkUp client to the model.
type Tool struct {
	linkup *LinkUp
	schema *jsonschema.Schema
}

// NewTool wraps linkup as an llm.Tool.
func NewTool(linkup *LinkUp) *Tool {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(&Arguments{})
	schema.Version = ""

	return &Tool{linkup: linkup, schema: schema}
}

var _ llm.Tool = (*Tool)(nil)

// Definition describes the tool to the model.
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        toolName,
		Description: toolDescription,
		Parameters:  t.schema,
	}
}

// Call runs a search with the JSON-encoded arguments.
func (t *Tool) Call(ctx context.Context, arguments string) string {
	var args Arguments
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return badArgumentsText
	}
	return t.linkup.Search(ctx, args.Query)
}
