package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher is the part of the DuckDuckGo client the tool uses.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

type SearchTool struct {
	client Searcher
}

func NewSearchTool() (*SearchTool, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

func (s *SearchTool) Name() string {
	return "search"
}

func (s *SearchTool) Description() string {
	return "Search the web using DuckDuckGo for real-time information. Returns {query, results}."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, errors.New("query is required")
	}

	res, err := s.client.Call(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return map[string]any{"query": in.Query, "results": res}, nil
}
