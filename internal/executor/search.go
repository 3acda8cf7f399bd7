package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/searchpool/searchpool-go/internal/serp"
)

// DefaultSystemMessage is the built-in system prompt for search runs.
// Workers are stateless and isolated; each run carries the full context.
const DefaultSystemMessage = "You are Search Agent, a specialist responsible for web searching and " +
	"information retrieval. Use the web_search tool to find information on the " +
	"user's behalf and provide comprehensive, accurate results.\n" +
	"VERBOSITY & DATA FIDELITY: Your goal is to be a COMPREHENSIVE researcher.\n" +
	"- MAXIMIZE INFORMATION DENSITY: when extracting attributes, prefer preserving " +
	"the full richness of the source text over simplifying it into categories. " +
	"Your job is to transport information, not compress it.\n" +
	"- PRESERVE NUANCE: if a source provides a complex, multi-faceted description, " +
	"include those details. Do not flatten complex descriptions into generic tags.\n" +
	"- Do not simplify unless explicitly asked. Include 1-2 sentences of context " +
	"so the full meaning is retained.\n" +
	"If a requested constraint cannot be verified, explicitly state \"Not found\" " +
	"for that constraint instead of returning a partial answer.\n" +
	"BROWSER ESCALATION: if you find relevant URLs but cannot extract the needed " +
	"information (JavaScript-heavy pages, login walls, content in images or PDFs), " +
	"include in your response: '[BROWSER_RECOMMENDED] <url1>, <url2>, ...'.\n" +
	"Optionally include 1-3 key source URLs in your answer."

const searchToolName = "web_search"

// searcher is the web lookup dependency of a SearchExecutor.
// *serp.Client satisfies it; tests substitute fakes.
type searcher interface {
	Search(ctx context.Context, query string) (*serp.Results, error)
}

// SearchExecutor runs one search query to completion using a chat model
// with a web_search tool. It is stateless: each Execute call is independent.
type SearchExecutor struct {
	cfg      Config
	client   *openai.Client
	search   searcher
	maxTurns int
}

// NewSearchExecutor creates a search executor. The model client and search
// client are created in Start so that pool initialization surfaces
// credential problems before any task runs.
func NewSearchExecutor(cfg Config) (*SearchExecutor, error) {
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-mini"
	}
	if cfg.SystemMessage == "" {
		cfg.SystemMessage = DefaultSystemMessage
	}
	return &SearchExecutor{cfg: cfg, maxTurns: DefaultMaxTurns}, nil
}

// Start builds the model client and the search client.
func (e *SearchExecutor) Start(ctx context.Context) error {
	apiKey := e.cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return &ExecutionError{Name: e.cfg.Name, Op: "start", Err: fmt.Errorf("OPENAI_API_KEY is not set")}
	}

	clientCfg := openai.DefaultConfig(apiKey)
	baseURL := e.cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	e.client = openai.NewClientWithConfig(clientCfg)

	if e.search == nil {
		opts := []serp.Option{}
		if e.cfg.MaxSearchResults > 0 {
			opts = append(opts, serp.WithNumResults(e.cfg.MaxSearchResults))
		}
		sc, err := serp.NewClient(e.cfg.SerpAPIKey, opts...)
		if err != nil {
			return &ExecutionError{Name: e.cfg.Name, Op: "start", Err: err}
		}
		e.search = sc
	}
	return nil
}

// Execute runs the tool-calling loop for one query and returns the final
// assistant message.
func (e *SearchExecutor) Execute(ctx context.Context, query string) (string, error) {
	if e.client == nil || e.search == nil {
		return "", &ExecutionError{Name: e.cfg.Name, Op: "execute", Err: fmt.Errorf("executor not started")}
	}

	ctx, cancel := applyTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: e.cfg.SystemMessage},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}

	for turn := 0; turn < e.maxTurns; turn++ {
		req := openai.ChatCompletionRequest{
			Model:    e.cfg.Model,
			Messages: messages,
			Tools:    []openai.Tool{searchToolDefinition()},
		}
		if e.cfg.Reasoning != "" {
			req.ReasoningEffort = e.cfg.Reasoning
		}

		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", &ExecutionError{Name: e.cfg.Name, Op: "chat completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &ExecutionError{Name: e.cfg.Name, Op: "chat completion", Err: fmt.Errorf("response has no choices")}
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result, err := e.runToolCall(ctx, call)
			if err != nil {
				// Feed tool failures back to the model so it can
				// rephrase or answer from what it already has.
				result = fmt.Sprintf("tool error: %v", err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result,
			})
		}
	}

	return "", &ExecutionError{Name: e.cfg.Name, Op: "execute", Err: fmt.Errorf("no final answer after %d turns", e.maxTurns)}
}

// Cleanup releases executor resources. The model client is stateless, so
// there is nothing to tear down; kept for the capability contract.
func (e *SearchExecutor) Cleanup(ctx context.Context) error {
	return nil
}

func (e *SearchExecutor) runToolCall(ctx context.Context, call openai.ToolCall) (string, error) {
	if call.Function.Name != searchToolName {
		return "", fmt.Errorf("unknown tool: %s", call.Function.Name)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", searchToolName, err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("%s requires a non-empty query", searchToolName)
	}

	results, err := e.search.Search(ctx, args.Query)
	if err != nil {
		return "", err
	}
	return results.Format(), nil
}

func searchToolDefinition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        searchToolName,
			Description: "Search the web and return formatted results with titles, snippets, and links.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
