// Package manager plans subtasks for a research question, runs them as one
// batch, and synthesizes a final answer.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/executor"
)

const plannerSystemMessage = "You are the Search Manager. You coordinate a pool of stateless search " +
	"workers to retrieve information.\n" +
	"Split the user's question into independent search subtasks. Rules:\n" +
	"- Each subtask must be fully SELF-CONTAINED: repeat full entity names, " +
	"never refer to \"the list above\" or \"the same universities\".\n" +
	"- Write full natural-language questions or directives, not keyword blobs.\n" +
	"- Subtasks must be DISTINCT and ATOMIC: specific targets, no broad ranges.\n" +
	"- Use as few subtasks as the question allows.\n" +
	"Respond with ONLY a JSON array of subtask strings, no prose."

const synthesisSystemMessage = "You are the Search Manager. Combine the workers' findings into one " +
	"comprehensive answer to the user's question. Preserve specifics and " +
	"source URLs from the findings. If a subtask failed, say what is missing " +
	"rather than guessing."

// Manager coordinates planning, batch execution, and synthesis.
type Manager struct {
	client      *openai.Client
	model       string
	reasoning   string
	dispatcher  *dispatch.Dispatcher
	maxSubtasks int
	logw        executor.LogWriter
}

// Options configures a Manager.
type Options struct {
	Model     string
	Reasoning string
	APIKey    string
	BaseURL   string

	// MaxSubtasks caps the plan size; it should not exceed the pool
	// capacity or every plan above it would be rejected at admission.
	MaxSubtasks int

	// LogWriter receives plan and answer events. May be nil.
	LogWriter executor.LogWriter
}

// New creates a manager over the given dispatcher.
func New(d *dispatch.Dispatcher, opts Options) (*Manager, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("manager requires OPENAI_API_KEY")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	model := opts.Model
	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	if model == "" {
		model = "gpt-5-mini"
	}
	if opts.MaxSubtasks < 1 {
		opts.MaxSubtasks = 1
	}

	return &Manager{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		reasoning:   opts.Reasoning,
		dispatcher:  d,
		maxSubtasks: opts.MaxSubtasks,
		logw:        executor.NormalizeLogWriter(opts.LogWriter),
	}, nil
}

// Answer is the result of one managed question.
type Answer struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Subtasks []string         `json:"subtasks"`
	Batch    *dispatch.Result `json:"batch"`
}

// Ask plans subtasks for the question, executes them as one batch, and
// synthesizes the findings. Admission errors from the dispatcher propagate
// unchanged so callers can distinguish capacity problems from model errors.
func (m *Manager) Ask(ctx context.Context, question string) (*Answer, error) {
	subtasks, err := m.plan(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("plan subtasks: %w", err)
	}
	m.log(executor.LogEvent{
		Type:    "plan",
		Count:   len(subtasks),
		Content: strings.Join(subtasks, " | "),
	})

	batch, err := m.dispatcher.Execute(ctx, subtasks)
	if err != nil {
		return nil, err
	}

	answer, err := m.synthesize(ctx, question, batch)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	m.log(executor.LogEvent{Type: "answer", Content: answer})

	return &Answer{
		Question: question,
		Answer:   answer,
		Subtasks: subtasks,
		Batch:    batch,
	}, nil
}

func (m *Manager) plan(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf("Question: %s\n\nProduce at most %d subtasks.", question, m.maxSubtasks)
	content, err := m.chat(ctx, plannerSystemMessage, prompt)
	if err != nil {
		return nil, err
	}

	var subtasks []string
	if err := json.Unmarshal([]byte(stripFence(content)), &subtasks); err != nil {
		return nil, fmt.Errorf("parse plan %q: %w", content, err)
	}

	cleaned := make([]string, 0, len(subtasks))
	for _, s := range subtasks {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("plan produced no subtasks")
	}
	if len(cleaned) > m.maxSubtasks {
		cleaned = cleaned[:m.maxSubtasks]
	}
	return cleaned, nil
}

func (m *Manager) synthesize(ctx context.Context, question string, batch *dispatch.Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nWorker findings:\n", question)
	for _, r := range batch.Results {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", r.Index, r.Subtask, r.Result)
	}
	for _, f := range batch.Failed {
		fmt.Fprintf(&b, "\n[failed] %s\n", f.Error)
	}
	return m.chat(ctx, synthesisSystemMessage, b.String())
}

func (m *Manager) chat(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if m.reasoning != "" {
		req.ReasoningEffort = m.reasoning
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *Manager) log(event executor.LogEvent) {
	event.Timestamp = time.Now().UTC()
	_ = m.logw.Write(event)
}

// stripFence removes a Markdown code fence around a JSON payload, which
// models emit even when told not to.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
