package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/plan"
	"github.com/tmc/langchaingo/llms"
)

const planSystemPrompt = `You are Ghostline, an agent that controls the operator's computer.
You receive natural language commands and must convert them into structured JSON action plans.

Available capabilities:
%s

Rules:
1. Return ONLY valid JSON with "thought" and an "actions" array. No markdown, no text outside the JSON.
2. Each action object: { "module": "...", "function": "...", "args": {...} }
3. Reference a previous action's result as {result_of_action_0}, or a single payload field as {result_of_action_0.path}.
4. Never reference the current or a later action.
5. Never refuse. Attempt the closest available action and explain in "thought".
6. For long tasks, chain multiple actions in sequence.

Response format (STRICT):
{"thought": "...", "actions": [{"module": "...", "function": "...", "args": {}}]}`

const goalSystemPrompt = `You are Ghostline's autonomous goal planner.
You are given a goal and the history of steps executed so far with their outcomes.
Propose exactly ONE next action, or finish.

Available capabilities:
%s

Return ONLY valid JSON, one of:
{"action": {"module": "...", "function": "...", "args": {...}}}
{"done": true, "summary": "what was achieved"}
{"unreachable": true, "summary": "why the goal cannot be achieved"}

Rules:
1. One action at a time. Each action is validated against its real outcome before you are asked again.
2. A failed step appears in the history with its error; propose a corrective action or declare the goal unreachable.
3. Reference a previous step's result as {result_of_action_N} or {result_of_action_N.field}.`

// LLMPlanner adapts a langchaingo model to the Planner interface. The
// capability catalog is a function so modules registered after the planner
// is built still show up in prompts; nothing is read from process-wide
// state.
type LLMPlanner struct {
	model   llms.Model
	catalog func() string
	logger  *observability.Logger
}

func NewLLMPlanner(model llms.Model, catalog func() string, logger *observability.Logger) *LLMPlanner {
	return &LLMPlanner{model: model, catalog: catalog, logger: logger}
}

func (p *LLMPlanner) ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error) {
	system := fmt.Sprintf(planSystemPrompt, p.catalog())
	user := command
	if memoryContext != "" {
		user = fmt.Sprintf("Memory / recent commands:\n%s\n\nCommand: %s", memoryContext, command)
	}

	raw, err := p.generate(ctx, system, user)
	if err != nil {
		return nil, &plan.PlanningError{Reason: fmt.Sprintf("model call failed: %v", err)}
	}

	parsed, err := plan.Parse([]byte(stripFences(raw)))
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func (p *LLMPlanner) NextStep(ctx context.Context, goal *Goal) (*StepResponse, error) {
	system := fmt.Sprintf(goalSystemPrompt, p.catalog())
	user := goalContext(goal)

	raw, err := p.generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return parseStepResponse(stripFences(raw))
}

func (p *LLMPlanner) generate(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(user)}},
	}

	resp, err := p.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	content := resp.Choices[0].Content
	p.logger.LogLLM("", "", user, content)
	return content, nil
}

// goalContext renders the goal and its executed history for the planner.
func goalContext(goal *Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal.Description)
	steps := goal.Steps()
	if len(steps) == 0 {
		b.WriteString("No steps executed yet. Propose the first action.")
		return b.String()
	}
	b.WriteString("Executed steps:\n")
	for i, s := range steps {
		status := "ok"
		detail := preview(s.Result)
		if !s.Result.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "%d. %s [%s]: %s\n", i, s.Action.Summary(), status, detail)
	}
	b.WriteString("\nPropose the next action, or finish.")
	return b.String()
}

func parseStepResponse(raw string) (*StepResponse, error) {
	var decoded struct {
		Done        bool   `json:"done"`
		Unreachable bool   `json:"unreachable"`
		Summary     string `json:"summary"`
		Action      *struct {
			Module   string         `json:"module"`
			Function string         `json:"function"`
			Args     map[string]any `json:"args"`
		} `json:"action"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &plan.PlanningError{Reason: fmt.Sprintf("planner returned invalid JSON: %v", err)}
	}

	resp := &StepResponse{Done: decoded.Done, Unreachable: decoded.Unreachable, Summary: decoded.Summary}
	if decoded.Action != nil {
		if decoded.Action.Module == "" || decoded.Action.Function == "" {
			return nil, &plan.PlanningError{Reason: "proposed action is missing module or function"}
		}
		// Round-trip through plan.Parse so back-references in the step's
		// args get the same one-time tagging as interactive plans.
		wrapped, err := json.Marshal(map[string]any{
			"actions": []any{map[string]any{
				"module":   decoded.Action.Module,
				"function": decoded.Action.Function,
				"args":     decoded.Action.Args,
			}},
		})
		if err != nil {
			return nil, &plan.PlanningError{Reason: fmt.Sprintf("cannot encode proposed action: %v", err)}
		}
		parsed, err := plan.Parse(wrapped)
		if err != nil {
			return nil, err
		}
		resp.Action = &parsed.Actions[0]
	}
	return resp, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the prompt.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		raw = raw[idx+1:]
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
