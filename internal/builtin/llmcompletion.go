package builtin

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// llmCompletionNode is a domain-stack extension beyond spec.md's required
// node set: a thin node-contract wrapper around go-openai's chat completion
// call, grounded on the teacher's OpenAICompletionExecutor (API-key
// resolution order, prompt templating). The returned item carries the
// completion text, model and token counts; no latency is recorded.
//
// API key is resolved in priority order: the node's own "apiKey" parameter,
// then $env.OPENAI_API_KEY (already available to the resolver), then the
// key this node instance was constructed with.
type llmCompletionNode struct {
	defaultAPIKey string
	newClient     func(apiKey string) *openai.Client
}

func newLLMCompletionNode() registry.Node {
	return newLLMCompletionNodeWithAPIKey("")
}

// newLLMCompletionNodeWithAPIKey lets the host inject a default OpenAI API
// key (config.OpenAIAPIKey) used when a node neither sets its own "apiKey"
// parameter nor resolves one through $env.
func newLLMCompletionNodeWithAPIKey(defaultAPIKey string) registry.Node {
	return &llmCompletionNode{
		defaultAPIKey: defaultAPIKey,
		newClient:     openai.NewClient,
	}
}

func (n *llmCompletionNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, resolver registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	model, _ := resolvedParams["model"].(string)
	if model == "" {
		model = openai.GPT4o
	}
	temperature, _ := toFloat(resolvedParams["temperature"])

	apiKey, _ := resolvedParams["apiKey"].(string)
	if apiKey == "" {
		if v, err := resolver.ResolveValue("{{ $env.OPENAI_API_KEY }}", 0); err == nil {
			apiKey, _ = v.(string)
		}
	}
	if apiKey == "" {
		apiKey = n.defaultAPIKey
	}
	if apiKey == "" {
		return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeLLMCompletion, ec.ExecutionID, 1, "no OpenAI API key resolved from parameters, $env, or host default", nil)
	}
	client := n.newClient(apiKey)

	out := make([]domain.Item, len(items))
	for i := range items {
		params, err := resolver.ResolveParams(def.Parameters, i)
		if err != nil {
			return registry.Result{}, err
		}
		prompt, _ := params["prompt"].(string)
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeLLMCompletion, ec.ExecutionID, 1, "resolved prompt is empty", nil)
		}

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Temperature: float32(temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeLLMCompletion, ec.ExecutionID, 1, "OpenAI API error: "+err.Error(), err)
		}
		if len(resp.Choices) == 0 {
			return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeLLMCompletion, ec.ExecutionID, 1, "OpenAI returned no choices", nil)
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		out[i] = domain.Item{JSON: map[string]any{
			"content":          content,
			"model":            resp.Model,
			"promptTokens":     resp.Usage.PromptTokens,
			"completionTokens": resp.Usage.CompletionTokens,
			"totalTokens":      resp.Usage.TotalTokens,
		}}
	}

	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(out)}}, nil
}
