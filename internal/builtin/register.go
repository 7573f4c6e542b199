package builtin

import (
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// Options configures host-level defaults for the built-in nodes that need
// them. The zero value is valid and matches RegisterAll's behavior.
type Options struct {
	// HTTPTimeout overrides HttpRequest's per-request default deadline
	// (DefaultHTTPTimeout if zero).
	HTTPTimeout time.Duration
	// DefaultOpenAIAPIKey is handed to llm.completion nodes that resolve
	// no "apiKey" parameter and no $env.OPENAI_API_KEY.
	DefaultOpenAIAPIKey string
}

// RegisterAll registers every built-in node type's constructor and
// descriptor against reg, using package defaults. Callers that need a
// custom subset (e.g. a test harness exercising only the scheduler) should
// register directly against registry.Registry instead of calling this.
func RegisterAll(reg *registry.Registry) error {
	return RegisterAllWithOptions(reg, Options{})
}

// RegisterAllWithOptions is RegisterAll with host-configurable defaults
// (spec's C11 REST entrypoint wires config.Config into this).
func RegisterAllWithOptions(reg *registry.Registry, opts Options) error {
	httpTimeout := opts.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = DefaultHTTPTimeout
	}

	for _, t := range []struct {
		name        string
		constructor registry.Constructor
		descriptor  registry.Descriptor
	}{
		{domain.NodeTypeStart, func() registry.Node { return newStartNode() }, registry.Descriptor{
			DisplayName: "Start",
			IsTrigger:   true,
			Inputs:      registry.StaticInputs(),
			Outputs:     registry.StaticOutputs("main"),
		}},
		{domain.NodeTypeWebhook, func() registry.Node { return newWebhookNode() }, registry.Descriptor{
			DisplayName: "Webhook",
			IsTrigger:   true,
			Inputs:      registry.StaticInputs(),
			Outputs:     registry.StaticOutputs("main"),
		}},
		{domain.NodeTypeCron, func() registry.Node { return newCronNode() }, registry.Descriptor{
			DisplayName: "Cron",
			IsTrigger:   true,
			Inputs:      registry.StaticInputs(),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "schedule", Type: "string", Required: true, Description: "cron expression, interpreted by the host scheduler"},
			},
		}},
		{domain.NodeTypeErrorTrigger, func() registry.Node { return newErrorTriggerNode() }, registry.Descriptor{
			DisplayName: "Error Trigger",
			IsTrigger:   true,
			Inputs:      registry.StaticInputs(),
			Outputs:     registry.StaticOutputs("main"),
		}},
		{domain.NodeTypeSet, func() registry.Node { return newSetNode() }, registry.Descriptor{
			DisplayName: "Set",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "mode", Type: "string", Default: "manual"},
				{Name: "fields", Type: "array"},
				{Name: "json", Type: "json"},
				{Name: "keepOnlySet", Type: "boolean", Default: false},
			},
		}},
		{domain.NodeTypeHTTPRequest, func() registry.Node { return newHTTPRequestNodeWithTimeout(httpTimeout) }, registry.Descriptor{
			DisplayName: "HTTP Request",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "url", Type: "string", Required: true},
				{Name: "method", Type: "string", Default: "GET"},
				{Name: "headers", Type: "array"},
				{Name: "body", Type: "json"},
				{Name: "responseType", Type: "string", Default: "json"},
				{Name: "timeoutMs", Type: "number", Default: 30000},
			},
		}},
		{domain.NodeTypeCode, func() registry.Node { return newCodeNode() }, registry.Descriptor{
			DisplayName: "Code",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "code", Type: "string", Required: true},
				{Name: "timeoutMs", Type: "number", Default: 5000},
			},
		}},
		{domain.NodeTypeIf, func() registry.Node { return newIfNode() }, registry.Descriptor{
			DisplayName: "If",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("true", "false"),
			Properties: []registry.PropertyField{
				{Name: "field", Type: "string", Required: true},
				{Name: "operation", Type: "string", Required: true},
				{Name: "value", Type: "any"},
			},
		}},
		{domain.NodeTypeSwitch, func() registry.Node { return newSwitchNode() }, registry.Descriptor{
			DisplayName: "Switch",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.FromCollectionParam("rules", true),
			Properties: []registry.PropertyField{
				{Name: "rules", Type: "array", Required: true},
				{Name: "fallbackOutput", Type: "boolean", Default: false},
			},
		}},
		{domain.NodeTypeMerge, func() registry.Node { return newMergeNode() }, registry.Descriptor{
			DisplayName: "Merge",
			Inputs:      registry.DynamicInputs,
			Outputs:     registry.StaticOutputs("main"),
		}},
		{domain.NodeTypeSplitInBatches, func() registry.Node { return newSplitInBatchesNode() }, registry.Descriptor{
			DisplayName: "Split In Batches",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("loop", "done"),
			Properties: []registry.PropertyField{
				{Name: "batchSize", Type: "number", Required: true, Default: 1},
			},
		}},
		{domain.NodeTypeWait, func() registry.Node { return newWaitNode() }, registry.Descriptor{
			DisplayName: "Wait",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "durationMs", Type: "number", Default: 0},
				{Name: "resumeOn", Type: "string"},
			},
		}},
		{domain.NodeTypeNoOp, func() registry.Node { return newNoOpNode() }, registry.Descriptor{
			DisplayName: "No Op",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
		}},
		{domain.NodeTypeLLMCompletion, func() registry.Node { return newLLMCompletionNodeWithAPIKey(opts.DefaultOpenAIAPIKey) }, registry.Descriptor{
			DisplayName: "LLM Completion",
			Inputs:      registry.StaticInputs("main"),
			Outputs:     registry.StaticOutputs("main"),
			Properties: []registry.PropertyField{
				{Name: "prompt", Type: "string", Required: true},
				{Name: "model", Type: "string", Default: "gpt-4o"},
				{Name: "temperature", Type: "number", Default: 0.7},
				{Name: "apiKey", Type: "string"},
			},
		}},
	} {
		if err := reg.Register(t.name, t.constructor, t.descriptor); err != nil {
			return err
		}
	}
	return nil
}
