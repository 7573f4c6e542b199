package domain

// Well-known built-in node type names, shared by the registry
// registrations, the validator's type-specific checks, and the built-in
// node implementations themselves.
const (
	NodeTypeStart          = "start"
	NodeTypeWebhook        = "webhook"
	NodeTypeCron           = "cron"
	NodeTypeErrorTrigger   = "errorTrigger"
	NodeTypeSet            = "set"
	NodeTypeHTTPRequest    = "httpRequest"
	NodeTypeCode           = "code"
	NodeTypeIf             = "if"
	NodeTypeSwitch         = "switch"
	NodeTypeMerge          = "merge"
	NodeTypeSplitInBatches = "splitInBatches"
	NodeTypeWait           = "wait"
	NodeTypeNoOp           = "noOp"
	NodeTypeLLMCompletion  = "llm.completion"
)
