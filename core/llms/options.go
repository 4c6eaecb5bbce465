package llms

type PromptOptions struct {
	// SystemPrompt is prepended to the request as the system instruction.
	SystemPrompt string
	// Model overrides the backend's default model when non-empty.
	Model string
}

type PromptOption func(*PromptOptions)

func WithSystemPrompt(systemPrompt string) PromptOption {
	return func(o *PromptOptions) { o.SystemPrompt = systemPrompt }
}

func WithModel(model string) PromptOption {
	return func(o *PromptOptions) { o.Model = model }
}
