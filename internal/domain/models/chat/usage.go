package chat

// Usage is the raw token accounting reported by the generation provider for
// one turn.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// UsageSnapshot merges raw provider counts with optional pricing-catalog
// figures. It is stored opaquely on the chat as last_context; pricing
// lookup failures degrade to raw counts and never block a turn.
func UsageSnapshot(modelID string, usage Usage, costUSD *float64) map[string]any {
	snapshot := map[string]any{
		"modelId":      modelID,
		"inputTokens":  usage.InputTokens,
		"outputTokens": usage.OutputTokens,
		"totalTokens":  usage.TotalTokens,
	}
	if costUSD != nil {
		snapshot["costUSD"] = *costUSD
	}
	return snapshot
}
