package server

// knownModels is the model selection surfaced to chat UIs via /v1/models.
// The gateway does not validate the requested model; the list exists purely
// so a model-selector frontend has something to render.
var knownModels = []string{
	"gpt-3.5-turbo",
	"gpt-4o",
	"gpt-4o-mini",
}

func supportedModels(defaultModel string) []modelInfo {
	seen := map[string]bool{}
	out := make([]modelInfo, 0, len(knownModels)+1)

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, modelInfo{
			ID:      id,
			Object:  "model",
			OwnedBy: "upstream",
		})
	}

	add(defaultModel)
	for _, id := range knownModels {
		add(id)
	}
	return out
}
