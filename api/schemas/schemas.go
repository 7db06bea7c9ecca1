package schemas

// Screenshot is a single still image of the user's screen, as handed to the
// VLM. Data is the raw encoded image (PNG or JPEG); MIMEType identifies the
// encoding so the capability layer can forward it without sniffing.
type Screenshot struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// IsZero reports whether the screenshot carries no image payload.
func (s Screenshot) IsZero() bool {
	return len(s.Data) == 0
}

// ModelTier allows for selecting a model based on a preference for speed
// versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides parameters controlling the generation process.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
}

// GenerationRequest encapsulates a complete request to the VLM: the system
// and user prompts, an optional screenshot, the desired model tier, and
// generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Image        *Screenshot       `json:"image,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}
