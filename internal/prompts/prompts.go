package prompts

// ============================================================================
// Sticker Design Prompt
// ============================================================================

const stickerDesignPrefix = "You are a professional graphic designer specializing in sticker design. " +
	"Create a vibrant, eye-catching sticker based on this prompt: "

const stickerDesignSuffix = ". The design should be: " +
	"1) Vector-style with clean lines and shapes, " +
	"2) Highly detailed while maintaining visual clarity, " +
	"3) Suitable for sticker printing with well-defined edges, " +
	"4) Cohesive and balanced composition, " +
	"5) Using colors that work well together and create visual impact, " +
	"6) Incorporating any specific elements mentioned in the prompt while ensuring they fit the sticker format. " +
	"The final design should be a single, self-contained image that would look appealing when printed as a sticker."

// StickerDesignPrompt wraps a user's raw prompt in the designer instructions sent to the
// image model. The raw prompt is what gets stored on the job; only the wrapped text goes upstream.
func StickerDesignPrompt(userPrompt string) string {
	return stickerDesignPrefix + userPrompt + stickerDesignSuffix
}
