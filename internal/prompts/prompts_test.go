package prompts

import (
	"strings"
	"testing"
)

func TestStickerDesignPrompt(t *testing.T) {
	got := StickerDesignPrompt("A cute cartoon cat wearing sunglasses")

	want := "You are a professional graphic designer specializing in sticker design. " +
		"Create a vibrant, eye-catching sticker based on this prompt: A cute cartoon cat wearing sunglasses. " +
		"The design should be: 1) Vector-style with clean lines and shapes, " +
		"2) Highly detailed while maintaining visual clarity, " +
		"3) Suitable for sticker printing with well-defined edges, " +
		"4) Cohesive and balanced composition, " +
		"5) Using colors that work well together and create visual impact, " +
		"6) Incorporating any specific elements mentioned in the prompt while ensuring they fit the sticker format. " +
		"The final design should be a single, self-contained image that would look appealing when printed as a sticker."

	if got != want {
		t.Errorf("unexpected prompt:\n got: %s\nwant: %s", got, want)
	}
}

func TestStickerDesignPromptEmbedsInputOnce(t *testing.T) {
	raw := "a dragon eating ramen"
	got := StickerDesignPrompt(raw)
	if n := strings.Count(got, raw); n != 1 {
		t.Errorf("raw prompt appears %d times, want 1", n)
	}
}
