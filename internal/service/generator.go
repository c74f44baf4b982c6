package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// GeneratedImage is one image returned by the generation API, still base64 encoded.
type GeneratedImage struct {
	B64JSON       string
	RevisedPrompt string
}

// GenerationResult is the outcome of one generation call.
type GenerationResult struct {
	Images []GeneratedImage
	// GenerationID tags the artifacts produced by this call.
	GenerationID string
	Model        string
	Size         string
}

// ImageGenerator produces images from a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, n int) (*GenerationResult, error)
}

// OpenAIImageGenerator calls an OpenAI-compatible /images/generations endpoint.
type OpenAIImageGenerator struct {
	client   *resty.Client
	model    string
	size     string
	endpoint string
	now      func() time.Time
}

// OpenAIConfig holds configuration for the image generation client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
}

// NewOpenAIImageGenerator creates a new image generation client.
// Parameters:
//   - cfg: endpoint, credentials, model and output size.
// Returns:
//   - *OpenAIImageGenerator: client ready for Generate calls.
func NewOpenAIImageGenerator(cfg *OpenAIConfig) *OpenAIImageGenerator {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// No client timeout: the worker bounds each call through the request context.

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-image-1"
	}
	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}

	return &OpenAIImageGenerator{
		client:   client,
		model:    model,
		size:     size,
		endpoint: baseURL + "/images/generations",
		now:      time.Now,
	}
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageGenerationResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate requests n images for prompt.
// Parameters:
//   - ctx: context carrying the generation deadline.
//   - prompt: full prompt sent to the model.
//   - n: number of images.
// Returns:
//   - *GenerationResult: base64 payloads and a generation id of the form <model>_<unixMillis>.
//   - error: *UpstreamError for API-level failures, a wrapped transport error otherwise.
func (g *OpenAIImageGenerator) Generate(ctx context.Context, prompt string, n int) (*GenerationResult, error) {
	if n < 1 {
		n = 1
	}

	var resp imageGenerationResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetBody(imageGenerationRequest{
			Model:  g.model,
			Prompt: prompt,
			N:      n,
			Size:   g.size,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call image API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := strings.TrimSpace(string(httpResp.Body()))
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		if msg == "" {
			msg = httpResp.Status()
		}
		return nil, &UpstreamError{StatusCode: httpResp.StatusCode(), Message: msg}
	}

	if resp.Error != nil {
		return nil, &UpstreamError{Message: resp.Error.Message}
	}

	if len(resp.Data) == 0 {
		return nil, &UpstreamError{Message: "No image data received from OpenAI"}
	}

	result := &GenerationResult{
		GenerationID: fmt.Sprintf("%s_%d", g.model, g.now().UnixMilli()),
		Model:        g.model,
		Size:         g.size,
	}
	for _, d := range resp.Data {
		result.Images = append(result.Images, GeneratedImage{
			B64JSON:       d.B64JSON,
			RevisedPrompt: d.RevisedPrompt,
		})
	}
	return result, nil
}
