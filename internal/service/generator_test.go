package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIImageGeneratorGenerate(t *testing.T) {
	var gotReq imageGenerationRequest
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created": 1700000000, "data": [{"b64_json": "aGVsbG8="}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIImageGenerator(&OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	gen.now = func() time.Time { return time.UnixMilli(1700000000123) }

	result, err := gen.Generate(context.Background(), "wrapped prompt", 1)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/images/generations", gotPath)
	assert.Equal(t, imageGenerationRequest{Model: "gpt-image-1", Prompt: "wrapped prompt", N: 1, Size: "1024x1024"}, gotReq)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "aGVsbG8=", result.Images[0].B64JSON)
	assert.Equal(t, "gpt-image-1_1700000000123", result.GenerationID)
	assert.Equal(t, "gpt-image-1", result.Model)
}

func TestOpenAIImageGeneratorErrors(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "api error message",
			status:     http.StatusBadRequest,
			body:       `{"error": {"message": "Your request was rejected by the safety system.", "type": "image_generation_user_error"}}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Your request was rejected by the safety system.",
		},
		{
			name:       "plain text body",
			status:     http.StatusBadGateway,
			body:       `upstream unavailable`,
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream unavailable",
		},
		{
			name:    "empty data",
			status:  http.StatusOK,
			body:    `{"created": 1, "data": []}`,
			wantMsg: "No image data received from OpenAI",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.body != "" && tc.body[0] == '{' {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			gen := NewOpenAIImageGenerator(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
			_, err := gen.Generate(context.Background(), "p", 1)
			require.Error(t, err)

			var upstream *UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, tc.wantStatus, upstream.StatusCode)
			assert.Equal(t, tc.wantMsg, upstream.Message)
		})
	}
}

func TestOpenAIImageGeneratorHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	gen := NewOpenAIImageGenerator(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, "p", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
