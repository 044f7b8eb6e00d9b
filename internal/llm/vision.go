package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// VisionClient calls a vision-capable chat model with an inlined image.
type VisionClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewVisionClient creates a vision client against an OpenAI-compatible
// endpoint. The API key is read from the named environment variable.
func NewVisionClient(baseURL, apiKeyEnv string, timeout time.Duration) *VisionClient {
	if timeout == 0 {
		timeout = 50 * time.Second
	}
	return &VisionClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  os.Getenv(apiKeyEnv),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (v *VisionClient) IsConfigured() bool {
	return v.APIKey != ""
}

// Describe sends a prompt plus an image file to the given model and
// returns the raw response text.
func (v *VisionClient) Describe(ctx context.Context, model, prompt, imagePath string) (string, error) {
	if v.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	dataURL, err := fileToDataURL(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	body := map[string]any{
		"model":       model,
		"temperature": 0,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.APIKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return result.Choices[0].Message.Content, nil
}

func fileToDataURL(path string) (string, error) {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
