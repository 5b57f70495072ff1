package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const ProviderGemini = "gemini"

// GeminiClient calls the Google Generative Language API (Gemini).
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiClient создает клиент Gemini. Таймаут попытки задается контекстом.
func NewGeminiClient(apiKey, baseURL, model string, httpClient *http.Client) *GeminiClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

// Name возвращает идентификатор провайдера.
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// Generate выполняет одну попытку generateContent и возвращает текст ответа.
func (c *GeminiClient) Generate(ctx context.Context, request Request) (Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Result{}, &ProviderError{Provider: ProviderGemini, Reason: ReasonMissingAPIKey, Message: "gemini api key is missing"}
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: request.UserPrompt}}}},
		GenerationConfig: &geminiConfig{
			Temperature:      0.2,
			MaxOutputTokens:  resolveMaxTokens(request.MaxTokens),
			ResponseMimeType: "application/json",
		},
	}
	if system := strings.TrimSpace(request.SystemPrompt); system != "" {
		body.SystemInstruction = &geminiContent{Role: "system", Parts: []geminiPart{{Text: system}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}

	// Key goes in a header: url.Error would otherwise echo it into logs.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, transportError(ctx, ProviderGemini, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return Result{}, transportError(ctx, ProviderGemini, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr geminiResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != nil {
			return Result{}, statusError(ProviderGemini, response, apiErr.Error.Status, apiErr.Error.Message)
		}
		return Result{}, statusError(ProviderGemini, response, "", strings.TrimSpace(string(raw)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, &ProviderError{Provider: ProviderGemini, Reason: ReasonBadEnvelope, Status: response.StatusCode, Err: err}
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Result{}, &ProviderError{Provider: ProviderGemini, Reason: ReasonBadEnvelope, Status: response.StatusCode, Message: "gemini response missing content"}
	}

	var builder strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}

	return Result{Provider: ProviderGemini, Status: response.StatusCode, Text: builder.String()}, nil
}
