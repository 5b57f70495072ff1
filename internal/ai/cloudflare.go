package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const ProviderCloudflare = "cloudflare"

// CloudflareClient calls a Cloudflare Workers AI text-generation model.
type CloudflareClient struct {
	apiKey     string
	baseURL    string
	accountID  string
	model      string
	httpClient *http.Client
}

type cloudflareRequest struct {
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type cloudflareResponse struct {
	Success bool `json:"success"`
	Result  *struct {
		Response json.RawMessage `json:"response"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// NewCloudflareClient создает клиент Workers AI для указанного аккаунта.
func NewCloudflareClient(apiKey, baseURL, accountID, model string, httpClient *http.Client) *CloudflareClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &CloudflareClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountID:  accountID,
		model:      strings.TrimLeft(model, "/"),
		httpClient: httpClient,
	}
}

// Name возвращает идентификатор провайдера.
func (c *CloudflareClient) Name() string {
	return ProviderCloudflare
}

// Generate выполняет одну попытку ai/run и возвращает текст ответа.
func (c *CloudflareClient) Generate(ctx context.Context, request Request) (Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Result{}, &ProviderError{Provider: ProviderCloudflare, Reason: ReasonMissingAPIKey, Message: "cloudflare api token is missing"}
	}

	payload, err := json.Marshal(cloudflareRequest{
		Messages:  buildMessages(request),
		MaxTokens: resolveMaxTokens(request.MaxTokens),
	})
	if err != nil {
		return Result{}, err
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, transportError(ctx, ProviderCloudflare, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return Result{}, transportError(ctx, ProviderCloudflare, err)
	}

	var parsed cloudflareResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if decodeErr == nil && len(parsed.Errors) > 0 {
			first := parsed.Errors[0]
			return Result{}, statusError(ProviderCloudflare, response, strconv.Itoa(first.Code), first.Message)
		}
		return Result{}, statusError(ProviderCloudflare, response, "", strings.TrimSpace(string(raw)))
	}

	if decodeErr != nil {
		return Result{}, &ProviderError{Provider: ProviderCloudflare, Reason: ReasonBadEnvelope, Status: response.StatusCode, CFRay: response.Header.Get("cf-ray"), Err: decodeErr}
	}
	if !parsed.Success || parsed.Result == nil || len(parsed.Result.Response) == 0 {
		return Result{}, &ProviderError{Provider: ProviderCloudflare, Reason: ReasonBadEnvelope, Status: response.StatusCode, CFRay: response.Header.Get("cf-ray"), Message: "cloudflare response missing result"}
	}

	// JSON-mode models return an object instead of a string.
	text := string(parsed.Result.Response)
	var asString string
	if err := json.Unmarshal(parsed.Result.Response, &asString); err == nil {
		text = asString
	}

	return Result{Provider: ProviderCloudflare, Status: response.StatusCode, Text: text}, nil
}
