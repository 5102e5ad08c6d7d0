// Package genai is the client for the generative-text provider used to
// turn prompts and raw data into chart configurations. It speaks the
// OpenAI chat-completions wire format with JSON-object response mode.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Config is the environment-driven provider configuration.
type Config struct {
	APIKey string `env:"OPENAI_API_KEY"`
	Model  string `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`
}

const defaultBaseURL = "https://api.openai.com"

var ErrNotConfigured = errors.New("genai: OPENAI_API_KEY is required")

// UpstreamError reports a provider call that failed with a non-2xx
// response.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	detail := e.Detail
	const maxDetail = 200
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return fmt.Sprintf("genai: provider returned %d: %s", e.Status, detail)
}

// Client calls the provider. Construct with New; the zero value is not
// usable.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithEndpoint overrides the API base URL, e.g. for tests against a
// stub server.
func WithEndpoint(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		// Chart generation responses run long; the provider's p99 for
		// 4k-token completions is well under this.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChartResult is a generated chart: the library configuration object,
// the rendering component source, and a human description.
type ChartResult struct {
	ChartConfig map[string]any `json:"chartConfig"`
	JSX         string         `json:"jsx"`
	SVG         string         `json:"svg,omitempty"`
	Description string         `json:"description"`
}

// GenerateChart asks the provider for a full chart configuration for
// the given chart type and input data. The chart title is lifted from
// the input data when present, falling back to the description.
func (c *Client) GenerateChart(ctx context.Context, chartType string, data map[string]any) (*ChartResult, error) {
	prompt, err := buildChartPrompt(chartType, data)
	if err != nil {
		return nil, err
	}

	raw, err := c.chatJSON(ctx, chatRequest{
		System:      "You are a data visualization expert. Always respond with valid JSON only, no markdown formatting or extra text.",
		User:        prompt,
		Temperature: 0.2,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, err
	}

	var result ChartResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("genai: parse chart response: %w", err)
	}

	injectTitle(&result, data)
	return &result, nil
}

// ChartSuggestion ranks a chart type for an analyzed prompt.
type ChartSuggestion struct {
	ChartType  string `json:"chart_type"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// PromptAnalysis is the structured reading of a natural-language
// prompt: extracted data plus ranked chart type suggestions.
type PromptAnalysis struct {
	Labels             []string          `json:"labels"`
	Values             []float64         `json:"values"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	SuggestedCharts    []ChartSuggestion `json:"suggested_charts"`
	DataInterpretation string            `json:"data_interpretation"`
}

// AnalyzePrompt turns a free-form prompt, in any language, into chart
// data with suggested chart types.
func (c *Client) AnalyzePrompt(ctx context.Context, prompt string) (*PromptAnalysis, error) {
	raw, err := c.chatJSON(ctx, chatRequest{
		System:      analyzePromptSystem,
		User:        "Analyze this prompt and generate chart data:\n\n" + prompt,
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, err
	}

	var analysis PromptAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("genai: parse analysis response: %w", err)
	}
	return &analysis, nil
}

// DataSet is generated sample data for a described scenario.
type DataSet struct {
	Labels        []string  `json:"labels"`
	Values        []float64 `json:"values"`
	Title         string    `json:"title"`
	SuggestedType string    `json:"suggested_type"`
}

// GenerateData fabricates realistic sample data from a description.
func (c *Client) GenerateData(ctx context.Context, description string, dataPoints int, chartType string) (*DataSet, error) {
	if dataPoints <= 0 {
		dataPoints = 6
	}

	raw, err := c.chatJSON(ctx, chatRequest{
		System:      buildDataPrompt(dataPoints, chartType),
		User:        description,
		Temperature: 0.4,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, err
	}

	var ds DataSet
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("genai: parse data response: %w", err)
	}
	return &ds, nil
}

// TranscribeAudio sends base64-encoded audio to the provider's
// transcription endpoint and returns the recognized text.
func (c *Client) TranscribeAudio(ctx context.Context, audioBase64, mimeType string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", fmt.Errorf("genai: decode audio payload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", audioFilename(mimeType))
	if err != nil {
		return "", fmt.Errorf("genai: build transcription request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("genai: build transcription request: %w", err)
	}
	if err := mw.WriteField("model", "whisper-1"); err != nil {
		return "", fmt.Errorf("genai: build transcription request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("genai: build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("genai: build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai: transcription call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{Status: resp.StatusCode, Detail: string(detail)}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("genai: decode transcription response: %w", err)
	}
	return result.Text, nil
}

type chatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// chatJSON runs one chat completion in JSON-object response mode and
// returns the raw message content for the caller to decode.
func (c *Client) chatJSON(ctx context.Context, req chatRequest) (json.RawMessage, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature":     req.Temperature,
		"max_tokens":      req.MaxTokens,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("genai: marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("genai: build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("genai: chat call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: string(detail)}
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("genai: decode chat response: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, errors.New("genai: empty completion")
	}

	return json.RawMessage(completion.Choices[0].Message.Content), nil
}

func audioFilename(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/wav", "audio/x-wav":
		return "audio.wav"
	case "audio/webm":
		return "audio.webm"
	case "audio/ogg":
		return "audio.ogg"
	default:
		return "audio.m4a"
	}
}

// injectTitle mirrors the title handling expected by clients: the
// input data's title wins, then the description; the chosen title is
// mirrored into both the options and the data of the configuration.
func injectTitle(result *ChartResult, data map[string]any) {
	title, _ := data["title"].(string)
	if title == "" {
		title = result.Description
		if title == "" {
			title = "Chart"
		}
	}

	if result.ChartConfig == nil {
		result.ChartConfig = map[string]any{}
	}
	options, ok := result.ChartConfig["options"].(map[string]any)
	if !ok {
		options = map[string]any{}
		result.ChartConfig["options"] = options
	}
	if _, ok := options["title"]; !ok {
		options["title"] = map[string]any{"display": true, "text": title}
	}
	if chartData, ok := result.ChartConfig["data"].(map[string]any); ok {
		chartData["title"] = title
	}
}
