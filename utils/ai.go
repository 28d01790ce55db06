package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bandup/config"
	"bandup/models"
)

// Evaluation is the scored result of one AI evaluation call.
type Evaluation struct {
	Score      float64 `json:"score"` // IELTS band, 0-9
	Feedback   string  `json:"feedback"`
	TokensUsed int     `json:"tokens_used"`
}

// ChartDataPoint is one extracted value from a Task 1 chart image.
type ChartDataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartAnalysis is the result of validating an uploaded chart image.
type ChartAnalysis struct {
	IsValid          bool             `json:"is_valid"`
	ChartType        string           `json:"chart_type"`
	DataPoints       []ChartDataPoint `json:"data_points"`
	ValidationErrors []string         `json:"validation_errors"`
}

// AIClient talks to an OpenAI-compatible chat completions API. It is the only
// component that performs AI network I/O; callers bill credits before any
// method here is invoked.
type AIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewAIClient(cfg config.AIConfig) *AIClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &AIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat any           `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const evaluateSystemPrompt = `You are a certified IELTS examiner. Score the candidate's response against the
official band descriptors (task achievement, coherence and cohesion, lexical
resource, grammatical range and accuracy). Reply with JSON:
{"score": <band 0-9, half steps>, "feedback": "<detailed feedback>"}`

// Evaluate scores an attempt's content against the exercise prompt.
func (c *AIClient) Evaluate(ctx context.Context, content string, exercise *models.Exercise) (*Evaluation, error) {
	task := "speaking response (transcript)"
	if exercise.IsWriting() {
		task = "writing task response"
	}
	userPrompt := fmt.Sprintf("Exercise (%s): %s\n\nCandidate %s:\n%s",
		exercise.Type, exercise.Prompt, task, content)

	raw, tokens, err := c.complete(ctx, evaluateSystemPrompt, []chatMessage{
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(raw), &eval); err != nil {
		return nil, fmt.Errorf("parse evaluation response: %w", err)
	}
	if eval.Score < 0 || eval.Score > 9 {
		return nil, fmt.Errorf("evaluation score %.1f out of band range", eval.Score)
	}
	eval.TokensUsed = tokens
	return &eval, nil
}

const rewriteSystemPrompt = `You are an IELTS writing coach. Rewrite the candidate's text so it would score
at least band 7.5, preserving the original meaning and structure. Reply with
JSON: {"rewritten_text": "<the rewrite>"}`

// RewriteContent returns a higher-band rewrite of the given text.
func (c *AIClient) RewriteContent(ctx context.Context, text string) (string, error) {
	raw, _, err := c.complete(ctx, rewriteSystemPrompt, []chatMessage{
		{Role: "user", Content: text},
	})
	if err != nil {
		return "", err
	}

	var result struct {
		RewrittenText string `json:"rewritten_text"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse rewrite response: %w", err)
	}
	if result.RewrittenText == "" {
		return "", fmt.Errorf("rewrite response is empty")
	}
	return result.RewrittenText, nil
}

const chartSystemPrompt = `You validate chart images for IELTS Writing Task 1 exercises. Decide whether
the image is a usable chart, identify its type (bar, line, pie, table, process,
map) and extract its data points. Reply with JSON:
{"is_valid": bool, "chart_type": "<type>", "data_points": [{"label": "...", "value": 0}], "validation_errors": ["..."]}`

// AnalyzeChartImage validates an uploaded Task 1 chart image and extracts its
// data points.
func (c *AIClient) AnalyzeChartImage(ctx context.Context, image []byte, mimeType string) (*ChartAnalysis, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	raw, _, err := c.complete(ctx, chartSystemPrompt, []chatMessage{
		{
			Role: "user",
			Content: []map[string]any{
				{"type": "text", "text": "Validate this chart image for a Task 1 exercise."},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var analysis ChartAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("parse chart analysis response: %w", err)
	}
	return &analysis, nil
}

// complete performs one chat completion call and returns the raw message
// content plus the token usage.
func (c *AIClient) complete(ctx context.Context, systemPrompt string, messages []chatMessage) (string, int, error) {
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       append([]chatMessage{{Role: "system", Content: systemPrompt}}, messages...),
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.2,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read ai response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("parse ai response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", 0, fmt.Errorf("ai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("ai request returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("ai response has no choices")
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}
