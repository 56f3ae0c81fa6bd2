package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/go-resty/resty/v2"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	maxHeadlineRunes     = 50
)

// GeminiConfig configures a GeminiClient
type GeminiConfig struct {
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
	BaseURL  string
}

// GeminiClient implements Client against the Gemini generateContent API
type GeminiClient struct {
	client   *resty.Client
	apiKey   string
	model    string
	language string
	baseURL  string
	post     *PostProcessor
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiClient{
		client:   resty.New().SetTimeout(cfg.Timeout),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		baseURL:  cfg.BaseURL,
		post:     NewPostProcessor(maxHeadlineRunes),
	}
}

// Rank asks the model for the n most interesting candidates
func (g *GeminiClient) Rank(ctx context.Context, candidates []models.Candidate, n int) ([]int, error) {
	response, err := g.callGeminiAPI(ctx, BuildRankPrompt(candidates, n))
	if err != nil {
		return nil, &CapabilityError{Op: "rank", Err: err}
	}

	indices, err := ParseIndices(response)
	if err != nil {
		return nil, &CapabilityError{Op: "rank", Err: err}
	}
	return indices, nil
}

// Rewrite localizes one article into the configured language
func (g *GeminiClient) Rewrite(ctx context.Context, title, summary string) (Rewrite, error) {
	prompt := BuildRewritePrompt(g.language, maxHeadlineRunes, title, summary)

	response, err := g.callGeminiAPI(ctx, prompt)
	if err != nil {
		return Rewrite{}, &CapabilityError{Op: "rewrite", Err: err}
	}

	result, err := g.post.ParseRewrite(response)
	if err != nil {
		return Rewrite{}, &CapabilityError{Op: "rewrite", Err: err}
	}
	return result, nil
}

func (g *GeminiClient) callGeminiAPI(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{
				Text: prompt,
			}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.7,
		},
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if httpResp.StatusCode() == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	if httpResp.IsError() {
		return "", fmt.Errorf("API returned status %d", httpResp.StatusCode())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content in response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
