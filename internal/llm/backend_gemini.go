package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fachebot/talk-wrapped/internal/config"
	"google.golang.org/genai"
)

// geminiModelsInterface genai.Models 的子集，便于测试
type geminiModelsInterface interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiBackend struct {
	models   geminiModelsInterface
	jsonMode bool
}

func newGeminiBackend(ctx context.Context, cfg *config.LLM, httpClient *http.Client) (*geminiBackend, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &geminiBackend{
		models:   client.Models,
		jsonMode: cfg.ResponseFormat != config.ResponseFormatText,
	}, nil
}

func (b *geminiBackend) complete(ctx context.Context, req completion) (*completionResult, error) {
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.system, genai.RoleUser),
		Temperature:       genai.Ptr(req.temperature),
		MaxOutputTokens:   int32(req.maxTokens),
	}
	if b.jsonMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := b.models.GenerateContent(ctx, req.model, genai.Text(req.prompt), genConfig)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, transient(errors.New("Gemini 返回空结果"))
	}

	result := &completionResult{text: text}
	if resp.UsageMetadata != nil {
		result.promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isTransientStatus(apiErr.Code) {
		return transient(fmt.Errorf("调用 Gemini API 失败: %w", err))
	}
	return classifyCommon(fmt.Errorf("调用 Gemini API 失败: %w", err))
}
