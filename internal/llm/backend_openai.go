package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type openAIBackend struct {
	client         openAIClientInterface
	responseFormat string
}

func newOpenAIBackend(cfg *config.LLM, httpClient *http.Client) *openAIBackend {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		openaiConfig.HTTPClient = httpClient
	}
	return &openAIBackend{
		client:         openai.NewClientWithConfig(openaiConfig),
		responseFormat: cfg.ResponseFormat,
	}
}

func (b *openAIBackend) complete(ctx context.Context, req completion) (*completionResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: req.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.system},
			{Role: openai.ChatMessageRoleUser, Content: req.prompt},
		},
		Temperature: req.temperature,
		MaxTokens:   req.maxTokens,
	}

	switch b.responseFormat {
	case config.ResponseFormatJSONSchema:
		if req.schema != nil {
			chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   req.schemaName,
					Schema: req.schema,
					Strict: false,
				},
			}
		}
	case config.ResponseFormatJSONObject:
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, transient(errors.New("LLM API 返回空结果"))
	}

	return &completionResult{
		text:             resp.Choices[0].Message.Content,
		promptTokens:     resp.Usage.PromptTokens,
		completionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isTransientStatus(apiErr.HTTPStatusCode) {
		return transient(fmt.Errorf("调用 LLM API 失败: %w", err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isTransientStatus(reqErr.HTTPStatusCode) {
		return transient(fmt.Errorf("调用 LLM API 失败: %w", err))
	}
	return classifyCommon(fmt.Errorf("调用 LLM API 失败: %w", err))
}
