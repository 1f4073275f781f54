package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// backend 单次生成调用，错误需已按是否可重试分类
type backend interface {
	complete(ctx context.Context, req completion) (*completionResult, error)
}

type completion struct {
	model       string
	system      string
	prompt      string
	schemaName  string
	schema      *jsonschema.Schema
	maxTokens   int
	temperature float32
}

type completionResult struct {
	text             string
	promptTokens     int
	completionTokens int
}

// Request 一次结构化生成请求
type Request struct {
	Name        string // 调用名，用于日志和用量记录
	System      string
	Prompt      string
	SchemaName  string
	Schema      *jsonschema.Schema // 输出结构提示，可为空
	MaxTokens   int                // 0 表示使用配置值
	Temperature float32            // 0 表示使用配置值
}

// Result 生成结果
type Result struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Attempts         int
	Cost             decimal.Decimal
}

// Generator 生成接口，Pass 1 与 Pass 2 依赖此接口
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

type Client struct {
	config  *config.LLM
	backend backend
	limiter *rate.Limiter
	usage   *UsageTracker
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient 按配置创建客户端，httpClient 为空时使用默认传输
func NewClient(cfg *config.LLM, httpClient *http.Client) (*Client, error) {
	var (
		b   backend
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		b, err = newGeminiBackend(context.Background(), cfg, httpClient)
		if err != nil {
			return nil, err
		}
	default:
		b = newOpenAIBackend(cfg, httpClient)
	}
	return newClientWithBackend(cfg, b), nil
}

func newClientWithBackend(cfg *config.LLM, b backend) *Client {
	c := &Client{
		config:  cfg,
		backend: b,
		usage:   NewUsageTracker(),
		sleep:   sleepContext,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}
	return c
}

// DefaultModel 未被覆盖时使用的模型
func (c *Client) DefaultModel() string {
	return c.config.Model
}

// Usage 客户端生命周期内的累计用量
func (c *Client) Usage() Usage {
	return c.usage.Snapshot()
}

// Generate 执行一次生成调用
// 仅对临时错误按指数退避重试；父 context 取消时立即返回
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	model := ModelFrom(ctx, c.config.Model)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	maxAttempts := max(c.config.MaxAttempts, 1)
	timeout := time.Duration(c.config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := time.Duration(c.config.InitialBackoffSeconds) * time.Second
	maxBackoff := time.Duration(c.config.MaxBackoffSeconds) * time.Second

	started := time.Now()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("任务已取消: %w", err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("任务已取消: %w", err)
			}
		}

		logger.Debugf("[LLM] %s 第 %d 次调用, model=%s", req.Name, attempt, model)
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := c.backend.complete(callCtx, completion{
			model:       model,
			system:      req.System,
			prompt:      req.Prompt,
			schemaName:  req.SchemaName,
			schema:      req.Schema,
			maxTokens:   maxTokens,
			temperature: temperature,
		})
		cancel()

		if err == nil {
			result := &Result{
				Text:             res.text,
				Model:            model,
				PromptTokens:     res.promptTokens,
				CompletionTokens: res.completionTokens,
				Attempts:         attempt,
				Cost:             CalculateCost(model, res.promptTokens, res.completionTokens),
			}
			c.recordUsage(ctx, req.Name, result, time.Since(started))
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("任务已取消: %w", ctxErr)
		}
		err = classifyCommon(err)
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("重试 %d 次后仍失败: %w", attempt, err)
		}

		logger.Warnf("[LLM] %s 第 %d 次调用失败，%s 后重试: %v", req.Name, attempt, backoff, err)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("任务已取消: %w", err)
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) recordUsage(ctx context.Context, name string, res *Result, elapsed time.Duration) {
	call := CallUsage{
		Name:             name,
		Model:            res.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		Attempts:         res.Attempts,
		Duration:         elapsed,
		EstimatedCostUSD: res.Cost,
	}
	c.usage.Record(call)
	if tracker := usageFrom(ctx); tracker != nil {
		tracker.Record(call)
	}
	logger.Debugf("[LLM] %s 完成, tokens=%d/%d, 估算费用 $%s", name, res.PromptTokens, res.CompletionTokens, res.Cost.StringFixed(4))
}

// sleepContext 可被取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// GenerateJSON 生成并解码为 T，解码失败返回 *SchemaError
func GenerateJSON[T any](ctx context.Context, g Generator, req Request) (*T, *Result, error) {
	res, err := g.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var out T
	if err := DecodeJSON(res.Text, &out); err != nil {
		logger.Debugf("[LLM] %s 返回内容无法解析: %s", req.Name, res.Text)
		return nil, res, &SchemaError{Raw: res.Text, Reason: err.Error()}
	}
	return &out, res, nil
}
