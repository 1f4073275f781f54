package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/invopop/jsonschema"
	"golang.org/x/sync/errgroup"
)

// ErrAllChunksFailed 没有任何分块提取成功
var ErrAllChunksFailed = errors.New("所有分块提取均失败")

// Outcome 第一阶段结果，失败分块按索引升序
type Outcome struct {
	Merged   *model.MergedExtraction
	Failures []model.ChunkFailure
	Chunks   int
}

type Extractor struct {
	gen    llm.Generator
	cfg    config.Pipeline
	model  string // 为空时沿用客户端默认模型
	schema *jsonschema.Schema
}

// New 创建提取器，extractionModel 只作用于本阶段的调用
func New(gen llm.Generator, cfg config.Pipeline, extractionModel string) *Extractor {
	return &Extractor{
		gen:    gen,
		cfg:    cfg,
		model:  extractionModel,
		schema: llm.SchemaFor(&model.ContentExtraction{}),
	}
}

type chunkResult struct {
	extraction *model.ContentExtraction
	err        error
}

// Extract 分块并发提取后合并
// 至少一个分块成功即视为成功；全部失败时返回 ErrAllChunksFailed 以及失败明细
func (e *Extractor) Extract(ctx context.Context, t *model.Transcript, subject, background string) (*Outcome, error) {
	chunks := Split(t, e.cfg.ChunkChars)
	if len(chunks) == 0 {
		return &Outcome{Merged: &model.MergedExtraction{}}, ErrAllChunksFailed
	}

	concurrency := max(e.cfg.Concurrency, 1)
	logger.Infof("[Extractor] 共 %d 个分块, 并发 %d", len(chunks), concurrency)
	if e.model != "" {
		ctx = llm.WithModel(ctx, e.model)
	}

	// 按索引写入，结果与分块的对应关系不依赖完成顺序
	results := make([]chunkResult, len(chunks))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range chunks {
		g.Go(func() error {
			started := time.Now()
			out, err := e.extractChunk(ctx, chunks[i], len(chunks), subject, background)
			results[i] = chunkResult{extraction: out, err: err}
			if err != nil {
				logger.Warnf("[Extractor] 分块 %d/%d 失败: %v", i+1, len(chunks), err)
			} else {
				logger.Debugf("[Extractor] 分块 %d/%d 完成, 耗时 %s", i+1, len(chunks), time.Since(started).Round(time.Millisecond))
			}
			return nil
		})
	}
	_ = g.Wait()

	extractions := make([]*model.ContentExtraction, len(chunks))
	failures := make([]model.ChunkFailure, 0)
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, model.ChunkFailure{
				Index:  i,
				Period: chunks[i].Period,
				Reason: r.err.Error(),
			})
			continue
		}
		extractions[i] = r.extraction
	}

	outcome := &Outcome{
		Merged:   Merge(extractions, chunks, limitsFrom(e.cfg)),
		Failures: failures,
		Chunks:   len(chunks),
	}
	if outcome.Merged.ChunksSucceeded == 0 {
		return outcome, ErrAllChunksFailed
	}
	logger.Infof("[Extractor] 提取完成, 成功 %d/%d, 话题 %d, 语录 %d",
		outcome.Merged.ChunksSucceeded, len(chunks), len(outcome.Merged.Topics), len(outcome.Merged.Quotes))
	return outcome, nil
}

// extractChunk 单个分块的提取；输出不合格时带着问题重新提示，次数由 CorrectiveRetries 限定
func (e *Extractor) extractChunk(ctx context.Context, c Chunk, total int, subject, background string) (*model.ContentExtraction, error) {
	prompt := buildPrompt(c, total, subject, background, e.schema)
	req := llm.Request{
		Name:       fmt.Sprintf("extract#%d", c.Index+1),
		System:     systemPrompt,
		Prompt:     prompt,
		SchemaName: "content_extraction",
		Schema:     e.schema,
	}

	for attempt := 0; ; attempt++ {
		out, _, err := llm.GenerateJSON[model.ContentExtraction](ctx, e.gen, req)
		if err == nil {
			if verr := Validate(out); verr != nil {
				err = verr
			} else {
				return out, nil
			}
		}

		var schemaErr *llm.SchemaError
		if !errors.As(err, &schemaErr) || attempt >= e.cfg.CorrectiveRetries {
			return nil, err
		}
		logger.Warnf("[Extractor] 分块 %d 输出不合格, 重新提示: %s", c.Index+1, schemaErr.Reason)
		req.Prompt = llm.CorrectivePrompt(prompt, schemaErr.Reason)
	}
}

// Validate 检查单个分块的输出，并规整情绪取值
func Validate(x *model.ContentExtraction) error {
	var problems []string
	sentiment, ok := model.ParseSentiment(string(x.Sentiment))
	if !ok {
		problems = append(problems, fmt.Sprintf("sentiment %q is not one of excited, stressed, celebratory, neutral, mixed", x.Sentiment))
	} else {
		x.Sentiment = sentiment
	}
	for i, topic := range x.Topics {
		if strings.TrimSpace(topic.Name) == "" {
			problems = append(problems, fmt.Sprintf("topics[%d].name is empty", i))
		}
		if topic.Frequency < 0 {
			problems = append(problems, fmt.Sprintf("topics[%d].frequency is negative", i))
		}
	}
	for i, a := range x.Achievements {
		if strings.TrimSpace(a.What) == "" {
			problems = append(problems, fmt.Sprintf("achievements[%d].what is empty", i))
		}
	}
	for i, q := range x.Quotes {
		if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.Author) == "" {
			problems = append(problems, fmt.Sprintf("quotes[%d] needs both text and author", i))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &llm.SchemaError{Reason: strings.Join(problems, "; ")}
}
