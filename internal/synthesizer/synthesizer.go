package synthesizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/stats"
	"github.com/invopop/jsonschema"
)

const synthesisMaxTokens = 3000

// Input 第二阶段的全部输入，不包含原始消息
type Input struct {
	SubjectName     string
	Year            int
	Context         string
	IncludeRoasts   bool
	TopContributors int
	Report          *stats.Report
	Extraction      *model.MergedExtraction
}

type Synthesizer struct {
	gen               llm.Generator
	correctiveRetries int
	schema            *jsonschema.Schema
}

func NewSynthesizer(gen llm.Generator, correctiveRetries int) *Synthesizer {
	return &Synthesizer{
		gen:               gen,
		correctiveRetries: max(correctiveRetries, 0),
		schema:            llm.SchemaFor(&model.SynthesizedInsights{}),
	}
}

// Synthesize 生成并校验洞察
// 校验失败时带着问题重新提示，仍失败则返回错误，由调用方降级
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*model.SynthesizedInsights, error) {
	if in.Report == nil {
		return nil, errors.New("缺少统计数据")
	}
	logger.Infof("[Synthesizer] 开始生成 %s %d 的年度洞察", in.SubjectName, in.Year)

	prompt := buildPrompt(in, s.schema)
	req := llm.Request{
		Name:       "synthesize",
		System:     systemPrompt,
		Prompt:     prompt,
		SchemaName: "synthesized_insights",
		Schema:     s.schema,
		MaxTokens:  synthesisMaxTokens,
	}

	for attempt := 0; ; attempt++ {
		out, _, err := llm.GenerateJSON[model.SynthesizedInsights](ctx, s.gen, req)
		if err == nil {
			if err = Validate(out, in); err == nil {
				fillDisplayNames(out, in.Report.Contributors)
				logger.Infof("[Synthesizer] 完成, 话题 %d 个, 人物 %d 个", len(out.TopicHighlights), len(out.PersonalityTypes))
				return out, nil
			}
		}

		var schemaErr *llm.SchemaError
		if !errors.As(err, &schemaErr) || attempt >= s.correctiveRetries {
			return nil, fmt.Errorf("生成洞察失败: %w", err)
		}
		logger.Warnf("[Synthesizer] 输出校验失败, 重新提示: %s", schemaErr.Reason)
		req.Prompt = llm.CorrectivePrompt(prompt, schemaErr.Reason)
	}
}

func fillDisplayNames(out *model.SynthesizedInsights, contributors []model.ContributorRecord) {
	names := make(map[string]string, len(contributors))
	for _, c := range contributors {
		names[c.Identity] = c.DisplayName
	}
	for i := range out.PersonalityTypes {
		p := &out.PersonalityTypes[i]
		if name, ok := names[p.Username]; ok {
			p.DisplayName = name
		}
	}
}
