package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/extractor"
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/parser"
	"github.com/fachebot/talk-wrapped/internal/stats"
	"github.com/fachebot/talk-wrapped/internal/synthesizer"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	"github.com/google/uuid"
)

// Status 一次运行的结果类别
type Status string

const (
	StatusSuccessAI  Status = "success-with-ai"
	StatusDegraded   Status = "success-degraded"
	StatusInputError Status = "input-error"
)

// 降级原因
const (
	ReasonAIDisabled      = "ai_disabled"
	ReasonAllChunksFailed = "all_chunks_failed"
	ReasonChunkFailed     = "chunk_failed"
	ReasonSynthesisFailed = "synthesis_failed"
	ReasonCancelled       = "cancelled"
)

// Result 运行结果；input-error 时 VideoData 为空
type Result struct {
	RunID       string
	Status      Status
	State       State
	VideoData   *videodata.VideoData
	Diagnostics *videodata.Diagnostics
}

type Pipeline struct {
	gen         llm.Generator // 为空时直接走降级模板
	extractor   *extractor.Extractor
	synthesizer *synthesizer.Synthesizer
	cfg         config.Pipeline
	now         func() time.Time
}

// New 创建流程；gen 为 nil 表示不使用 AI
func New(gen llm.Generator, cfg config.Pipeline, extractionModel string) *Pipeline {
	p := &Pipeline{
		gen: gen,
		cfg: cfg,
		now: time.Now,
	}
	if gen != nil {
		p.extractor = extractor.New(gen, cfg, extractionModel)
		p.synthesizer = synthesizer.NewSynthesizer(gen, cfg.CorrectiveRetries)
	}
	return p
}

// Run 解析原始转录文本并生成产物
func (p *Pipeline) Run(ctx context.Context, raw string, opts config.Options) (*Result, error) {
	return p.run(ctx, opts, func(ps *parser.Parser) (*parser.Result, error) {
		return ps.Parse(raw)
	})
}

// RunRecords 以 JSON Lines 结构化记录为输入
func (p *Pipeline) RunRecords(ctx context.Context, r io.Reader, opts config.Options) (*Result, error) {
	return p.run(ctx, opts, func(ps *parser.Parser) (*parser.Result, error) {
		return ps.ParseRecords(r)
	})
}

func (p *Pipeline) run(ctx context.Context, opts config.Options, parse func(*parser.Parser) (*parser.Result, error)) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	loc, err := opts.Location()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if p.cfg.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	parsed, err := parse(parser.New(parser.Options{
		DefaultYear: opts.ResolvedDefaultYear(),
		Location:    loc,
	}))
	diag := &videodata.Diagnostics{
		SkippedSamples: make([]parser.SkippedLine, 0),
		FailedChunks:   make([]model.ChunkFailure, 0),
		Reasons:        make([]string, 0),
	}
	if parsed != nil {
		diag.Parse = parsed.Stats
		if parsed.Skipped != nil {
			diag.SkippedSamples = parsed.Skipped
		}
	}
	if err != nil {
		logger.Warnf("[Pipeline] %s 输入无效: %v", runID, err)
		return &Result{RunID: runID, Status: StatusInputError, State: StateReady, Diagnostics: diag}, err
	}

	transcript := &parsed.Transcript
	year := opts.Year
	if year == 0 {
		year = transcript.DominantYear()
	}
	logger.Infof("[Pipeline] %s 解析完成: %d 条消息, 跳过 %d 行, 系统消息 %d 行",
		runID, parsed.Stats.Parsed, parsed.Stats.Skipped, parsed.Stats.SystemLines)

	report := stats.Aggregate(transcript, &opts)
	in := synthesizer.Input{
		SubjectName:     opts.SubjectName,
		Year:            year,
		Context:         opts.Context,
		IncludeRoasts:   opts.IncludeRoasts,
		TopContributors: opts.TopContributorsCount,
		Report:          report,
	}

	tracker := llm.NewUsageTracker()
	ctx = llm.WithUsage(ctx, tracker)
	state, synthesized, extraction := p.analyze(ctx, runID, transcript, &in, diag)
	diag.Usage = tracker.Snapshot()

	source := videodata.Source{
		SubjectName:     opts.SubjectName,
		Year:            year,
		TopContributors: opts.TopContributorsCount,
		Report:          report,
		Extraction:      extraction,
		GeneratedAt:     p.now(),
		RunID:           runID,
	}
	status := StatusSuccessAI
	if state == StateDone {
		source.Synthesized = synthesized
	} else {
		status = StatusDegraded
		source.Fallback = synthesizer.Fallback(in)
	}

	data := videodata.Build(source)
	data.Diagnostics = diag
	if err := data.Validate(); err != nil {
		logger.Warnf("[Pipeline] %s 产物校验未通过: %v", runID, err)
	}
	logger.Infof("[Pipeline] %s 完成, 状态 %s, 结果 %s", runID, state, status)
	return &Result{RunID: runID, Status: status, State: state, VideoData: data, Diagnostics: diag}, nil
}

// analyze 依次执行两个阶段，返回终止状态
func (p *Pipeline) analyze(ctx context.Context, runID string, transcript *model.Transcript, in *synthesizer.Input, diag *videodata.Diagnostics) (State, *model.SynthesizedInsights, *model.MergedExtraction) {
	state := StateReady
	advance := func(e Event) {
		next, err := state.On(e)
		if err != nil {
			logger.Errorf("[Pipeline] %s %v", runID, err)
			return
		}
		logger.Debugf("[Pipeline] %s %s -> %s", runID, state, next)
		state = next
	}
	degrade := func(reason string) {
		diag.Reasons = append(diag.Reasons, reason)
		advance(EventFailed)
	}

	if p.gen == nil {
		degrade(ReasonAIDisabled)
		return state, nil, nil
	}

	advance(EventStart)
	outcome, err := p.extractor.Extract(ctx, transcript, in.SubjectName, in.Context)
	if outcome != nil {
		diag.ChunksTotal = outcome.Chunks
		diag.ChunksSucceeded = outcome.Merged.ChunksSucceeded
		diag.ChunkFailures = len(outcome.Failures)
		diag.FailedChunks = append(diag.FailedChunks, outcome.Failures...)
		for _, f := range outcome.Failures {
			diag.Reasons = append(diag.Reasons, fmt.Sprintf("%s:%d", ReasonChunkFailed, f.Index+1))
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			diag.Reasons = append(diag.Reasons, ReasonCancelled)
		}
		degrade(ReasonAllChunksFailed)
		return state, nil, nil
	}

	advance(EventExtracted)
	in.Extraction = outcome.Merged
	insights, err := p.synthesizer.Synthesize(ctx, *in)
	if err != nil {
		diag.SynthesisError = err.Error()
		if ctx.Err() != nil {
			diag.Reasons = append(diag.Reasons, ReasonCancelled)
		}
		degrade(ReasonSynthesisFailed)
		return state, nil, outcome.Merged
	}

	advance(EventSynthesized)
	return state, insights, outcome.Merged
}
