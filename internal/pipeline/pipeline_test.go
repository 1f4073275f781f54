package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/parser"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeMessages = `2025-02-10T09:15:00Z alice: kicking off the search rewrite
user bob joined the channel
2025-02-10T10:30:00Z bob: search rewrite looks great
2025-08-01T16:00:00Z alice: search rewrite shipped 🎉
`

// scriptedGenerator 按调用名返回预设内容
type scriptedGenerator struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(name string, call int) (string, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[req.Name]++
	call := g.calls[req.Name]
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := g.respond(req.Name, call)
	if err != nil {
		return nil, err
	}
	return &llm.Result{Text: text, Attempts: 1}, nil
}

func testConfig() config.Pipeline {
	return config.Pipeline{
		ChunkChars:        1, // 每条消息单独成块
		Concurrency:       2,
		CorrectiveRetries: 1,
		MaxTopics:         15,
		MaxAchievements:   20,
		MaxQuotes:         20,
		MaxPatterns:       10,
		RunTimeoutSeconds: 60,
	}
}

func testOptions() config.Options {
	opts := config.DefaultOptions()
	opts.SubjectName = "search-team"
	return opts
}

func extractionFor(name string) string {
	x := model.ContentExtraction{
		Topics:    []model.Topic{{Name: "Search rewrite", Frequency: 1, SampleQuotes: []string{name}}},
		Sentiment: model.SentimentExcited,
		Quotes:    []model.Quote{{Text: "quote from " + name, Author: "alice"}},
	}
	data, _ := json.Marshal(x)
	return string(data)
}

func insightsJSON() string {
	x := model.SynthesizedInsights{
		YearStory:        &model.YearStory{Opening: "o", Arc: "a", Climax: "c", Closing: "e"},
		TopicHighlights:  []model.TopicHighlight{{Topic: "Search rewrite", Insight: "all year", Period: "Q1 2025"}},
		BestQuotes:       []model.Quote{{Text: "search rewrite shipped", Author: "alice"}},
		PersonalityTypes: []model.PersonalityType{{Username: "alice", PersonalityType: "The Shipper", Evidence: "shipped search"}},
		StatsHighlights:  []string{"3 messages"},
		Roasts:           []string{},
	}
	data, _ := json.Marshal(x)
	return string(data)
}

func toMap(t *testing.T, data *videodata.VideoData) map[string]any {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestRun_NoAI(t *testing.T) {
	p := New(nil, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, StateDegraded, res.State)
	assert.NotEmpty(t, res.RunID)
	require.NoError(t, res.VideoData.Validate())

	cs := res.VideoData.ChannelStats
	assert.Equal(t, 3, cs.TotalMessages)
	assert.Equal(t, 2, cs.TotalContributors)
	sum := 0
	for _, n := range cs.QuarterlyCounts {
		sum += n
	}
	assert.Equal(t, 3, sum)
	assert.Equal(t, [4]int{2, 0, 1, 0}, cs.QuarterlyCounts)
	assert.Equal(t, 2025, res.VideoData.Meta.Year)

	m := toMap(t, res.VideoData)
	assert.NotContains(t, m, "contentAnalysis")
	assert.Contains(t, m, "insights")
	assert.Equal(t, []string{ReasonAIDisabled}, res.Diagnostics.Reasons)
	assert.Equal(t, 1, res.Diagnostics.Parse.SystemLines)
}

func TestRun_WithAI(t *testing.T) {
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		if name == "synthesize" {
			return insightsJSON(), nil
		}
		return extractionFor(name), nil
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccessAI, res.Status)
	assert.Equal(t, StateDone, res.State)
	require.NotNil(t, res.VideoData.ContentAnalysis)
	assert.Equal(t, videodata.ModeAI, res.VideoData.Meta.Mode)
	assert.Equal(t, "The Shipper", res.VideoData.TopContributors[0].FunTitle)
	assert.Equal(t, 3, res.Diagnostics.ChunksTotal)
	assert.Equal(t, 0, res.Diagnostics.ChunkFailures)
	assert.Empty(t, res.Diagnostics.Reasons)
	require.NoError(t, res.VideoData.Validate())
}

func TestRun_MiddleChunkFails(t *testing.T) {
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		switch name {
		case "synthesize":
			return insightsJSON(), nil
		case "extract#2":
			return `{"topics":[],"sentiment":"bored"}`, nil
		default:
			return extractionFor(name), nil
		}
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccessAI, res.Status)
	assert.Equal(t, 1, res.Diagnostics.ChunkFailures)
	assert.Equal(t, 2, res.Diagnostics.ChunksSucceeded)
	require.Len(t, res.Diagnostics.FailedChunks, 1)
	assert.Equal(t, 1, res.Diagnostics.FailedChunks[0].Index)
	assert.Equal(t, []string{ReasonChunkFailed + ":2"}, res.Diagnostics.Reasons)
	assert.Equal(t, 2, gen.calls["extract#2"])
}

func TestRun_AllChunksFail(t *testing.T) {
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		return "", llm.ErrTransient
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 0, res.Diagnostics.ChunksSucceeded)
	assert.Equal(t, 3, res.Diagnostics.ChunkFailures)
	assert.Contains(t, res.Diagnostics.Reasons, ReasonAllChunksFailed)
	assert.Zero(t, gen.calls["synthesize"])

	m := toMap(t, res.VideoData)
	assert.NotContains(t, m, "contentAnalysis")
	require.NoError(t, res.VideoData.Validate())
	assert.Equal(t, 3, res.VideoData.ChannelStats.TotalMessages)
	assert.NotEmpty(t, res.VideoData.TopContributors)
	assert.NotNil(t, res.VideoData.Insights.YearStory)
}

func TestRun_SynthesisInvalid(t *testing.T) {
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		if name == "synthesize" {
			return `{"personalityTypes":[{"username":"mallory","personalityType":"X","evidence":"e"}]}`, nil
		}
		return extractionFor(name), nil
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, 2, gen.calls["synthesize"])
	assert.Contains(t, res.Diagnostics.SynthesisError, "not a contributor")
	assert.Equal(t, []string{ReasonSynthesisFailed}, res.Diagnostics.Reasons)
	assert.Nil(t, res.VideoData.ContentAnalysis)
}

func TestRun_SynthesisTimeoutIsNotCancellation(t *testing.T) {
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		if name == "synthesize" {
			return "", fmt.Errorf("%w: %w", llm.ErrTransient, context.DeadlineExceeded)
		}
		return extractionFor(name), nil
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(context.Background(), threeMessages, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, []string{ReasonSynthesisFailed}, res.Diagnostics.Reasons)
	assert.NotContains(t, res.Diagnostics.Reasons, ReasonCancelled)
	assert.NotEmpty(t, res.Diagnostics.SynthesisError)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGenerator{respond: func(name string, call int) (string, error) {
		return extractionFor(name), nil
	}}
	p := New(gen, testConfig(), "")
	res, err := p.Run(ctx, threeMessages, testOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Contains(t, res.Diagnostics.Reasons, ReasonCancelled)
	require.NoError(t, res.VideoData.Validate())
}

func TestRun_InputErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"空输入", "  \n\n", parser.ErrEmptyInput},
		{"格式不匹配", "hello there\nno timestamps here\n", parser.ErrNoMessages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(nil, testConfig(), "")
			res, err := p.Run(context.Background(), tt.raw, testOptions())
			require.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, res)
			assert.Equal(t, StatusInputError, res.Status)
			assert.Nil(t, res.VideoData)
		})
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.TopContributorsCount = 0
	_, err := New(nil, testConfig(), "").Run(context.Background(), threeMessages, opts)
	var fatal *config.FatalConfigError
	assert.True(t, errors.As(err, &fatal))
}

func TestRunRecords(t *testing.T) {
	records := `{"author":"alice","timestamp":"2025-03-01T10:00:00Z","text":"opened PR #12"}
{"author":"bob","timestamp":"2025-03-02T11:00:00Z","text":"reviewed PR #12"}
`
	res, err := New(nil, testConfig(), "").RunRecords(context.Background(), strings.NewReader(records), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.VideoData.ChannelStats.TotalMessages)
	assert.Equal(t, [4]int{2, 0, 0, 0}, res.VideoData.ChannelStats.QuarterlyCounts)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{"开始提取", StateReady, EventStart, StateExtracting, false},
		{"未开始即降级", StateReady, EventFailed, StateDegraded, false},
		{"提取完成", StateExtracting, EventExtracted, StateSynthesizing, false},
		{"提取失败", StateExtracting, EventFailed, StateDegraded, false},
		{"综合完成", StateSynthesizing, EventSynthesized, StateDone, false},
		{"综合失败", StateSynthesizing, EventFailed, StateDegraded, false},
		{"跳过提取", StateReady, EventSynthesized, StateReady, true},
		{"终止状态不可迁移", StateDone, EventFailed, StateDone, true},
		{"降级后不可恢复", StateDegraded, EventStart, StateDegraded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.On(tt.event)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateDegraded.Terminal())
	assert.False(t, StateSynthesizing.Terminal())
	assert.Equal(t, "SYNTHESIZING", StateSynthesizing.String())
}
