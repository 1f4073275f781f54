package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator 按请求返回预设内容，并记录每次调用
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []llm.Request
	models  []string
	respond func(req llm.Request) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.models = append(f.models, llm.ModelFrom(ctx, "default-model"))
	f.mu.Unlock()

	text, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.Result{Text: text, Attempts: 1}, nil
}

func (f *fakeGenerator) callsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func extractionJSON(topic string, sentiment model.Sentiment, quote, author string) string {
	x := model.ContentExtraction{
		Topics:       []model.Topic{{Name: topic, Frequency: 3, SampleQuotes: []string{quote}}},
		Achievements: []model.Achievement{{Who: author, What: "shipped " + topic}},
		Sentiment:    sentiment,
		Quotes:       []model.Quote{{Text: quote, Author: author, Context: "said it"}},
		Patterns:     []string{"talks about " + topic},
	}
	data, _ := json.Marshal(x)
	return string(data)
}

// makeTranscript 每行原文固定 9 个字符，加换行共 10 个字符
func makeTranscript(n int) *model.Transcript {
	t := &model.Transcript{}
	base := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		t.Messages = append(t.Messages, model.Message{
			Author:           fmt.Sprintf("user%d", i%2),
			Timestamp:        base.AddDate(0, 0, i*30),
			Text:             fmt.Sprintf("m%d", i),
			SourceLineNumber: i + 1,
			Raw:              fmt.Sprintf("line-%04d", i),
		})
	}
	return t
}

func testPipeline() config.Pipeline {
	return config.Pipeline{
		ChunkChars:        20,
		Concurrency:       3,
		CorrectiveRetries: 1,
		MaxTopics:         15,
		MaxAchievements:   20,
		MaxQuotes:         20,
		MaxPatterns:       10,
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		messages int
		maxChars int
		want     int
	}{
		{"每块两条", 6, 20, 3},
		{"余数单独成块", 5, 20, 3},
		{"全部放入一块", 5, 1000, 1},
		{"上限小于单条消息", 4, 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := makeTranscript(tt.messages)
			chunks := Split(tr, tt.maxChars)
			require.Len(t, chunks, tt.want)

			var sb strings.Builder
			total := 0
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				sb.WriteString(c.Text)
				total += len(c.Messages)
				if len(c.Messages) > 1 {
					assert.LessOrEqual(t, len([]rune(c.Text)), tt.maxChars)
				}
			}
			assert.Equal(t, tr.FilteredText(), sb.String())
			assert.Equal(t, tt.messages, total)
		})
	}
}

func TestSplit_NeverSplitsMessage(t *testing.T) {
	tr := &model.Transcript{Messages: []model.Message{
		{Author: "a", Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Raw: "2025-03-01 00:00 a: " + strings.Repeat("x", 80)},
		{Author: "b", Timestamp: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Raw: "2025-03-02 00:00 b: short"},
		{Author: "c", Timestamp: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Raw: "2025-03-03 00:00 c: 多字节内容"},
	}}
	chunks := Split(tr, 60)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Messages, 1)
	assert.Len(t, chunks[1].Messages, 2)
	for _, c := range chunks {
		for _, m := range c.Messages {
			assert.Contains(t, c.Text, m.Raw+"\n")
		}
	}
	assert.Nil(t, Split(&model.Transcript{}, 40))
}

func TestPeriodLabel(t *testing.T) {
	d := func(y int, m time.Month) time.Time { return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name       string
		start, end time.Time
		want       string
	}{
		{"同一季度", d(2025, 1), d(2025, 3), "Q1 2025"},
		{"跨季度", d(2025, 2), d(2025, 8), "Q1-Q3 2025"},
		{"跨年", d(2024, 11), d(2025, 1), "Q4 2024-Q1 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodLabel(tt.start, tt.end))
		})
	}
}

func TestExtract_MiddleChunkInvalid(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		switch req.Name {
		case "extract#1":
			return extractionJSON("Deploys", model.SentimentExcited, "we shipped it", "user0"), nil
		case "extract#2":
			return extractionJSON("Outage", "furious", "everything is down", "user1"), nil
		default:
			return extractionJSON("Offsite", model.SentimentCelebratory, "see you in Lisbon", "user1"), nil
		}
	}}

	e := New(gen, testPipeline(), "")
	outcome, err := e.Extract(context.Background(), makeTranscript(6), "eng", "")
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Chunks)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, 1, outcome.Failures[0].Index)
	assert.Contains(t, outcome.Failures[0].Reason, "sentiment")
	// 不合格输出只重新提示一次
	assert.Equal(t, 2, gen.callsFor("extract#2"))

	merged := outcome.Merged
	assert.Equal(t, 2, merged.ChunksSucceeded)
	assert.Equal(t, 3, merged.ChunksTotal)
	names := make([]string, 0)
	for _, topic := range merged.Topics {
		names = append(names, topic.Name)
	}
	assert.ElementsMatch(t, []string{"Deploys", "Offsite"}, names)
	for _, q := range merged.Quotes {
		assert.NotEqual(t, "everything is down", q.Text)
	}
	require.Len(t, merged.Timeline, 2)
	assert.Equal(t, 0, merged.Timeline[0].ChunkIndex)
	assert.Equal(t, 2, merged.Timeline[1].ChunkIndex)
}

func TestExtract_CorrectiveRepromptSucceeds(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == 1 {
			return "sorry, I can't produce JSON", nil
		}
		assert.Contains(t, req.Prompt, "previous response was rejected")
		return extractionJSON("Hiring", model.SentimentNeutral, "welcome aboard", "user0"), nil
	}}

	e := New(gen, testPipeline(), "")
	outcome, err := e.Extract(context.Background(), makeTranscript(2), "eng", "")
	require.NoError(t, err)
	assert.Empty(t, outcome.Failures)
	assert.Equal(t, 1, outcome.Merged.ChunksSucceeded)
	assert.Equal(t, 2, seen)
}

func TestExtract_CorrectiveRepromptDisabled(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		return "sorry, I can't produce JSON", nil
	}}

	cfg := testPipeline()
	cfg.CorrectiveRetries = -1
	e := New(gen, cfg, "")
	outcome, err := e.Extract(context.Background(), makeTranscript(2), "eng", "")
	require.ErrorIs(t, err, ErrAllChunksFailed)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, 1, len(gen.calls))
}

func TestExtract_AllChunksFail(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		return "", fmt.Errorf("重试 3 次后仍失败: %w", llm.ErrTransient)
	}}

	e := New(gen, testPipeline(), "")
	outcome, err := e.Extract(context.Background(), makeTranscript(6), "eng", "")
	require.ErrorIs(t, err, ErrAllChunksFailed)
	require.NotNil(t, outcome)
	assert.Len(t, outcome.Failures, 3)
	assert.Equal(t, 0, outcome.Merged.ChunksSucceeded)
	// 临时错误不会触发重新提示
	assert.Equal(t, 3, len(gen.calls))
}

func TestExtract_ResultsFollowChunkIndex(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		var idx int
		fmt.Sscanf(req.Name, "extract#%d", &idx)
		// 越靠前的分块越晚完成
		time.Sleep(time.Duration(10-idx) * 5 * time.Millisecond)
		return extractionJSON(fmt.Sprintf("topic-%d", idx), model.SentimentNeutral, fmt.Sprintf("quote-%d", idx), "user0"), nil
	}}

	cfg := testPipeline()
	cfg.Concurrency = 8
	e := New(gen, cfg, "")
	outcome, err := e.Extract(context.Background(), makeTranscript(16), "eng", "")
	require.NoError(t, err)
	require.Equal(t, 8, outcome.Chunks)

	chunks := Split(makeTranscript(16), cfg.ChunkChars)
	for i, q := range outcome.Merged.Quotes {
		assert.Equal(t, fmt.Sprintf("quote-%d", i+1), q.Text)
		assert.Equal(t, chunks[i].Period, q.Period)
	}
	for i, p := range outcome.Merged.Timeline {
		assert.Equal(t, i, p.ChunkIndex)
	}
}

func TestExtract_ModelOverrideOnlyInPass(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		return extractionJSON("Infra", model.SentimentStressed, "pager again", "user0"), nil
	}}

	e := New(gen, testPipeline(), "cheap-model")
	ctx := context.Background()
	_, err := e.Extract(ctx, makeTranscript(4), "eng", "")
	require.NoError(t, err)
	for _, m := range gen.models {
		assert.Equal(t, "cheap-model", m)
	}
	assert.Equal(t, "default-model", llm.ModelFrom(ctx, "default-model"))
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		return "", fmt.Errorf("任务已取消: %w", context.Canceled)
	}}

	e := New(gen, testPipeline(), "")
	_, err := e.Extract(ctx, makeTranscript(6), "eng", "")
	assert.ErrorIs(t, err, ErrAllChunksFailed)
}

func TestMerge_TopicDedup(t *testing.T) {
	extractions := []*model.ContentExtraction{
		{
			Topics: []model.Topic{
				{Name: "Kubernetes", Frequency: 2, SampleQuotes: []string{"first k8s quote"}},
				{Name: "Lunch", Frequency: 1},
			},
			Sentiment: model.SentimentExcited,
		},
		nil,
		{
			Topics: []model.Topic{
				{Name: "kubernetes ", Frequency: 5, SampleQuotes: []string{"later k8s quote"}},
				{Name: "Coffee", Frequency: 1},
			},
			Patterns:  []string{"Friday demos", "friday  demos"},
			Sentiment: model.SentimentStressed,
		},
	}

	merged := Merge(extractions, nil, Limits{Topics: 2})
	require.Len(t, merged.Topics, 2)
	assert.Equal(t, "Kubernetes", merged.Topics[0].Name)
	assert.Equal(t, 7, merged.Topics[0].Frequency)
	assert.Equal(t, []string{"first k8s quote"}, merged.Topics[0].SampleQuotes)
	// 同频次按首次出现顺序
	assert.Equal(t, "Lunch", merged.Topics[1].Name)
	assert.Equal(t, []string{"Friday demos"}, merged.Patterns)
	assert.Equal(t, 2, merged.ChunksSucceeded)
	assert.Equal(t, model.SentimentMixed, merged.OverallSentiment)
}

func TestMerge_CapsKeepEarliest(t *testing.T) {
	x := &model.ContentExtraction{Sentiment: model.SentimentNeutral}
	for i := 0; i < 30; i++ {
		x.Quotes = append(x.Quotes, model.Quote{Text: fmt.Sprintf("q%d", i), Author: "a"})
		x.Achievements = append(x.Achievements, model.Achievement{Who: "a", What: fmt.Sprintf("w%d", i)})
	}
	merged := Merge([]*model.ContentExtraction{x}, nil, Limits{Quotes: 4, Achievements: 3})
	require.Len(t, merged.Quotes, 4)
	assert.Equal(t, "q0", merged.Quotes[0].Text)
	assert.Equal(t, "q3", merged.Quotes[3].Text)
	assert.Len(t, merged.Achievements, 3)
	assert.Equal(t, model.SentimentNeutral, merged.OverallSentiment)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		x       model.ContentExtraction
		wantErr bool
	}{
		{"合法", model.ContentExtraction{Sentiment: "Excited"}, false},
		{"未知情绪", model.ContentExtraction{Sentiment: "angry"}, true},
		{"空话题名", model.ContentExtraction{Sentiment: "neutral", Topics: []model.Topic{{Name: " "}}}, true},
		{"语录缺作者", model.ContentExtraction{Sentiment: "neutral", Quotes: []model.Quote{{Text: "hi"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.x)
			if tt.wantErr {
				var schemaErr *llm.SchemaError
				assert.ErrorAs(t, err, &schemaErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.SentimentExcited, tt.x.Sentiment)
		})
	}
}
