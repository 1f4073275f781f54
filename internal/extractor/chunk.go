package extractor

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fachebot/talk-wrapped/internal/model"
)

// DefaultChunkChars 单个分块的默认字符上限
const DefaultChunkChars = 50000

// Chunk 按消息边界切分的一段转录
type Chunk struct {
	Index    int
	Messages []model.Message
	Text     string // 每条消息原始行 + 换行
	Start    time.Time
	End      time.Time
	Period   string
}

// Split 顺序切分，每块不超过 maxChars 个字符且不会拆开单条消息
// 单条消息本身超过上限时独占一块
// 所有分块的 Text 按顺序拼接等于 Transcript.FilteredText()
func Split(t *model.Transcript, maxChars int) []Chunk {
	if t == nil || len(t.Messages) == 0 {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}

	chunks := make([]Chunk, 0)
	var (
		current []model.Message
		sb      strings.Builder
		size    int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, newChunk(len(chunks), current, sb.String()))
		current = nil
		sb.Reset()
		size = 0
	}

	for _, m := range t.Messages {
		line := m.Raw + "\n"
		n := utf8.RuneCountInString(line)
		if size+n > maxChars && len(current) > 0 {
			flush()
		}
		current = append(current, m)
		sb.WriteString(line)
		size += n
	}
	flush()
	return chunks
}

func newChunk(index int, msgs []model.Message, text string) Chunk {
	start, end := msgs[0].Timestamp, msgs[0].Timestamp
	for _, m := range msgs[1:] {
		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}
	return Chunk{
		Index:    index,
		Messages: msgs,
		Text:     text,
		Start:    start,
		End:      end,
		Period:   PeriodLabel(start, end),
	}
}

func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// PeriodLabel 季度标签，例如 "Q1 2025"、"Q1-Q2 2025"、"Q4 2024-Q1 2025"
func PeriodLabel(start, end time.Time) string {
	sq, eq := quarterOf(start), quarterOf(end)
	switch {
	case start.Year() == end.Year() && sq == eq:
		return fmt.Sprintf("Q%d %d", sq, start.Year())
	case start.Year() == end.Year():
		return fmt.Sprintf("Q%d-Q%d %d", sq, eq, start.Year())
	default:
		return fmt.Sprintf("Q%d %d-Q%d %d", sq, start.Year(), eq, end.Year())
	}
}
