package model

import (
	"strings"
	"time"
)

// Message 解析后的单条消息，解析完成后不再修改
type Message struct {
	Author           string
	Timestamp        time.Time
	Text             string
	SourceLineNumber int
	Raw              string // 原始行文本，用于分块重建
}

// Transcript 按源顺序排列的消息（不保证全局按时间排序）
type Transcript struct {
	Messages []Message
}

func (t *Transcript) Len() int {
	return len(t.Messages)
}

// FilteredText 过滤系统消息和无法解析的行之后的文本，每条消息一行
func (t *Transcript) FilteredText() string {
	var sb strings.Builder
	for _, m := range t.Messages {
		sb.WriteString(m.Raw)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Authors 按首次出现顺序返回作者
func (t *Transcript) Authors() []string {
	seen := make(map[string]bool)
	authors := make([]string, 0)
	for _, m := range t.Messages {
		if !seen[m.Author] {
			seen[m.Author] = true
			authors = append(authors, m.Author)
		}
	}
	return authors
}

// DominantYear 消息最多的年份，无消息时返回 0
func (t *Transcript) DominantYear() int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, m := range t.Messages {
		y := m.Timestamp.Year()
		counts[y]++
		if counts[y] > bestCount || (counts[y] == bestCount && y < best) {
			best, bestCount = y, counts[y]
		}
	}
	return best
}
