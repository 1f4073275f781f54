package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fachebot/talk-wrapped/internal/model"
)

// Record 外部数据源（GitHub PR/Review、Slack 导出）产出的结构化记录
type Record struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// ParseRecords 读取 JSON Lines 格式的记录
// 无效记录计入跳过，不中断读取
func (p *Parser) ParseRecords(r io.Reader) (*Result, error) {
	result := &Result{
		Stats: Stats{Formats: make(map[string]int)},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	messages := make([]model.Message, 0)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			result.Stats.EmptyLines++
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			p.skip(result, lineNumber, line, ReasonInvalidRecord)
			continue
		}
		text := strings.Join(strings.Fields(rec.Text), " ")
		if rec.Author == "" || text == "" || rec.Timestamp.IsZero() {
			p.skip(result, lineNumber, line, ReasonInvalidRecord)
			continue
		}
		if isSystemLine(text) {
			result.Stats.SystemLines++
			continue
		}

		author := strings.Join(strings.Fields(rec.Author), "_")
		messages = append(messages, model.Message{
			Author:           author,
			Timestamp:        rec.Timestamp,
			Text:             text,
			SourceLineNumber: lineNumber,
			Raw:              fmt.Sprintf("%s %s: %s", rec.Timestamp.Format(time.RFC3339), author, text),
		})
		result.Stats.Parsed++
		result.Stats.Formats["record"]++
	}
	result.Stats.TotalLines = lineNumber
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("读取记录失败: %w", err)
	}

	result.Transcript = model.Transcript{Messages: messages}
	if lineNumber == result.Stats.EmptyLines {
		return result, ErrEmptyInput
	}
	if len(messages) == 0 {
		return result, ErrNoMessages
	}
	return result, nil
}
