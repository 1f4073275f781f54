package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/fachebot/talk-wrapped/internal/model"
)

var (
	// ErrEmptyInput 输入为空（空频道）
	ErrEmptyInput = errors.New("输入为空")
	// ErrNoMessages 输入非空但没有任何一行能被解析（格式不匹配）
	ErrNoMessages = errors.New("未能解析出任何消息")
)

// 跳过原因
const (
	ReasonUnrecognized  = "unrecognized_format"
	ReasonBadTimestamp  = "invalid_timestamp"
	ReasonMissingYear   = "missing_default_year"
	ReasonInvalidRecord = "invalid_record"
)

// SkippedLine 无法解析的行
type SkippedLine struct {
	LineNumber int    `json:"lineNumber"`
	Text       string `json:"text"`
	Reason     string `json:"reason"`
}

// Stats 解析统计
type Stats struct {
	TotalLines  int            `json:"totalLines"`
	EmptyLines  int            `json:"emptyLines"`
	SystemLines int            `json:"systemLines"`
	Parsed      int            `json:"parsed"`
	Skipped     int            `json:"skipped"`
	Yearless    int            `json:"yearless"` // 使用默认年份的消息数
	Formats     map[string]int `json:"formats"`
}

// Result 解析结果
type Result struct {
	Transcript model.Transcript
	Stats      Stats
	Skipped    []SkippedLine // 最多保留 Options.MaxSkippedSamples 条
}

type Options struct {
	// DefaultYear 无年份格式（simple、time_first）使用的年份
	// 为 0 时这些行被跳过并记为 missing_default_year
	DefaultYear int
	// Location 无时区时间戳的解释时区，默认 UTC
	Location *time.Location
	// MaxSkippedSamples 保留的跳过行样本数，默认 50
	MaxSkippedSamples int
}

type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxSkippedSamples <= 0 {
		opts.MaxSkippedSamples = 50
	}
	return &Parser{opts: opts}
}

// Parse 将原始文本解析为消息序列
// 单行错误不会中断解析，只会计入 Stats.Skipped
// 返回 ErrEmptyInput 或 ErrNoMessages 时 Result 仍然有效，可用于诊断
func (p *Parser) Parse(raw string) (*Result, error) {
	result := &Result{
		Stats: Stats{Formats: make(map[string]int)},
	}
	if strings.TrimSpace(raw) == "" {
		return result, ErrEmptyInput
	}

	lines := strings.Split(strings.TrimRight(raw, "\r\n"), "\n")
	result.Stats.TotalLines = len(lines)
	messages := make([]model.Message, 0, len(lines))

	for i, line := range lines {
		lineNumber := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			result.Stats.EmptyLines++
			continue
		}

		if isSystemLine(line) {
			result.Stats.SystemLines++
			continue
		}

		msg, format, reason := p.parseLine(line)
		if reason != "" {
			p.skip(result, lineNumber, line, reason)
			continue
		}

		msg.SourceLineNumber = lineNumber
		messages = append(messages, msg)
		result.Stats.Parsed++
		result.Stats.Formats[format.String()]++
		if !format.HasYear() {
			result.Stats.Yearless++
		}
	}

	result.Transcript = model.Transcript{Messages: messages}
	if len(messages) == 0 {
		return result, ErrNoMessages
	}
	return result, nil
}

// parseLine 依次尝试各格式，返回第一个结构和时间戳都有效的匹配
func (p *Parser) parseLine(line string) (model.Message, Format, string) {
	reason := ReasonUnrecognized
	for _, pattern := range patterns {
		groups := pattern.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}

		if !pattern.format.HasYear() && p.opts.DefaultYear <= 0 {
			reason = ReasonMissingYear
			continue
		}

		ts, ok := parseStamp(pattern.format, groups[pattern.stamp], p.opts.DefaultYear, p.opts.Location)
		if !ok {
			reason = ReasonBadTimestamp
			continue
		}

		return model.Message{
			Author:    groups[pattern.author],
			Timestamp: ts,
			Text:      strings.TrimSpace(groups[pattern.text]),
			Raw:       line,
		}, pattern.format, ""
	}
	return model.Message{}, 0, reason
}

func (p *Parser) skip(result *Result, lineNumber int, text, reason string) {
	result.Stats.Skipped++
	if len(result.Skipped) < p.opts.MaxSkippedSamples {
		result.Skipped = append(result.Skipped, SkippedLine{
			LineNumber: lineNumber,
			Text:       text,
			Reason:     reason,
		})
	}
}
