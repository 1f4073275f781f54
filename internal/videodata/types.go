package videodata

import (
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/parser"
)

// Mode 生成方式
type Mode string

const (
	ModeAI       Mode = "ai"
	ModeDegraded Mode = "degraded"
)

// VideoData 交给渲染端的最终产物，字段名统一为 camelCase
// contentAnalysis 只在 AI 模式下出现，其余部分两种模式结构相同
type VideoData struct {
	ChannelStats      ChannelStats      `json:"channelStats"`
	QuarterlyActivity []QuarterActivity `json:"quarterlyActivity"`
	TopContributors   []TopContributor  `json:"topContributors"`
	FunFacts          []FunFact         `json:"funFacts"`
	Insights          Insights          `json:"insights"`
	ContentAnalysis   *ContentAnalysis  `json:"contentAnalysis,omitempty"`
	Meta              Meta              `json:"meta"`
	Diagnostics       *Diagnostics      `json:"diagnostics,omitempty"`
}

type ChannelStats struct {
	TotalMessages        int     `json:"totalMessages"`
	TotalWords           int     `json:"totalWords"`
	TotalContributors    int     `json:"totalContributors"`
	ActiveDays           int     `json:"activeDays"`
	PeakHour             int     `json:"peakHour"` // 无数据时为 -1
	PeakDay              string  `json:"peakDay"`
	AverageMessageLength float64 `json:"averageMessageLength"`
	MostActiveDate       string  `json:"mostActiveDate"`
	QuarterlyCounts      [4]int  `json:"quarterlyCounts"`
}

type QuarterActivity struct {
	Quarter    string   `json:"quarter"`
	Messages   int      `json:"messages"`
	Highlights []string `json:"highlights"`
}

type TopContributor struct {
	Username            string  `json:"username"`
	DisplayName         string  `json:"displayName"`
	Team                string  `json:"team"`
	MessageCount        int     `json:"messageCount"`
	ContributionPercent float64 `json:"contributionPercent"`
	FunTitle            string  `json:"funTitle"`
	FunFact             string  `json:"funFact"`
}

type FunFact struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Detail string `json:"detail"`
}

// Insights 两种模式都会输出；降级时来自模板
type Insights struct {
	YearStory       *model.YearStory `json:"yearStory"`
	StatsHighlights []string         `json:"statsHighlights"`
	Roasts          []string         `json:"roasts"`
}

// ContentAnalysis 模型综合得到的内容分析，要么完整出现，要么不出现
type ContentAnalysis struct {
	YearStory        *model.YearStory        `json:"yearStory"`
	TopicHighlights  []model.TopicHighlight  `json:"topicHighlights"`
	BestQuotes       []model.Quote           `json:"bestQuotes"`
	PersonalityTypes []model.PersonalityType `json:"personalityTypes"`
	OverallSentiment model.Sentiment         `json:"overallSentiment"`
}

type Meta struct {
	ChannelName string `json:"channelName"`
	Year        int    `json:"year"`
	GeneratedAt string `json:"generatedAt"`
	Mode        Mode   `json:"mode"`
	RunID       string `json:"runId,omitempty"`
}

// Diagnostics 运行级诊断：解析统计、分块失败、综合失败原因与用量
type Diagnostics struct {
	Parse           parser.Stats         `json:"parse"`
	SkippedSamples  []parser.SkippedLine `json:"skippedSamples"`
	ChunksTotal     int                  `json:"chunksTotal"`
	ChunksSucceeded int                  `json:"chunksSucceeded"`
	ChunkFailures   int                  `json:"chunkFailures"`
	FailedChunks    []model.ChunkFailure `json:"failedChunks"`
	SynthesisError  string               `json:"synthesisError,omitempty"`
	Reasons         []string             `json:"reasons"`
	Usage           llm.Usage            `json:"usage"`
}
