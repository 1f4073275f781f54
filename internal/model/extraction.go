package model

import "strings"

// Sentiment 分块情绪
type Sentiment string

const (
	SentimentExcited     Sentiment = "excited"
	SentimentStressed    Sentiment = "stressed"
	SentimentCelebratory Sentiment = "celebratory"
	SentimentNeutral     Sentiment = "neutral"
	SentimentMixed       Sentiment = "mixed"
)

var sentiments = []Sentiment{SentimentExcited, SentimentStressed, SentimentCelebratory, SentimentNeutral, SentimentMixed}

// ParseSentiment 大小写不敏感地解析情绪，未知值返回 false
func ParseSentiment(s string) (Sentiment, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range sentiments {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

type Topic struct {
	Name         string   `json:"name"`
	Frequency    int      `json:"frequency" jsonschema:"minimum=0"`
	SampleQuotes []string `json:"sampleQuotes"`
}

type Achievement struct {
	Who  string `json:"who"`
	What string `json:"what"`
	When string `json:"when"`
}

type Quote struct {
	Text    string `json:"text"`
	Author  string `json:"author"`
	Context string `json:"context"`
	Period  string `json:"period,omitempty"`
}

// ContentExtraction 单个分块的提取结果
type ContentExtraction struct {
	Topics         []Topic       `json:"topics"`
	Achievements   []Achievement `json:"achievements"`
	Sentiment      Sentiment     `json:"sentiment" jsonschema:"enum=excited,enum=stressed,enum=celebratory,enum=neutral,enum=mixed"`
	SentimentTrend string        `json:"sentimentTrend,omitempty"`
	Quotes         []Quote       `json:"quotes"`
	Patterns       []string      `json:"patterns"`
}

// SentimentPoint 情绪时间线上的一个点
type SentimentPoint struct {
	ChunkIndex int
	Period     string
	Sentiment  Sentiment
	Trend      string
}

// MergedExtraction 所有成功分块合并后的提取结果
type MergedExtraction struct {
	Topics           []Topic
	Achievements     []Achievement
	Quotes           []Quote
	Patterns         []string
	Timeline         []SentimentPoint
	OverallSentiment Sentiment
	ChunksTotal      int
	ChunksSucceeded  int
}

// ChunkFailure 单个分块失败记录
type ChunkFailure struct {
	Index  int    `json:"index"`
	Period string `json:"period"`
	Reason string `json:"reason"`
}
