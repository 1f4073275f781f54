package extractor

import (
	"sort"
	"strings"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/model"
)

// Limits 合并后每类内容的上限
type Limits struct {
	Topics       int
	Achievements int
	Quotes       int
	Patterns     int
}

func limitsFrom(cfg config.Pipeline) Limits {
	return Limits{
		Topics:       cfg.MaxTopics,
		Achievements: cfg.MaxAchievements,
		Quotes:       cfg.MaxQuotes,
		Patterns:     cfg.MaxPatterns,
	}
}

// Merge 按分块索引顺序合并，extractions[i] 为 nil 表示分块 i 失败
// 话题忽略大小写去重、频次累加，只保留最先出现的一条示例语录
// 其他类别按出现顺序拼接去重后截断
func Merge(extractions []*model.ContentExtraction, chunks []Chunk, limits Limits) *model.MergedExtraction {
	merged := &model.MergedExtraction{
		Topics:       make([]model.Topic, 0),
		Achievements: make([]model.Achievement, 0),
		Quotes:       make([]model.Quote, 0),
		Patterns:     make([]string, 0),
		Timeline:     make([]model.SentimentPoint, 0),
		ChunksTotal:  len(extractions),
	}

	topicIndex := make(map[string]int)
	seenAchievements := make(map[string]bool)
	seenQuotes := make(map[string]bool)
	seenPatterns := make(map[string]bool)

	for i, x := range extractions {
		if x == nil {
			continue
		}
		merged.ChunksSucceeded++
		period := ""
		if i < len(chunks) {
			period = chunks[i].Period
		}

		for _, topic := range x.Topics {
			name := strings.TrimSpace(topic.Name)
			key := strings.ToLower(name)
			if key == "" {
				continue
			}
			idx, ok := topicIndex[key]
			if !ok {
				idx = len(merged.Topics)
				topicIndex[key] = idx
				merged.Topics = append(merged.Topics, model.Topic{Name: name, SampleQuotes: make([]string, 0, 1)})
			}
			t := &merged.Topics[idx]
			t.Frequency += max(topic.Frequency, 0)
			if len(t.SampleQuotes) == 0 {
				for _, q := range topic.SampleQuotes {
					if q = strings.TrimSpace(q); q != "" {
						t.SampleQuotes = append(t.SampleQuotes, q)
						break
					}
				}
			}
		}

		for _, a := range x.Achievements {
			key := normalizeKey(a.Who) + "|" + normalizeKey(a.What)
			if seenAchievements[key] {
				continue
			}
			seenAchievements[key] = true
			if a.When == "" {
				a.When = period
			}
			merged.Achievements = append(merged.Achievements, a)
		}

		for _, q := range x.Quotes {
			key := normalizeKey(q.Text)
			if seenQuotes[key] {
				continue
			}
			seenQuotes[key] = true
			q.Period = period
			merged.Quotes = append(merged.Quotes, q)
		}

		for _, p := range x.Patterns {
			p = strings.TrimSpace(p)
			key := normalizeKey(p)
			if key == "" || seenPatterns[key] {
				continue
			}
			seenPatterns[key] = true
			merged.Patterns = append(merged.Patterns, p)
		}

		merged.Timeline = append(merged.Timeline, model.SentimentPoint{
			ChunkIndex: i,
			Period:     period,
			Sentiment:  x.Sentiment,
			Trend:      x.SentimentTrend,
		})
	}

	// 频次降序，相同频次保持首次出现顺序
	sort.SliceStable(merged.Topics, func(i, j int) bool {
		return merged.Topics[i].Frequency > merged.Topics[j].Frequency
	})
	merged.Topics = truncate(merged.Topics, limits.Topics)
	merged.Achievements = truncate(merged.Achievements, limits.Achievements)
	merged.Quotes = truncate(merged.Quotes, limits.Quotes)
	merged.Patterns = truncate(merged.Patterns, limits.Patterns)
	merged.OverallSentiment = overallSentiment(merged.Timeline)
	return merged
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// overallSentiment 出现次数最多的情绪，并列时为 mixed，没有数据时为 neutral
func overallSentiment(timeline []model.SentimentPoint) model.Sentiment {
	if len(timeline) == 0 {
		return model.SentimentNeutral
	}
	counts := make(map[model.Sentiment]int)
	for _, p := range timeline {
		counts[p.Sentiment]++
	}
	var (
		best model.Sentiment
		top  int
		ties int
	)
	for _, p := range timeline {
		c := counts[p.Sentiment]
		switch {
		case c > top:
			best, top, ties = p.Sentiment, c, 1
		case c == top && p.Sentiment != best:
			ties++
		}
	}
	if ties > 1 {
		return model.SentimentMixed
	}
	return best
}
