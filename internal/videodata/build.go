package videodata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/stats"
)

const maxQuarterHighlights = 3

// Source 组装产物所需的输入
// Synthesized 为空表示降级，此时使用 Fallback 并且不输出 contentAnalysis
type Source struct {
	SubjectName     string
	Year            int
	TopContributors int
	Report          *stats.Report
	Extraction      *model.MergedExtraction
	Synthesized     *model.SynthesizedInsights
	Fallback        *model.SynthesizedInsights
	GeneratedAt     time.Time
	RunID           string
}

// Build 组装 VideoData，所有切片字段非 nil，序列化后为 []
func Build(src Source) *VideoData {
	chosen := src.Synthesized
	mode := ModeAI
	if chosen == nil {
		chosen = src.Fallback
		mode = ModeDegraded
	}
	if chosen == nil {
		chosen = &model.SynthesizedInsights{}
	}

	ch := src.Report.Channel
	data := &VideoData{
		ChannelStats: ChannelStats{
			TotalMessages:        ch.TotalMessages,
			TotalWords:           ch.TotalWords,
			TotalContributors:    ch.TotalContributors,
			ActiveDays:           ch.ActiveDays,
			PeakHour:             ch.PeakHour,
			PeakDay:              ch.PeakDay,
			AverageMessageLength: ch.AverageMessageLength,
			MostActiveDate:       ch.MostActiveDate,
			QuarterlyCounts:      ch.QuarterlyCounts,
		},
		QuarterlyActivity: quarterlyActivity(ch.QuarterlyCounts, src.Synthesized),
		TopContributors:   topContributors(src.Report.Contributors, chosen.PersonalityTypes, src.TopContributors),
		FunFacts:          funFacts(src.Report),
		Insights: Insights{
			YearStory:       chosen.YearStory,
			StatsHighlights: nonNil(chosen.StatsHighlights),
			Roasts:          nonNil(chosen.Roasts),
		},
		Meta: Meta{
			ChannelName: src.SubjectName,
			Year:        src.Year,
			GeneratedAt: src.GeneratedAt.UTC().Format(time.RFC3339),
			Mode:        mode,
			RunID:       src.RunID,
		},
	}

	if src.Synthesized != nil {
		sentiment := model.SentimentNeutral
		if src.Extraction != nil && src.Extraction.OverallSentiment != "" {
			sentiment = src.Extraction.OverallSentiment
		}
		data.ContentAnalysis = &ContentAnalysis{
			YearStory:        src.Synthesized.YearStory,
			TopicHighlights:  nonNil(src.Synthesized.TopicHighlights),
			BestQuotes:       nonNil(src.Synthesized.BestQuotes),
			PersonalityTypes: nonNil(src.Synthesized.PersonalityTypes),
			OverallSentiment: sentiment,
		}
	}
	return data
}

// quarterlyActivity 季度亮点取自话题亮点中标注了该季度的条目
func quarterlyActivity(counts [4]int, synthesized *model.SynthesizedInsights) []QuarterActivity {
	quarters := make([]QuarterActivity, 4)
	for i := range quarters {
		label := fmt.Sprintf("Q%d", i+1)
		quarters[i] = QuarterActivity{Quarter: label, Messages: counts[i], Highlights: make([]string, 0)}
		if synthesized == nil {
			continue
		}
		for _, t := range synthesized.TopicHighlights {
			if len(quarters[i].Highlights) >= maxQuarterHighlights {
				break
			}
			if mentionsQuarter(t.Period, i+1) {
				quarters[i].Highlights = append(quarters[i].Highlights, t.Topic)
			}
		}
	}
	return quarters
}

// mentionsQuarter 判断 "Q2 2025"、"Q1-Q3 2025" 这类标签是否覆盖第 q 季度
func mentionsQuarter(period string, q int) bool {
	period = strings.ToUpper(period)
	var from, to int
	if n, _ := fmt.Sscanf(period, "Q%d-Q%d", &from, &to); n == 2 {
		return q >= from && q <= to
	}
	return strings.Contains(period, fmt.Sprintf("Q%d", q))
}

func topContributors(records []model.ContributorRecord, personalities []model.PersonalityType, limit int) []TopContributor {
	if limit <= 0 {
		limit = 5
	}
	byUser := make(map[string]model.PersonalityType, len(personalities))
	for _, p := range personalities {
		byUser[p.Username] = p
	}

	out := make([]TopContributor, 0, min(limit, len(records)))
	for i, c := range records {
		if i >= limit {
			break
		}
		team := c.Team
		if team == "" {
			team = "Team"
		}
		tc := TopContributor{
			Username:            c.Identity,
			DisplayName:         c.DisplayName,
			Team:                team,
			MessageCount:        c.MessageCount,
			ContributionPercent: c.ContributionPercent,
			FunTitle:            "Active Contributor",
			FunFact:             fmt.Sprintf("Sent %s messages", stats.FormatCount(c.MessageCount)),
		}
		if p, ok := byUser[c.Identity]; ok {
			tc.FunTitle = p.PersonalityType
			if p.FunFact != "" {
				tc.FunFact = p.FunFact
			}
		}
		out = append(out, tc)
	}
	return out
}

func funFacts(r *stats.Report) []FunFact {
	facts := stats.FunFacts(r)
	out := make([]FunFact, len(facts))
	for i, f := range facts {
		out[i] = FunFact{Label: f.Label, Value: f.Value, Detail: f.Detail}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return make([]T, 0)
	}
	return items
}

// Save 以缩进 JSON 写入文件，必要时创建目录
func Save(data *VideoData, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 VideoData 失败: %w", err)
	}
	return os.WriteFile(filename, content, 0o644)
}

// Load 读取已生成的 VideoData
func Load(filename string) (*VideoData, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data VideoData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("解析 VideoData 失败: %w", err)
	}
	return &data, nil
}
