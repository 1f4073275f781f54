package stats

import (
	"sort"

	"github.com/fachebot/talk-wrapped/internal/model"
)

const (
	topWordsLimit      = 10
	topEmojiLimit      = 5
	favoriteWordsLimit = 3
)

// identityResolver 作者展示名与团队查询
type identityResolver interface {
	DisplayName(identity string) string
	Team(identity string) string
}

// Report 聚合结果
type Report struct {
	Channel      model.ChannelStatistics
	Contributors []model.ContributorRecord // 按消息数降序，相同则按首次出现顺序
	Teams        []model.TeamStatistics
	TopWords     []model.TermCount
	TopEmoji     []model.TermCount
}

type authorAcc struct {
	identity  string
	firstSeen int
	messages  int
	words     int
	terms     map[string]int
}

// Aggregate 单次遍历计算统计结果，相同输入得到完全相同的输出
func Aggregate(transcript *model.Transcript, resolver identityResolver) *Report {
	report := &Report{
		Channel: model.ChannelStatistics{PeakHour: model.NoPeakHour},
	}
	if transcript == nil || len(transcript.Messages) == 0 {
		report.Contributors = []model.ContributorRecord{}
		report.Teams = []model.TeamStatistics{}
		report.TopWords = []model.TermCount{}
		report.TopEmoji = []model.TermCount{}
		return report
	}

	ch := &report.Channel
	authors := make(map[string]*authorAcc)
	order := make([]*authorAcc, 0)
	dates := make(map[string]int)
	wordCounts := make(map[string]int)
	emojiCounts := make(map[string]int)

	for _, m := range transcript.Messages {
		acc, ok := authors[m.Author]
		if !ok {
			acc = &authorAcc{identity: m.Author, firstSeen: len(order), terms: make(map[string]int)}
			authors[m.Author] = acc
			order = append(order, acc)
		}

		words := CountWords(m.Text)
		acc.messages++
		acc.words += words
		ch.TotalMessages++
		ch.TotalWords += words

		ch.HourlyCounts[m.Timestamp.Hour()]++
		ch.WeekdayCounts[m.Timestamp.Weekday()]++
		ch.QuarterlyCounts[(int(m.Timestamp.Month())-1)/3]++
		dates[m.Timestamp.Format("2006-01-02")]++

		for _, w := range contentWords(m.Text) {
			wordCounts[w]++
			acc.terms[w]++
		}
		for _, e := range emojis(m.Text) {
			emojiCounts[e]++
		}
	}

	ch.HasData = true
	ch.TotalContributors = len(order)
	ch.ActiveDays = len(dates)
	ch.AverageMessageLength = float64(ch.TotalWords) / float64(ch.TotalMessages)
	ch.PeakHour = argmax(ch.HourlyCounts[:])
	ch.PeakDay = model.DayNames[argmax(ch.WeekdayCounts[:])]
	ch.MostActiveDate, ch.MostActiveDateCount = mostActiveDate(dates)

	report.Contributors = rankContributors(order, ch.TotalMessages, resolver)
	report.Teams = teamStatistics(report.Contributors)
	report.TopWords = topTerms(wordCounts, topWordsLimit)
	report.TopEmoji = topTerms(emojiCounts, topEmojiLimit)
	return report
}

// argmax 相同计数取最小下标
func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// mostActiveDate 相同计数取最早日期
func mostActiveDate(dates map[string]int) (string, int) {
	keys := make([]string, 0, len(dates))
	for d := range dates {
		keys = append(keys, d)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, d := range keys {
		if dates[d] > bestCount {
			best, bestCount = d, dates[d]
		}
	}
	return best, bestCount
}

func rankContributors(order []*authorAcc, total int, resolver identityResolver) []model.ContributorRecord {
	ranked := make([]*authorAcc, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].messages > ranked[j].messages
	})

	counts := make([]int, len(ranked))
	for i, acc := range ranked {
		counts[i] = acc.messages
	}
	percents := contributionPercents(counts, total)

	records := make([]model.ContributorRecord, len(ranked))
	for i, acc := range ranked {
		displayName, team := acc.identity, ""
		if resolver != nil {
			displayName = resolver.DisplayName(acc.identity)
			team = resolver.Team(acc.identity)
		}
		favorites := make([]string, 0, favoriteWordsLimit)
		for _, tc := range topTerms(acc.terms, favoriteWordsLimit) {
			favorites = append(favorites, tc.Term)
		}
		records[i] = model.ContributorRecord{
			Identity:            acc.identity,
			DisplayName:         displayName,
			Team:                team,
			MessageCount:        acc.messages,
			WordCount:           acc.words,
			ContributionPercent: percents[i],
			FavoriteWords:       favorites,
		}
	}
	return records
}

// contributionPercents 以 0.1% 为单位按最大余数法分配，总和恰好为 100
// counts 需已按排名顺序排列，余数相同时排名靠前者优先
func contributionPercents(counts []int, total int) []float64 {
	percents := make([]float64, len(counts))
	if total == 0 {
		return percents
	}

	const units = 1000
	tenths := make([]int, len(counts))
	remainders := make([]int, len(counts))
	assigned := 0
	for i, c := range counts {
		tenths[i] = c * units / total
		remainders[i] = c * units % total
		assigned += tenths[i]
	}

	idx := make([]int, len(counts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return remainders[idx[a]] > remainders[idx[b]]
	})
	for k := 0; k < units-assigned && k < len(idx); k++ {
		tenths[idx[k]]++
	}

	for i, t := range tenths {
		percents[i] = float64(t) / 10
	}
	return percents
}

func teamStatistics(contributors []model.ContributorRecord) []model.TeamStatistics {
	byName := make(map[string]*model.TeamStatistics)
	teams := make([]*model.TeamStatistics, 0)
	for _, c := range contributors {
		if c.Team == "" {
			continue
		}
		ts, ok := byName[c.Team]
		if !ok {
			// contributors 已排序，首个成员即为团队内贡献最多者
			ts = &model.TeamStatistics{Name: c.Team, TopContributor: c.Identity}
			byName[c.Team] = ts
			teams = append(teams, ts)
		}
		ts.Messages += c.MessageCount
		ts.Members++
	}

	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Messages != teams[j].Messages {
			return teams[i].Messages > teams[j].Messages
		}
		return teams[i].Name < teams[j].Name
	})

	out := make([]model.TeamStatistics, len(teams))
	for i, ts := range teams {
		ts.AveragePerPerson = float64(ts.Messages) / float64(ts.Members)
		out[i] = *ts
	}
	return out
}

// topTerms 按次数降序、相同次数按字典序
func topTerms(counts map[string]int, limit int) []model.TermCount {
	terms := make([]model.TermCount, 0, len(counts))
	for term, n := range counts {
		terms = append(terms, model.TermCount{Term: term, Count: n})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
