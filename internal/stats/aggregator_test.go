package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(author string, ts time.Time, text string) model.Message {
	return model.Message{Author: author, Timestamp: ts, Text: text}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestAggregate_Empty(t *testing.T) {
	for _, tr := range []*model.Transcript{nil, {}} {
		r := Aggregate(tr, nil)
		ch := r.Channel
		assert.False(t, ch.HasData)
		assert.Equal(t, model.NoPeakHour, ch.PeakHour)
		assert.Equal(t, "", ch.PeakDay)
		assert.Equal(t, "", ch.MostActiveDate)
		assert.Equal(t, 0, ch.TotalMessages)
		assert.Equal(t, [4]int{}, ch.QuarterlyCounts)
		assert.Empty(t, r.Contributors)
		assert.Empty(t, FunFacts(r))
	}
}

func TestAggregate_ThreeMessagesTwoQuarters(t *testing.T) {
	tr := &model.Transcript{Messages: []model.Message{
		msg("alice", at(2025, 2, 3, 9), "Kicked off the migration project"),
		msg("bob", at(2025, 2, 3, 10), "nice https://example.com/pr/1 @alice"),
		msg("alice", at(2025, 5, 6, 9), "Migration done 🎉🎉"),
	}}

	r := Aggregate(tr, nil)
	ch := r.Channel
	assert.True(t, ch.HasData)
	assert.Equal(t, 3, ch.TotalMessages)
	assert.Equal(t, 2, ch.TotalContributors)
	assert.Equal(t, [4]int{2, 1, 0, 0}, ch.QuarterlyCounts)
	assert.Equal(t, 2, ch.ActiveDays)
	assert.Equal(t, 5+1+3, ch.TotalWords)
	assert.Equal(t, 9, ch.PeakHour)
	assert.Equal(t, "2025-02-03", ch.MostActiveDate)

	require.Len(t, r.Contributors, 2)
	assert.Equal(t, "alice", r.Contributors[0].Identity)
	assert.Equal(t, 2, r.Contributors[0].MessageCount)
	assert.Equal(t, 66.7, r.Contributors[0].ContributionPercent)
	assert.Equal(t, 33.3, r.Contributors[1].ContributionPercent)
	assert.Equal(t, []string{"migration", "done", "kicked"}, r.Contributors[0].FavoriteWords)

	require.NotEmpty(t, r.TopEmoji)
	assert.Equal(t, model.TermCount{Term: "🎉", Count: 2}, r.TopEmoji[0])
}

func TestAggregate_PeakTieBreaks(t *testing.T) {
	// 周日 23 点与周六 0 点各一条，计数相同时取较小下标
	tr := &model.Transcript{Messages: []model.Message{
		msg("a", at(2025, 3, 8, 23), "x"),  // Saturday 23:00
		msg("b", at(2025, 3, 9, 0), "y"),   // Sunday 00:00
		msg("c", at(2025, 3, 15, 23), "z"), // Saturday 23:00
		msg("d", at(2025, 3, 16, 0), "w"),  // Sunday 00:00
	}}
	for i := 0; i < 20; i++ {
		r := Aggregate(tr, nil)
		assert.Equal(t, 0, r.Channel.PeakHour)
		assert.Equal(t, "Sunday", r.Channel.PeakDay)
		assert.Equal(t, "2025-03-08", r.Channel.MostActiveDate)
	}
}

func TestAggregate_RankingStableByFirstSeen(t *testing.T) {
	tr := &model.Transcript{Messages: []model.Message{
		msg("zed", at(2025, 1, 1, 1), "a"),
		msg("amy", at(2025, 1, 1, 2), "b"),
		msg("kim", at(2025, 1, 1, 3), "c"),
		msg("kim", at(2025, 1, 1, 4), "d"),
	}}
	r := Aggregate(tr, nil)
	ids := []string{}
	for _, c := range r.Contributors {
		ids = append(ids, c.Identity)
	}
	assert.Equal(t, []string{"kim", "zed", "amy"}, ids)
}

func TestContributionPercents(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
	}{
		{"三等分", []int{1, 1, 1}},
		{"七人", []int{5, 4, 3, 3, 2, 1, 1}},
		{"大量长尾", func() []int {
			c := make([]int, 40)
			for i := range c {
				c[i] = 1
			}
			c[0] = 7
			return c
		}()},
		{"单人", []int{12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := 0
			for _, c := range tt.counts {
				total += c
			}
			got := contributionPercents(tt.counts, total)
			sum := 0.0
			for i, p := range got {
				exact := float64(tt.counts[i]) * 100 / float64(total)
				assert.InDelta(t, exact, p, 0.1001, "index %d", i)
				sum += p
			}
			assert.InDelta(t, 100, sum, 0.5)
		})
	}

	assert.Equal(t, []float64{0, 0}, contributionPercents([]int{0, 0}, 0))
}

func TestAggregate_Idempotent(t *testing.T) {
	var msgs []model.Message
	for i := 0; i < 200; i++ {
		msgs = append(msgs, msg(fmt.Sprintf("user%d", i%7), at(2025, time.Month(i%12+1), i%28+1, i%24), "shipping release notes today 🚀"))
	}
	tr := &model.Transcript{Messages: msgs}
	opts := config.DefaultOptions()
	opts.Teams = []config.Team{{Name: "core", Members: []string{"user1", "user2"}}}

	first := Aggregate(tr, &opts)
	second := Aggregate(tr, &opts)
	assert.Equal(t, first, second)
}

func TestAggregate_Teams(t *testing.T) {
	opts := config.DefaultOptions()
	opts.Teams = []config.Team{{Name: "core", Members: []string{"alice", "bob"}}}
	opts.UserMappings = []config.UserMapping{{Identity: "carol", DisplayName: "Carol C", Team: "design"}}

	tr := &model.Transcript{Messages: []model.Message{
		msg("alice", at(2025, 1, 1, 1), "a"),
		msg("bob", at(2025, 1, 1, 1), "b"),
		msg("bob", at(2025, 1, 1, 1), "c"),
		msg("carol", at(2025, 1, 1, 1), "d"),
		msg("dave", at(2025, 1, 1, 1), "e"),
	}}
	r := Aggregate(tr, &opts)
	require.Len(t, r.Teams, 2)
	assert.Equal(t, model.TeamStatistics{Name: "core", Messages: 3, Members: 2, AveragePerPerson: 1.5, TopContributor: "bob"}, r.Teams[0])
	assert.Equal(t, "design", r.Teams[1].Name)

	for _, c := range r.Contributors {
		if c.Identity == "carol" {
			assert.Equal(t, "Carol C", c.DisplayName)
		}
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"普通文本", "ship it now", 3},
		{"去除链接", "see https://example.com/x for details", 3},
		{"去除 slack 链接", "see <https://example.com|docs>", 1},
		{"去除提及", "<@U123ABC> and @bob please review", 3},
		{"邮箱不算提及", "mail me@example.com", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestFunFacts(t *testing.T) {
	tr := &model.Transcript{Messages: []model.Message{
		msg("alice", at(2025, 1, 6, 15), "deploy deploy deploy 🚀"),
		msg("bob", at(2025, 1, 6, 15), "deploy rollback"),
	}}
	facts := FunFacts(Aggregate(tr, nil))
	require.Len(t, facts, 5)
	assert.Equal(t, model.FunFact{Label: "Peak Hour", Value: "3:00 PM", Detail: "Mondays are the busiest day"}, facts[0])
	assert.Equal(t, "Avg Message", facts[1].Label)
	assert.Equal(t, "deploy, rollback", facts[2].Value)
	assert.Equal(t, "🚀", facts[3].Value)
	assert.Equal(t, "2025-01-06", facts[4].Value)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "12:00 AM", FormatHour(0))
	assert.Equal(t, "12:00 PM", FormatHour(12))
	assert.Equal(t, "11:00 PM", FormatHour(23))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,000", FormatCount(1000))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}
