package model

// NoPeakHour 无数据时 PeakHour 的取值
const NoPeakHour = -1

// DayNames 按 time.Weekday 顺序（周日为 0）
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ChannelStatistics 频道整体统计
// 空转录时 HasData 为 false，PeakHour 为 NoPeakHour，PeakDay 与 MostActiveDate 为空字符串
type ChannelStatistics struct {
	HasData              bool
	TotalMessages        int
	TotalWords           int
	TotalContributors    int
	ActiveDays           int
	PeakHour             int
	PeakDay              string
	QuarterlyCounts      [4]int
	HourlyCounts         [24]int
	WeekdayCounts        [7]int
	AverageMessageLength float64 // 平均每条消息的词数
	MostActiveDate       string  // 2006-01-02
	MostActiveDateCount  int
}

// ContributorRecord 单个作者的贡献
type ContributorRecord struct {
	Identity            string
	DisplayName         string
	Team                string
	MessageCount        int
	WordCount           int
	ContributionPercent float64
	FavoriteWords       []string
}

// TeamStatistics 团队汇总
type TeamStatistics struct {
	Name             string
	Messages         int
	Members          int
	AveragePerPerson float64
	TopContributor   string
}

// TermCount 词语或表情的出现次数
type TermCount struct {
	Term  string
	Count int
}

// FunFact 趣味数据卡片
type FunFact struct {
	Label  string
	Value  string
	Detail string
}
