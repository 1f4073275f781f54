package videodata

import (
	"errors"
	"fmt"
	"strings"
)

// Validate 检查产物是否满足渲染端的约定
func (v *VideoData) Validate() error {
	var errs []error
	if strings.TrimSpace(v.Meta.ChannelName) == "" {
		errs = append(errs, errors.New("meta.channelName 不能为空"))
	}
	if v.Meta.Year < 2000 || v.Meta.Year > 2100 {
		errs = append(errs, fmt.Errorf("meta.year 超出范围: %d", v.Meta.Year))
	}
	if v.Meta.Mode != ModeAI && v.Meta.Mode != ModeDegraded {
		errs = append(errs, fmt.Errorf("meta.mode 无效: %q", v.Meta.Mode))
	}

	cs := v.ChannelStats
	if cs.TotalMessages <= 0 {
		errs = append(errs, errors.New("channelStats.totalMessages 必须大于 0"))
	}
	if cs.TotalContributors <= 0 {
		errs = append(errs, errors.New("channelStats.totalContributors 必须大于 0"))
	}
	if cs.TotalWords < 0 || cs.ActiveDays < 0 {
		errs = append(errs, errors.New("channelStats 存在负数"))
	}

	sum := 0
	for _, q := range v.QuarterlyActivity {
		sum += q.Messages
	}
	if sum > cs.TotalMessages {
		errs = append(errs, fmt.Errorf("季度消息数之和 %d 超过总数 %d", sum, cs.TotalMessages))
	}
	if len(v.TopContributors) == 0 {
		errs = append(errs, errors.New("topContributors 不能为空"))
	}

	if v.Meta.Mode == ModeDegraded && v.ContentAnalysis != nil {
		errs = append(errs, errors.New("降级产物不应包含 contentAnalysis"))
	}
	if ca := v.ContentAnalysis; ca != nil {
		if len(ca.TopicHighlights) > 5 || len(ca.BestQuotes) > 4 {
			errs = append(errs, errors.New("contentAnalysis 数组长度超出上限"))
		}
	}
	return errors.Join(errs...)
}
