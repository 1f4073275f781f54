package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Team 团队及其成员
type Team struct {
	Name    string   `yaml:"name" json:"name"`
	Members []string `yaml:"members" json:"members"`
}

// UserMapping 作者标识到展示名/团队的映射
type UserMapping struct {
	Identity    string `yaml:"identity" json:"identity"`
	DisplayName string `yaml:"displayName" json:"displayName"`
	Team        string `yaml:"team" json:"team"`
}

// Options 单次生成的可选参数
type Options struct {
	SubjectName          string        `yaml:"subjectName" json:"subjectName"`
	Year                 int           `yaml:"year" json:"year"`
	DefaultYear          int           `yaml:"defaultYear" json:"defaultYear"` // 无年份格式使用的年份，为 0 时取 Year
	Timezone             string        `yaml:"timezone" json:"timezone"`       // 无时区时间戳的解释时区，默认 UTC
	Teams                []Team        `yaml:"teams" json:"teams"`
	UserMappings         []UserMapping `yaml:"userMappings" json:"userMappings"`
	IncludeRoasts        bool          `yaml:"includeRoasts" json:"includeRoasts"`
	TopContributorsCount int           `yaml:"topContributorsCount" json:"topContributorsCount"`
	Context              string        `yaml:"context" json:"context"` // 额外背景，附加到提示词
}

func DefaultOptions() Options {
	return Options{
		SubjectName:          "channel",
		IncludeRoasts:        true,
		TopContributorsCount: 5,
	}
}

// LoadOptions 读取 YAML 或 JSON 选项文件，未出现的字段保留默认值
func LoadOptions(filename string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(filename)
	if err != nil {
		return opts, err
	}

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		err = json.Unmarshal(data, &opts)
	} else {
		err = yaml.Unmarshal(data, &opts)
	}
	if err != nil {
		return opts, fmt.Errorf("解析选项文件失败: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate 验证选项
func (o *Options) Validate() error {
	if o.TopContributorsCount <= 0 {
		return fatalf("topContributorsCount", "必须大于 0")
	}
	if o.Year != 0 && (o.Year < 2000 || o.Year > 2100) {
		return fatalf("year", "必须在 2000-2100 之间")
	}
	if o.DefaultYear < 0 {
		return fatalf("defaultYear", "必须 >= 0")
	}
	if _, err := o.Location(); err != nil {
		return fatalf("timezone", "无效: %v", err)
	}
	for _, m := range o.UserMappings {
		if m.Identity == "" {
			return fatalf("userMappings", "identity 不能为空")
		}
	}
	return nil
}

// ResolvedDefaultYear 无年份时间戳使用的年份，0 表示未配置
func (o *Options) ResolvedDefaultYear() int {
	if o.DefaultYear > 0 {
		return o.DefaultYear
	}
	return o.Year
}

// Location 解析时区，默认 UTC
func (o *Options) Location() (*time.Location, error) {
	if o.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(o.Timezone)
}

// DisplayName 返回作者的展示名，未映射时返回原标识
func (o *Options) DisplayName(identity string) string {
	for _, m := range o.UserMappings {
		if strings.EqualFold(m.Identity, identity) && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	return identity
}

// Team 返回作者所属团队，映射优先于团队成员列表
func (o *Options) Team(identity string) string {
	for _, m := range o.UserMappings {
		if strings.EqualFold(m.Identity, identity) && m.Team != "" {
			return m.Team
		}
	}
	for _, t := range o.Teams {
		for _, member := range t.Members {
			if strings.EqualFold(member, identity) {
				return t.Name
			}
		}
	}
	return ""
}
