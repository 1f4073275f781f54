package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	ResponseFormatJSONSchema = "json_schema"
	ResponseFormatJSONObject = "json_object"
	ResponseFormatText       = "text"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type LLM struct {
	Provider        string  `yaml:"Provider"` // "openai" / "gemini"
	BaseURL         string  `yaml:"BaseURL"`  // 兼容 OpenAI API 的端点
	APIKey          string  `yaml:"APIKey"`
	Model           string  `yaml:"Model"`           // 综合阶段使用的模型
	ExtractionModel string  `yaml:"ExtractionModel"` // 分块提取使用的模型，为空则沿用 Model
	MaxTokens       int     `yaml:"MaxTokens"`       // 单次调用最大输出 tokens
	Temperature     float32 `yaml:"Temperature"`
	ResponseFormat  string  `yaml:"ResponseFormat"` // "json_schema" / "json_object" / "text"

	TimeoutSeconds        int `yaml:"TimeoutSeconds"`        // 单次调用超时，默认 60
	MaxAttempts           int `yaml:"MaxAttempts"`           // 最大尝试次数，默认 3
	InitialBackoffSeconds int `yaml:"InitialBackoffSeconds"` // 首次退避，默认 1
	MaxBackoffSeconds     int `yaml:"MaxBackoffSeconds"`     // 退避上限，默认 30
	RequestsPerMinute     int `yaml:"RequestsPerMinute"`     // 0 表示不限速
}

type Pipeline struct {
	ChunkChars        int `yaml:"ChunkChars"`        // 单个分块最大字符数，默认 50000
	Concurrency       int `yaml:"Concurrency"`       // 分块提取并发数，默认 4
	CorrectiveRetries int `yaml:"CorrectiveRetries"` // 输出校验失败后的纠正重试次数，未设置为 1，负数表示关闭
	MaxTopics         int `yaml:"MaxTopics"`
	MaxAchievements   int `yaml:"MaxAchievements"`
	MaxQuotes         int `yaml:"MaxQuotes"`
	MaxPatterns       int `yaml:"MaxPatterns"`
	RunTimeoutSeconds int `yaml:"RunTimeoutSeconds"` // 整次运行超时，默认 900
}

type Log struct {
	Dir        string `yaml:"Dir"` // 为空则只输出到控制台
	Filename   string `yaml:"Filename"`
	Level      string `yaml:"Level"`
	MaxSizeMB  int    `yaml:"MaxSizeMB"`
	MaxBackups int    `yaml:"MaxBackups"`
	MaxAgeDays int    `yaml:"MaxAgeDays"`
}

type Store struct {
	Path string `yaml:"Path"` // sqlite 文件路径，默认 data/sqlite.db
}

// Job 定时生成任务
type Job struct {
	Name        string `yaml:"Name"`
	Cron        string `yaml:"Cron"` // cron 表达式，如 "0 3 1 1 *"
	DataFile    string `yaml:"DataFile"`
	OptionsFile string `yaml:"OptionsFile"`
	OutputFile  string `yaml:"OutputFile"`
	NoAI        bool   `yaml:"NoAI"`
}

type Config struct {
	Sock5Proxy Sock5Proxy `yaml:"Sock5Proxy"`
	LLM        LLM        `yaml:"LLM"`
	Pipeline   Pipeline   `yaml:"Pipeline"`
	Log        Log        `yaml:"Log"`
	Store      Store      `yaml:"Store"`
	Jobs       []Job      `yaml:"Jobs"`
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	var c Config
	c.applyEnv()
	c.ApplyDefaults()
	return &c
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal([]byte(data), &c)
	if err != nil {
		return nil, err
	}

	c.applyEnv()
	c.ApplyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// applyEnv 从 .env 与环境变量补充敏感配置
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case ProviderGemini:
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if model := os.Getenv("WRAPPED_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
}

// ApplyDefaults 填充未设置的字段
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.BaseURL == "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		if c.LLM.Provider == ProviderGemini {
			c.LLM.Model = "gemini-2.5-flash"
		} else {
			c.LLM.Model = "gpt-5.2"
		}
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.ResponseFormat == "" {
		c.LLM.ResponseFormat = ResponseFormatJSONObject
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = 3
	}
	if c.LLM.InitialBackoffSeconds <= 0 {
		c.LLM.InitialBackoffSeconds = 1
	}
	if c.LLM.MaxBackoffSeconds <= 0 {
		c.LLM.MaxBackoffSeconds = 30
	}

	if c.Pipeline.ChunkChars <= 0 {
		c.Pipeline.ChunkChars = 50000
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 4
	}
	if c.Pipeline.CorrectiveRetries == 0 {
		c.Pipeline.CorrectiveRetries = 1
	}
	if c.Pipeline.MaxTopics <= 0 {
		c.Pipeline.MaxTopics = 15
	}
	if c.Pipeline.MaxAchievements <= 0 {
		c.Pipeline.MaxAchievements = 20
	}
	if c.Pipeline.MaxQuotes <= 0 {
		c.Pipeline.MaxQuotes = 20
	}
	if c.Pipeline.MaxPatterns <= 0 {
		c.Pipeline.MaxPatterns = 10
	}
	if c.Pipeline.RunTimeoutSeconds <= 0 {
		c.Pipeline.RunTimeoutSeconds = 900
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/sqlite.db"
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 LLM
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return fatalf("LLM.Provider", "必须是 'openai' 或 'gemini'")
	}
	switch c.LLM.ResponseFormat {
	case ResponseFormatJSONSchema, ResponseFormatJSONObject, ResponseFormatText:
	default:
		return fatalf("LLM.ResponseFormat", "必须是 'json_schema', 'json_object' 或 'text'")
	}
	if c.LLM.MaxBackoffSeconds < c.LLM.InitialBackoffSeconds {
		return fatalf("LLM.MaxBackoffSeconds", "不能小于 InitialBackoffSeconds")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fatalf("LLM.RequestsPerMinute", "必须 >= 0")
	}

	// 验证 Pipeline
	if c.Pipeline.ChunkChars < 1000 {
		return fatalf("Pipeline.ChunkChars", "必须 >= 1000")
	}

	// 验证 Jobs
	seen := make(map[string]bool)
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fatalf("Jobs", "第 %d 个任务 Name 不能为空", i+1)
		}
		if seen[job.Name] {
			return fatalf("Jobs", "任务名称重复: %s", job.Name)
		}
		seen[job.Name] = true
		if job.Cron == "" {
			return fatalf("Jobs."+job.Name+".Cron", "不能为空")
		}
		if job.DataFile == "" {
			return fatalf("Jobs."+job.Name+".DataFile", "不能为空")
		}
		if job.OutputFile == "" {
			return fatalf("Jobs."+job.Name+".OutputFile", "不能为空")
		}
	}

	return nil
}

// ValidateLLM 启用 AI 分析时的必需配置
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return fatalf("LLM.APIKey", "不能为空")
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.BaseURL == "" {
		return fatalf("LLM.BaseURL", "不能为空")
	}
	if c.LLM.Model == "" {
		return fatalf("LLM.Model", "不能为空")
	}
	return nil
}
