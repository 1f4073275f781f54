package llm

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ModelPricing 每百万 tokens 的美元价格，数值为估算，可能与实际账单不同
type ModelPricing struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

var modelPricingTable = map[string]ModelPricing{
	"gpt-5.2": {
		Input:  decimal.NewFromFloat(1.75),
		Output: decimal.NewFromFloat(14),
	},
	"gpt-5-mini": {
		Input:  decimal.NewFromFloat(0.25),
		Output: decimal.NewFromFloat(2),
	},
	"gpt-4o": {
		Input:  decimal.NewFromFloat(2.50),
		Output: decimal.NewFromFloat(10),
	},
	"gpt-4o-mini": {
		Input:  decimal.NewFromFloat(0.15),
		Output: decimal.NewFromFloat(0.60),
	},
	"gemini-2.5-pro": {
		Input:  decimal.NewFromFloat(1.25),
		Output: decimal.NewFromFloat(10),
	},
	"gemini-2.5-flash": {
		Input:  decimal.NewFromFloat(0.30),
		Output: decimal.NewFromFloat(2.50),
	},
}

// 未知模型按名称是否含 mini 套用两档价格
var (
	miniPricing    = modelPricingTable["gpt-5-mini"]
	defaultPricing = modelPricingTable["gpt-5.2"]
)

var pricingKeys = func() []string {
	keys := make([]string, 0, len(modelPricingTable))
	for k := range modelPricingTable {
		keys = append(keys, k)
	}
	// 长前缀优先匹配
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// GetPricing 精确匹配或最长前缀匹配，例如 gpt-4o-mini-2024-07-18 -> gpt-4o-mini
func GetPricing(model string) ModelPricing {
	name := strings.ToLower(model)
	if p, ok := modelPricingTable[name]; ok {
		return p
	}
	for _, k := range pricingKeys {
		if strings.HasPrefix(name, k) {
			return modelPricingTable[k]
		}
	}
	if strings.Contains(name, "mini") || strings.Contains(name, "flash") {
		return miniPricing
	}
	return defaultPricing
}

var million = decimal.NewFromInt(1_000_000)

// CalculateCost 估算单次调用费用
func CalculateCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	p := GetPricing(model)
	in := p.Input.Mul(decimal.NewFromInt(int64(promptTokens))).Div(million)
	out := p.Output.Mul(decimal.NewFromInt(int64(completionTokens))).Div(million)
	return in.Add(out)
}

// CallUsage 单次调用的用量
type CallUsage struct {
	Name             string          `json:"name"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"promptTokens"`
	CompletionTokens int             `json:"completionTokens"`
	Attempts         int             `json:"attempts"`
	Duration         time.Duration   `json:"duration"`
	EstimatedCostUSD decimal.Decimal `json:"estimatedCostUsd"`
}

// Usage 用量汇总
type Usage struct {
	Calls            int             `json:"calls"`
	PromptTokens     int             `json:"promptTokens"`
	CompletionTokens int             `json:"completionTokens"`
	TotalTokens      int             `json:"totalTokens"`
	EstimatedCostUSD decimal.Decimal `json:"estimatedCostUsd"`
}

// UsageTracker 并发安全的用量记录
type UsageTracker struct {
	mu    sync.Mutex
	calls []CallUsage
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{}
}

func (t *UsageTracker) Record(call CallUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
}

// Calls 返回调用记录副本
func (t *UsageTracker) Calls() []CallUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CallUsage, len(t.calls))
	copy(out, t.calls)
	return out
}

// Snapshot 汇总当前用量
func (t *UsageTracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := Usage{EstimatedCostUSD: decimal.Zero}
	for _, c := range t.calls {
		u.Calls++
		u.PromptTokens += c.PromptTokens
		u.CompletionTokens += c.CompletionTokens
		u.EstimatedCostUSD = u.EstimatedCostUSD.Add(c.EstimatedCostUSD)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}
