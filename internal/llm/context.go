package llm

import "context"

type modelKey struct{}

type usageKey struct{}

// WithModel 返回在该 context 范围内使用指定模型的子 context
// 覆盖只作用于派生出的 context，离开作用域后自动恢复默认模型
func WithModel(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey{}, model)
}

// ModelFrom 返回 context 中覆盖的模型，没有则返回 def
func ModelFrom(ctx context.Context, def string) string {
	if model, ok := ctx.Value(modelKey{}).(string); ok && model != "" {
		return model
	}
	return def
}

// WithUsage 将调用用量额外记录到 tracker（按单次运行统计）
func WithUsage(ctx context.Context, tracker *UsageTracker) context.Context {
	return context.WithValue(ctx, usageKey{}, tracker)
}

func usageFrom(ctx context.Context) *UsageTracker {
	tracker, _ := ctx.Value(usageKey{}).(*UsageTracker)
	return tracker
}
