package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/pipeline"
	"github.com/fachebot/talk-wrapped/internal/svc"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	"github.com/spf13/cobra"
)

var generateFlags struct {
	data    string
	options string
	out     string
	noAI    bool
	records bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "解析聊天记录并生成视频数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := config.DefaultOptions()
		if generateFlags.options != "" {
			opts, err = config.LoadOptions(generateFlags.options)
			if err != nil {
				return err
			}
		}

		svcCtx := svc.NewServiceContext(c)
		defer svcCtx.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		run, err := svcCtx.RunModel.Create(ctx, "cli", time.Now().UTC().Format(time.RFC3339Nano), model.RunStatusRunning)
		if err != nil {
			return fmt.Errorf("创建运行记录失败: %w", err)
		}

		res, err := runGenerate(ctx, svcCtx.Pipeline(generateFlags.noAI), opts)
		if err != nil {
			_ = svcCtx.RunModel.MarkFailed(context.Background(), run.ID, err.Error())
			return err
		}

		if err := videodata.Save(res.VideoData, generateFlags.out); err != nil {
			_ = svcCtx.RunModel.MarkFailed(context.Background(), run.ID, err.Error())
			return err
		}

		status := model.RunStatusCompleted
		if res.Status == pipeline.StatusDegraded {
			status = model.RunStatusDegraded
		}
		artifact, _ := json.Marshal(res.VideoData)
		if err := svcCtx.RunModel.MarkFinished(context.Background(), run.ID, status, string(res.Status), res.Diagnostics.ChunkFailures, artifact); err != nil {
			logger.Warnf("[Generate] 保存运行记录失败: %v", err)
		}

		printSummary(res, generateFlags.out)
		return nil
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVar(&generateFlags.data, "data", "", "聊天记录文件")
	flags.StringVar(&generateFlags.options, "options", "", "选项文件 (YAML 或 JSON)")
	flags.StringVar(&generateFlags.out, "out", "video-data.json", "输出文件")
	flags.BoolVar(&generateFlags.noAI, "no-ai", false, "只生成统计数据，不调用 LLM")
	flags.BoolVar(&generateFlags.records, "records", false, "按 JSON Lines 结构化记录解析输入")
	_ = generateCmd.MarkFlagRequired("data")
}

func runGenerate(ctx context.Context, p *pipeline.Pipeline, opts config.Options) (*pipeline.Result, error) {
	ext := strings.ToLower(filepath.Ext(generateFlags.data))
	if generateFlags.records || ext == ".jsonl" || ext == ".ndjson" {
		f, err := os.Open(generateFlags.data)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return p.RunRecords(ctx, f, opts)
	}

	data, err := os.ReadFile(generateFlags.data)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, string(data), opts)
}

func printSummary(res *pipeline.Result, out string) {
	cs := res.VideoData.ChannelStats
	fmt.Printf("运行 %s: %s\n", res.RunID, res.Status)
	fmt.Printf("  消息 %d 条, 参与者 %d 人, 活跃 %d 天\n", cs.TotalMessages, cs.TotalContributors, cs.ActiveDays)
	if d := res.Diagnostics; d != nil {
		fmt.Printf("  跳过 %d 行, 分块 %d/%d 成功\n", d.Parse.Skipped, d.ChunksSucceeded, d.ChunksTotal)
		if len(d.Reasons) > 0 {
			fmt.Printf("  降级原因: %s\n", strings.Join(d.Reasons, ", "))
		}
		if d.Usage.Calls > 0 {
			fmt.Printf("  LLM 调用 %d 次, tokens %d, 估算费用 $%s\n", d.Usage.Calls, d.Usage.TotalTokens, d.Usage.EstimatedCostUSD.StringFixed(4))
		}
	}
	fmt.Printf("  已写入 %s\n", out)
}
