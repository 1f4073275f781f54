package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/scheduler"
	"github.com/fachebot/talk-wrapped/internal/svc"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "按配置中的定时任务持续生成",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(c.Jobs) == 0 {
			return fmt.Errorf("配置中没有定时任务")
		}

		// 创建服务上下文
		svcCtx := svc.NewServiceContext(c)

		// 创建并启动调度器
		var ai scheduler.Runner
		if svcCtx.LLMClient != nil {
			ai = svcCtx.Pipeline(false)
		}
		schedulerInstance := scheduler.NewScheduler(ai, svcCtx.Pipeline(true), svcCtx.RunModel, c.Jobs)
		if err := schedulerInstance.Start(); err != nil {
			svcCtx.Close()
			return fmt.Errorf("启动调度器失败: %w", err)
		}

		// 等待程序退出
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch

		// 优雅关闭
		logger.Infof("正在关闭服务...")
		schedulerInstance.Stop()
		svcCtx.Close()
		logger.Infof("服务已停止")
		return nil
	},
}
