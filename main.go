package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "talk-wrapped",
	Short: "把聊天记录生成年度回顾视频数据",
	Long: `talk-wrapped 解析团队聊天记录，统计活跃度，并通过两阶段 LLM 分析
生成年度回顾视频所需的 JSON 数据。LLM 不可用时自动降级为纯统计结果。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "etc/config.yaml", "the config file")
	rootCmd.AddCommand(generateCmd, validateCmd, serveCmd, runsCmd)
}

// loadConfig 读取配置并初始化日志；未显式指定且默认文件不存在时使用默认配置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if _, statErr := os.Stat(configFile); errors.Is(statErr, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		c = config.Default()
	} else {
		c, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := logger.Setup(c.Log); err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
