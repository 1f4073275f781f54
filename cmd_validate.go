package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/svc"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	"github.com/spf13/cobra"
)

var validateFlags struct {
	options  string
	artifact string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "检查配置、选项文件或已生成的视频数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Printf("配置有效: provider=%s, model=%s, 任务 %d 个\n", c.LLM.Provider, c.LLM.Model, len(c.Jobs))
		if err := c.ValidateLLM(); err != nil {
			fmt.Printf("  LLM 未就绪，生成时将降级: %v\n", err)
		}

		var errs []error
		if validateFlags.options != "" {
			opts, err := config.LoadOptions(validateFlags.options)
			if err != nil {
				errs = append(errs, err)
			} else {
				fmt.Printf("选项有效: subject=%s, year=%d, 团队 %d 个\n", opts.SubjectName, opts.Year, len(opts.Teams))
			}
		}
		if validateFlags.artifact != "" {
			data, err := videodata.Load(validateFlags.artifact)
			if err == nil {
				err = data.Validate()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", validateFlags.artifact, err))
			} else {
				fmt.Printf("视频数据有效: %s (%s)\n", data.Meta.ChannelName, data.Meta.Mode)
			}
		}
		return errors.Join(errs...)
	},
}

var runsFlags struct {
	limit int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "列出最近的运行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svcCtx := svc.NewServiceContext(c)
		defer svcCtx.Close()

		runs, err := svcCtx.RunModel.Recent(context.Background(), runsFlags.limit)
		if err != nil {
			return err
		}
		for _, run := range runs {
			line := fmt.Sprintf("%s  %-10s %-20s %-10s %s", run.CreateTime.Format("2006-01-02 15:04:05"), run.Job, run.Period, run.Status, run.Outcome)
			if run.ErrorMessage != "" {
				line += "  " + run.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.options, "options", "", "选项文件 (YAML 或 JSON)")
	validateCmd.Flags().StringVar(&validateFlags.artifact, "artifact", "", "已生成的视频数据文件")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "显示条数")
}
