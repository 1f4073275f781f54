package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/pipeline"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	"github.com/robfig/cron/v3"
)

// Runner 执行一次生成
type Runner interface {
	Run(ctx context.Context, raw string, opts config.Options) (*pipeline.Result, error)
	RunRecords(ctx context.Context, r io.Reader, opts config.Options) (*pipeline.Result, error)
}

type Scheduler struct {
	cron     *cron.Cron
	ai       Runner // 为空时所有任务都不使用 AI
	plain    Runner
	runModel *model.RunModel
	jobs     []config.Job
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// locUTC 调度使用 UTC
var locUTC = time.UTC

func NewScheduler(ai, plain Runner, runModel *model.RunModel, jobs []config.Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(locUTC)),
		ai:       ai,
		plain:    plain,
		runModel: runModel,
		jobs:     jobs,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 注册全部任务并恢复未完成的运行
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Cron, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("注册任务 %s 失败: %w", job.Name, err)
		}
		logger.Infof("[Scheduler] 已注册任务 %s: %s", job.Name, job.Cron)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，共 %d 个任务", len(s.jobs))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[Scheduler] 恢复运行时发生 panic: %v", r)
			}
		}()
		s.recoverRuns()
	}()

	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

func (s *Scheduler) currentContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) findJob(name string) (config.Job, bool) {
	for _, job := range s.jobs {
		if job.Name == name {
			return job, true
		}
	}
	return config.Job{}, false
}

// recoverRuns 重新执行上次退出时未完成的运行
func (s *Scheduler) recoverRuns() {
	ctx := s.currentContext()

	runs, err := s.runModel.GetIncompleteRuns(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] 查询未完成运行失败: %v", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	logger.Infof("[Scheduler] 找到 %d 个未完成的运行，开始恢复", len(runs))
	for _, run := range runs {
		select {
		case <-ctx.Done():
			logger.Infof("[Scheduler] 恢复已取消")
			return
		default:
		}

		job, ok := s.findJob(run.Job)
		if !ok {
			logger.Warnf("[Scheduler] 运行 %s 对应的任务 %s 已不存在", run.ID, run.Job)
			_ = s.runModel.MarkFailed(ctx, run.ID, "任务已从配置中移除")
			continue
		}

		logger.Infof("[Scheduler] 恢复运行: job=%s, period=%s", run.Job, run.Period)
		if err := s.execute(ctx, job, run); err != nil {
			logger.Errorf("[Scheduler] 恢复运行失败 (job=%s): %v", run.Job, err)
		}
	}
	logger.Infof("[Scheduler] 运行恢复完成")
}

// runJob cron 触发
func (s *Scheduler) runJob(job config.Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Scheduler] 任务 %s 发生 panic: %v", job.Name, r)
		}
	}()

	ctx := s.currentContext()
	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	period := s.now().In(locUTC).Truncate(time.Minute).Format("2006-01-02T15:04")
	logger.Infof("[Scheduler] 开始执行任务 %s, period=%s", job.Name, period)

	// 执行前创建记录，便于崩溃恢复
	run, err := s.runModel.GetOrCreate(ctx, job.Name, period, model.RunStatusPending)
	if err != nil {
		logger.Errorf("[Scheduler] 获取或创建运行记录失败: %v", err)
		return
	}
	if run.Status.Finished() {
		logger.Infof("[Scheduler] 任务 %s 在 %s 已执行，跳过", job.Name, period)
		return
	}

	if err := s.execute(ctx, job, run); err != nil {
		logger.Errorf("[Scheduler] 任务 %s 执行失败: %v", job.Name, err)
		return
	}
	logger.Infof("[Scheduler] 任务 %s 完成", job.Name)
}

// execute 执行生成并记录结果，失败时记录错误信息
func (s *Scheduler) execute(ctx context.Context, job config.Job, run *model.Run) error {
	if err := s.runModel.MarkRunning(ctx, run.ID); err != nil {
		return fmt.Errorf("更新运行状态失败: %w", err)
	}

	res, err := s.generate(ctx, job)
	if err != nil {
		_ = s.runModel.MarkFailed(ctx, run.ID, err.Error())
		return err
	}

	artifact, err := json.Marshal(res.VideoData)
	if err != nil {
		_ = s.runModel.MarkFailed(ctx, run.ID, err.Error())
		return fmt.Errorf("序列化产物失败: %w", err)
	}

	status := model.RunStatusCompleted
	if res.Status == pipeline.StatusDegraded {
		status = model.RunStatusDegraded
	}
	chunkFailures := 0
	if res.Diagnostics != nil {
		chunkFailures = res.Diagnostics.ChunkFailures
	}
	if err := s.runModel.MarkFinished(ctx, run.ID, status, string(res.Status), chunkFailures, artifact); err != nil {
		return fmt.Errorf("保存运行结果失败: %w", err)
	}
	return nil
}

func (s *Scheduler) generate(ctx context.Context, job config.Job) (*pipeline.Result, error) {
	opts := config.DefaultOptions()
	if job.OptionsFile != "" {
		var err error
		opts, err = config.LoadOptions(job.OptionsFile)
		if err != nil {
			return nil, fmt.Errorf("读取选项文件失败: %w", err)
		}
	}

	runner := s.ai
	if job.NoAI || runner == nil {
		runner = s.plain
	}
	if runner == nil {
		return nil, errors.New("未配置生成流程")
	}

	var (
		res *pipeline.Result
		err error
	)
	if isRecordsFile(job.DataFile) {
		f, openErr := os.Open(job.DataFile)
		if openErr != nil {
			return nil, fmt.Errorf("读取数据文件失败: %w", openErr)
		}
		defer f.Close()
		res, err = runner.RunRecords(ctx, f, opts)
	} else {
		data, readErr := os.ReadFile(job.DataFile)
		if readErr != nil {
			return nil, fmt.Errorf("读取数据文件失败: %w", readErr)
		}
		res, err = runner.Run(ctx, string(data), opts)
	}
	if err != nil {
		return nil, err
	}

	if err := videodata.Save(res.VideoData, job.OutputFile); err != nil {
		return nil, fmt.Errorf("保存产物失败: %w", err)
	}
	logger.Infof("[Scheduler] 任务 %s 产物已写入 %s (%s)", job.Name, job.OutputFile, res.Status)
	return res, nil
}

// isRecordsFile .jsonl 与 .ndjson 按结构化记录解析
func isRecordsFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jsonl", ".ndjson":
		return true
	default:
		return false
	}
}
