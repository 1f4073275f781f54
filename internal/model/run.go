package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed" // success-with-ai
	RunStatusDegraded  RunStatus = "degraded"  // success-degraded
	RunStatusFailed    RunStatus = "failed"
)

// Finished 是否已结束，未结束的运行会在启动时恢复
func (s RunStatus) Finished() bool {
	return s == RunStatusCompleted || s == RunStatusDegraded || s == RunStatusFailed
}

// ErrRunNotFound 记录不存在
var ErrRunNotFound = errors.New("运行记录不存在")

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	job            TEXT NOT NULL,
	period         TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	outcome        TEXT NOT NULL DEFAULT '',
	chunk_failures INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	artifact       BLOB,
	create_time    DATETIME NOT NULL,
	update_time    DATETIME NOT NULL,
	finished_at    DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS runs_job_period ON runs (job, period);
CREATE INDEX IF NOT EXISTS runs_status ON runs (status);
`

// Run 一次生成的记录；产物以 zstd 压缩后存储，不随列表查询返回
type Run struct {
	ID            string
	Job           string
	Period        string
	Status        RunStatus
	Outcome       string
	ChunkFailures int
	ErrorMessage  string
	CreateTime    time.Time
	UpdateTime    time.Time
	FinishedAt    *time.Time
}

var (
	artifactEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	artifactDecoder, _ = zstd.NewReader(nil)
)

type RunModel struct {
	db *sql.DB
}

func NewRunModel(db *sql.DB) *RunModel {
	return &RunModel{db: db}
}

// Migrate 创建表和索引
func (m *RunModel) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, runsSchema)
	return err
}

// Create 创建运行记录
func (m *RunModel) Create(ctx context.Context, job, period string, status RunStatus) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:         uuid.NewString(),
		Job:        job,
		Period:     period,
		Status:     status,
		CreateTime: now,
		UpdateTime: now,
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, period, status, create_time, update_time) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Job, run.Period, string(run.Status), run.CreateTime, run.UpdateTime)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetOrCreate 同一 job 与 period 只会有一条记录
func (m *RunModel) GetOrCreate(ctx context.Context, job, period string, status RunStatus) (*Run, error) {
	existing, err := m.GetByPeriod(ctx, job, period)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}
	return m.Create(ctx, job, period, status)
}

const runColumns = `id, job, period, status, outcome, chunk_failures, error_message, create_time, update_time, finished_at`

func scanRun(row interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		finishedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Job, &run.Period, &status, &run.Outcome, &run.ChunkFailures,
		&run.ErrorMessage, &run.CreateTime, &run.UpdateTime, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (m *RunModel) Get(ctx context.Context, id string) (*Run, error) {
	return scanRun(m.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

func (m *RunModel) GetByPeriod(ctx context.Context, job, period string) (*Run, error) {
	return scanRun(m.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE job = ? AND period = ?`, job, period))
}

// GetIncompleteRuns 查询所有 pending 或 running 的记录，按创建时间升序
func (m *RunModel) GetIncompleteRuns(ctx context.Context) ([]*Run, error) {
	return m.query(ctx, `SELECT `+runColumns+` FROM runs WHERE status IN (?, ?) ORDER BY create_time ASC`,
		string(RunStatusPending), string(RunStatusRunning))
}

// Recent 最近的运行记录
func (m *RunModel) Recent(ctx context.Context, limit int) ([]*Run, error) {
	return m.query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY create_time DESC LIMIT ?`, limit)
}

func (m *RunModel) query(ctx context.Context, query string, args ...any) ([]*Run, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkRunning 标记开始执行
func (m *RunModel) MarkRunning(ctx context.Context, id string) error {
	return m.update(ctx, `UPDATE runs SET status = ?, error_message = '', update_time = ? WHERE id = ?`,
		string(RunStatusRunning), time.Now().UTC(), id)
}

// MarkFinished 记录结果并保存压缩后的产物
func (m *RunModel) MarkFinished(ctx context.Context, id string, status RunStatus, outcome string, chunkFailures int, artifact []byte) error {
	var blob []byte
	if len(artifact) > 0 {
		blob = artifactEncoder.EncodeAll(artifact, make([]byte, 0, len(artifact)/4))
	}
	now := time.Now().UTC()
	return m.update(ctx,
		`UPDATE runs SET status = ?, outcome = ?, chunk_failures = ?, artifact = ?, update_time = ?, finished_at = ? WHERE id = ?`,
		string(status), outcome, chunkFailures, blob, now, now, id)
}

// MarkFailed 标记失败
func (m *RunModel) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	now := time.Now().UTC()
	return m.update(ctx,
		`UPDATE runs SET status = ?, error_message = ?, update_time = ?, finished_at = ? WHERE id = ?`,
		string(RunStatusFailed), errorMsg, now, now, id)
}

// LoadArtifact 读取并解压产物，没有产物时返回 nil
func (m *RunModel) LoadArtifact(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := m.db.QueryRowContext(ctx, `SELECT artifact FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, nil
	}
	data, err := artifactDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("解压产物失败: %w", err)
	}
	return data, nil
}

func (m *RunModel) update(ctx context.Context, query string, args ...any) error {
	res, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
