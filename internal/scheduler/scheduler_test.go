package scheduler

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/pipeline"
	"github.com/fachebot/talk-wrapped/internal/videodata"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transcript = `2025-02-10T09:15:00Z alice: kicking off the search rewrite
2025-02-10T10:30:00Z bob: search rewrite looks great
2025-08-01T16:00:00Z alice: search rewrite shipped
`

func newTestScheduler(t *testing.T, jobs []config.Job) (*Scheduler, *model.RunModel) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "runs.db")+"?_fk=1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runModel := model.NewRunModel(db)
	require.NoError(t, runModel.Migrate(context.Background()))

	cfg := config.Default().Pipeline
	plain := pipeline.New(nil, cfg, "")
	s := NewScheduler(nil, plain, runModel, jobs)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 30, 0, time.UTC) }
	return s, runModel
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunJob(t *testing.T) {
	dir := t.TempDir()
	job := config.Job{
		Name:        "yearly",
		Cron:        "0 3 1 1 *",
		DataFile:    writeFile(t, dir, "chat.txt", transcript),
		OptionsFile: writeFile(t, dir, "options.yaml", "subjectName: search-team\nyear: 2025\n"),
		OutputFile:  filepath.Join(dir, "out", "video-data.json"),
	}
	s, runModel := newTestScheduler(t, []config.Job{job})
	ctx := context.Background()

	s.runJob(job)

	run, err := runModel.GetByPeriod(ctx, "yearly", "2026-01-01T03:00")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Equal(t, string(pipeline.StatusDegraded), run.Outcome)

	data, err := videodata.Load(job.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "search-team", data.Meta.ChannelName)
	assert.Equal(t, 3, data.ChannelStats.TotalMessages)

	artifact, err := runModel.LoadArtifact(ctx, run.ID)
	require.NoError(t, err)
	assert.Contains(t, string(artifact), `"channelName":"search-team"`)

	// 同一时段不会重复执行
	require.NoError(t, os.Remove(job.OutputFile))
	s.runJob(job)
	_, err = os.Stat(job.OutputFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunJob_InputError(t *testing.T) {
	dir := t.TempDir()
	job := config.Job{
		Name:       "broken",
		Cron:       "@daily",
		DataFile:   writeFile(t, dir, "chat.txt", "no timestamps here\n"),
		OutputFile: filepath.Join(dir, "video-data.json"),
	}
	s, runModel := newTestScheduler(t, []config.Job{job})

	s.runJob(job)

	run, err := runModel.GetByPeriod(context.Background(), "broken", "2026-01-01T03:00")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)
}

func TestRecoverRuns(t *testing.T) {
	dir := t.TempDir()
	job := config.Job{
		Name:       "records",
		Cron:       "@daily",
		DataFile:   writeFile(t, dir, "chat.jsonl", `{"author":"alice","timestamp":"2025-03-01T10:00:00Z","text":"opened PR #12"}`+"\n"),
		OutputFile: filepath.Join(dir, "video-data.json"),
	}
	s, runModel := newTestScheduler(t, []config.Job{job})
	ctx := context.Background()

	pending, err := runModel.Create(ctx, "records", "2025-12-31T03:00", model.RunStatusRunning)
	require.NoError(t, err)
	orphan, err := runModel.Create(ctx, "removed", "2025-12-31T03:00", model.RunStatusPending)
	require.NoError(t, err)

	s.recoverRuns()

	got, err := runModel.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, got.Status)
	assert.FileExists(t, job.OutputFile)

	got, err = runModel.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)

	incomplete, err := runModel.GetIncompleteRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestStart_InvalidCron(t *testing.T) {
	s, _ := newTestScheduler(t, []config.Job{{Name: "bad", Cron: "not a cron"}})
	assert.Error(t, s.Start())
}

func TestIsRecordsFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{"jsonl", "data/chat.jsonl", true},
		{"ndjson 大写", "CHAT.NDJSON", true},
		{"纯文本", "chat.txt", false},
		{"json 文件", "chat.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRecordsFile(tt.filename))
		})
	}
}
