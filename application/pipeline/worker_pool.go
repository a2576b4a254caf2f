package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Skryldev/bpm-lab/domain/model"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"github.com/Skryldev/bpm-lab/pkg/progress"
	"go.uber.org/zap"
)

// WorkerPool runs jobs on a fixed set of workers
type WorkerPool struct {
	executor *Executor
	workers  int
	board    *StatusBoard
	log      *logger.Logger
}

// NewWorkerPool creates a pool sized for jobCount jobs: never more workers
// than jobs, and at least one.
func NewWorkerPool(e *Executor, workers, jobCount int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if jobCount > 0 && workers > jobCount {
		workers = jobCount
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WorkerPool{
		executor: e,
		workers:  workers,
		board:    NewStatusBoard(workers),
		log:      log,
	}
}

// Workers returns the pool size
func (wp *WorkerPool) Workers() int { return wp.workers }

// Board returns the live per-worker status board
func (wp *WorkerPool) Board() *StatusBoard { return wp.board }

// Run processes jobs concurrently and sends one outcome per job to the
// returned channel, in completion order. The channel is closed once every
// worker has exited. When ctx is canceled no new job is started; jobs that
// never ran still get an UnhandledError outcome.
func (wp *WorkerPool) Run(ctx context.Context, jobs []*Job, reporter progress.Reporter) <-chan model.Outcome {
	results := make(chan model.Outcome, len(jobs))
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	jobCh := make(chan *Job)
	var wg sync.WaitGroup
	for id := 0; id < wp.workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wp.work(ctx, id, jobCh, results, reporter)
		}(id)
	}

	go func() {
		defer close(results)

	dispatch:
		for i, j := range jobs {
			select {
			case <-ctx.Done():
				wp.log.Warn("batch canceled, not starting remaining jobs",
					zap.Int("remaining", len(jobs)-i),
				)
				for _, rest := range jobs[i:] {
					results <- notStarted(rest, -1, ctx.Err())
				}
				break dispatch
			case jobCh <- j:
			}
		}
		close(jobCh)
		wg.Wait()
	}()

	return results
}

func (wp *WorkerPool) work(ctx context.Context, id int, jobCh <-chan *Job, results chan<- model.Outcome, downstream progress.Reporter) {
	slot := slotReporter{board: wp.board, id: id}

	for job := range jobCh {
		if err := ctx.Err(); err != nil {
			results <- notStarted(job, id, err)
			continue
		}

		j := *job
		j.Reporter = progress.NewMultiReporter(slot, workerTagged(id, downstream))
		base := j.Log
		if base == nil {
			base = wp.log
		}
		j.Log = base.With(zap.String("job_id", j.ID), zap.Int("worker", id))

		j.Log.Debug("processing file", zap.String("input", j.File.AbsPath))

		o := wp.executor.Execute(ctx, &j)
		o.WorkerID = id
		results <- o
		slot.Report(progress.Update{JobID: j.ID, Stage: progress.StageIdle, Timestamp: time.Now()})
	}
}

// workerTagged stamps the worker id on updates before forwarding them
func workerTagged(id int, next progress.Reporter) progress.Reporter {
	return progress.FuncReporter(func(u progress.Update) {
		u.WorkerID = id
		next.Report(u)
	})
}

func notStarted(job *Job, workerID int, cause error) model.Outcome {
	err := pkgerrors.NewProcessingError("schedule", "batch canceled before the file was processed", cause)
	return model.Outcome{
		JobID:    job.ID,
		WorkerID: workerID,
		File:     job.File,
		Kind:     Classify(err, job.AnalyzeOnly),
		Err:      err,
	}
}
