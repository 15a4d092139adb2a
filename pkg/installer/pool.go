package installer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metrics"
	"github.com/hutchhq/nodeup/pkg/types"
)

// Installer is a named download-and-install unit of work. Install must be
// safe to run twice: a prepare phase retried after a crash resubmits every
// job.
type Installer interface {
	Name() string
	Install(ctx context.Context) error
}

// Func adapts a bare function to the Installer interface.
type Func struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (f Func) Name() string                      { return f.JobName }
func (f Func) Install(ctx context.Context) error { return f.Fn(ctx) }

type job struct {
	id        string
	name      string
	state     types.JobState
	err       error
	finished  time.Time
	startedAt time.Time
}

// Pool runs installer jobs concurrently and exposes a join barrier. A
// failed job never cancels its siblings; every submitted job reaches a
// terminal state before JoinAll returns, and the caller decides afterward
// whether any failure is fatal.
type Pool struct {
	mu   sync.Mutex
	jobs []*job
	wg   sync.WaitGroup
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Submit enqueues a named concurrent task and starts it immediately.
// Returns the job id.
func (p *Pool) Submit(ctx context.Context, inst Installer) string {
	j := &job{
		id:        uuid.New().String(),
		name:      inst.Name(),
		state:     types.JobStateRunning,
		startedAt: time.Now(),
	}

	p.mu.Lock()
	p.jobs = append(p.jobs, j)
	p.mu.Unlock()

	logger := log.WithJob(j.name)
	logger.Info().Str("id", j.id).Msg("installer job submitted")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		err := inst.Install(ctx)

		p.mu.Lock()
		j.err = err
		j.finished = time.Now()
		if err != nil {
			j.state = types.JobStateFailed
		} else {
			j.state = types.JobStateSucceeded
		}
		state := j.state
		p.mu.Unlock()

		metrics.InstallerJobs.WithLabelValues(string(state)).Inc()
		metrics.InstallerJobDuration.WithLabelValues(j.name).Observe(time.Since(j.startedAt).Seconds())

		if err != nil {
			logger.Error().Err(err).Msg("installer job failed")
		} else {
			logger.Info().Msg("installer job succeeded")
		}
	}()

	return j.id
}

// JoinAll blocks until every submitted job has reached a terminal state,
// then returns all results in submission order. There is no timeout; a
// hung installer blocks forever and recovery is an infrastructure-level
// reboot.
func (p *Pool) JoinAll() []types.JobResult {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]types.JobResult, 0, len(p.jobs))
	for _, j := range p.jobs {
		results = append(results, types.JobResult{
			ID:         j.id,
			Name:       j.name,
			State:      j.state,
			Err:        j.err,
			FinishedAt: j.finished,
		})
	}
	return results
}

// Failed filters a result set down to the failed jobs.
func Failed(results []types.JobResult) []types.JobResult {
	var failed []types.JobResult
	for _, r := range results {
		if r.State == types.JobStateFailed {
			failed = append(failed, r)
		}
	}
	return failed
}
