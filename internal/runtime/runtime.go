// Package runtime supervises the session's background goroutines — the
// journal-writing worker pool and the tick loop — with gopkg.in/tomb.v2,
// the way saiputravu-Exchange/internal/worker.go supervises its network
// I/O worker pool. Here the tasks queued onto the pool are in-process
// journal writes (snapshots, commands, match events) rather than
// connection handlers; the supervised-goroutine-pool shape is identical.
// Snapshot fanout to subscriber channels is done by the simulator itself.
package runtime

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 256

// Task is one unit of background work: write a snapshot, command or
// match event to the journal. It is expected to be fast and
// non-blocking; long-running work belongs in its own goroutine, not a
// pool task.
type Task func() error

// Pool runs a fixed number of supervised workers pulling from a shared
// task channel until the tomb is killed.
type Pool struct {
	n     int
	tasks chan Task
}

// NewPool constructs a pool with n workers.
func NewPool(n int) *Pool {
	return &Pool{n: n, tasks: make(chan Task, taskChanSize)}
}

// Submit enqueues a task. It blocks if the pool's task channel is full,
// applying backpressure to the caller rather than dropping work — unlike
// snapshot subscriber fanout, which is allowed to drop under load.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Start launches the pool's workers under t, each running until t dies.
// Mirrors the teacher's Setup/worker split: one goroutine per worker
// slot, each looping on a select between the tomb's Dying channel and
// the shared task channel.
func (p *Pool) Start(t *tomb.Tomb) {
	log.Info().Int("workers", p.n).Msg("runtime: starting pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.worker(t)
		})
	}
}

func (p *Pool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := task(); err != nil {
				log.Error().Err(err).Msg("runtime: task failed")
			}
		}
	}
}
