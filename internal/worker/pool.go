package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// canceled is returned for jobs that never ran because ctx ended first
type canceled struct {
	err error
}

func (c canceled) GetError() error { return c.err }

// Run executes jobs with at most workers in flight and returns results in
// job order, whatever order they completed in. Jobs not started before ctx
// is done get a result carrying ctx.Err().
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	out := make([]Result, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					out[i] = canceled{err: err}
					continue
				}
				out[i] = jobs[i].Execute(ctx)
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return out
}
