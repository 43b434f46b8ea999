package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-ar/engine/core"
)

/** @brief A unit of work executed by the job system. */
type JobTask struct {
	/** @brief The work itself. A non-nil error calls OnFailure instead of OnComplete. */
	OnStart    func() error
	OnComplete func()
	OnFailure  func(err error)
	/** @brief Called after OnComplete or OnFailure, whatever the outcome. */
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.OnStart(); err != nil {
					core.LogError(err.Error())
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
				} else if job.OnComplete != nil {
					job.OnComplete()
				}

				if job.OnCompletionCallback != nil {
					job.OnCompletionCallback()
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down once the queued jobs have run.
 */
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking queues the job from a new goroutine and returns immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go js.Submit(jt)
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

/**
 * @brief Runs every function on the workers and waits for all of them.
 * The errors are returned in the order of the functions, nil for successes.
 */
func (js *JobSystem) Run(work []func() error) []error {
	errs := make([]error, len(work))
	var done sync.WaitGroup
	done.Add(len(work))
	for i, fn := range work {
		js.Submit(JobTask{
			OnStart:              fn,
			OnFailure:            func(err error) { errs[i] = err },
			OnCompletionCallback: done.Done,
		})
	}
	done.Wait()
	return errs
}

// Workers is the number of goroutines of the pool.
func (js *JobSystem) Workers() int {
	return js.numWorkers
}
