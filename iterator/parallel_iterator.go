package iterator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/lidarview/pointstream/config"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
	"github.com/lidarview/pointstream/utils"
)

// ErrStop can be returned from a batch callback to stop iteration early
// without reporting an error; the iterator ends in the Cancelled state and
// TryForEachBatch returns nil.
var ErrStop = errors.New("stop iteration")

// State is the lifecycle state of a ParallelIterator.
type State int32

const (
	// StateIdle means iteration has not started.
	StateIdle = State(iota)
	// StateRunning means workers are producing batches.
	StateRunning
	// StateCompleted means every batch was delivered without error.
	StateCompleted
	// StateCancelled means the caller aborted iteration, by context or by
	// returning ErrStop.
	StateCancelled
	// StateFailed means a worker or the callback reported an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ParallelIterator traverses one or more spatial indices for a query and
// streams matching batches to a callback. A fixed pool of workers loads,
// filters and re-chunks node batches and pushes them through a bounded
// channel; the callback runs exclusively on the calling goroutine. Peak
// memory is bounded by roughly (bufferSize + numWorkers) batches in flight
// regardless of result cardinality.
//
// An iterator is single use: create one per query.
type ParallelIterator struct {
	indices    []pc.SpatialIndex
	query      *query.PointQuery
	batchSize  int
	numWorkers int
	bufferSize int
	logger     logging.Logger
	state      atomic.Int32
}

// NewParallelIterator creates an iterator over the given indices. Non
// positive knobs fall back to their config defaults.
func NewParallelIterator(
	indices []pc.SpatialIndex,
	q *query.PointQuery,
	batchSize, numWorkers, bufferSize int,
	logger logging.Logger,
) *ParallelIterator {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	if numWorkers <= 0 {
		numWorkers = config.DefaultNumWorkers()
	}
	if bufferSize <= 0 {
		bufferSize = config.DefaultBufferSize
	}
	return &ParallelIterator{
		indices:    indices,
		query:      q,
		batchSize:  batchSize,
		numWorkers: numWorkers,
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// State returns the iterator's current lifecycle state.
func (pi *ParallelIterator) State() State {
	return State(pi.state.Load())
}

// TryForEachBatch runs the traversal and invokes fn once per delivered
// batch, on the calling goroutine only. The first error from a worker or
// from fn cancels remaining work and is returned; batches already delivered
// are not rolled back. Cancelling ctx aborts iteration and returns the
// context's error.
func (pi *ParallelIterator) TryForEachBatch(ctx context.Context, fn func(*pc.Batch) error) error {
	if !pi.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New("parallel iterator is single use; create a new one per query")
	}
	if err := pi.query.Validate(); err != nil {
		pi.state.Store(int32(StateFailed))
		return err
	}

	loc := pi.query.Predicate()
	var worklist []workItem
	for _, index := range pi.indices {
		items, err := scheduleIndex(index, loc)
		if err != nil {
			pi.state.Store(int32(StateFailed))
			return err
		}
		worklist = append(worklist, items...)
	}
	pi.logger.Debugw("scheduled query traversal",
		"indices", len(pi.indices), "nodes", len(worklist), "workers", pi.numWorkers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan workItem, len(worklist))
	for _, item := range worklist {
		work <- item
	}
	close(work)

	out := make(chan *pc.Batch, pi.bufferSize)

	var (
		workerErrMu sync.Mutex
		workerErr   error
	)
	recordErr := func(err error) {
		workerErrMu.Lock()
		if workerErr == nil {
			workerErr = err
		}
		workerErrMu.Unlock()
		cancel()
	}

	var workers sync.WaitGroup
	for i := 0; i < pi.numWorkers; i++ {
		workers.Add(1)
		goutils.ManagedGo(func() {
			pi.worker(ctx, loc, work, out, recordErr)
		}, workers.Done)
	}
	goutils.PanicCapturingGo(func() {
		workers.Wait()
		close(out)
	})

	var cbErr error
	for batch := range out {
		if cbErr != nil {
			// drain so blocked workers observe cancellation and exit
			continue
		}
		if err := fn(batch); err != nil {
			cbErr = err
			cancel()
		}
	}

	workerErrMu.Lock()
	firstWorkerErr := workerErr
	workerErrMu.Unlock()

	switch {
	case errors.Is(cbErr, ErrStop):
		pi.state.Store(int32(StateCancelled))
		return nil
	case cbErr != nil:
		pi.state.Store(int32(StateFailed))
		return cbErr
	case firstWorkerErr != nil:
		pi.state.Store(int32(StateFailed))
		return firstWorkerErr
	case ctx.Err() != nil:
		pi.state.Store(int32(StateCancelled))
		return ctx.Err()
	default:
		pi.state.Store(int32(StateCompleted))
		return nil
	}
}

// worker drains the worklist: load, filter when required, re-chunk to the
// batch cap, send. Cancellation is observed at work item boundaries and on
// every blocked send.
func (pi *ParallelIterator) worker(
	ctx context.Context,
	loc query.PointLocation,
	work <-chan workItem,
	out chan<- *pc.Batch,
	recordErr func(error),
) {
	for item := range work {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := item.index.LoadBatch(ctx, item.node, pi.query.Attributes)
		if err != nil {
			if ctx.Err() == nil {
				recordErr(err)
			}
			return
		}
		if item.mode == FilterPerPoint {
			keep := make([]bool, batch.Len())
			matched := false
			for i, p := range batch.Positions {
				if loc.ContainsPoint(p) {
					keep[i] = true
					matched = true
				}
			}
			if !matched {
				continue
			}
			batch = batch.Filter(keep)
		}
		if batch.Len() == 0 {
			continue
		}
		for start := 0; start < batch.Len(); start += pi.batchSize {
			end := utils.MinInt(start+pi.batchSize, batch.Len())
			select {
			case out <- batch.Slice(start, end):
			case <-ctx.Done():
				return
			}
		}
	}
}
