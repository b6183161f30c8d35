// Package client provides the point cloud client facade: one query API over
// any number of local spatial indices and remote streaming endpoints, with
// results from every source funneled into a single callback.
package client

import (
	"context"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/lidarview/pointstream/config"
	"github.com/lidarview/pointstream/iterator"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
)

// Source is one origin of query results: a set of local indices or a remote
// streaming endpoint. Implementations run their own traversal and invoke fn
// once per batch; they must respect ctx cancellation.
type Source interface {
	ForEachBatch(ctx context.Context, q *query.PointQuery, fn func(*pc.Batch) error) error
}

// LocalSource serves queries from in-process spatial indices through a
// ParallelIterator per query.
type LocalSource struct {
	indices []pc.SpatialIndex
	cfg     *config.Config
	logger  logging.Logger
}

// NewLocalSource wraps the given indices as a query source. A nil cfg uses
// the defaults.
func NewLocalSource(indices []pc.SpatialIndex, cfg *config.Config, logger logging.Logger) *LocalSource {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LocalSource{indices: indices, cfg: cfg, logger: logger}
}

// ForEachBatch runs the query against the source's indices.
func (s *LocalSource) ForEachBatch(ctx context.Context, q *query.PointQuery, fn func(*pc.Batch) error) error {
	it := iterator.NewParallelIterator(
		s.indices, q, s.cfg.BatchSize, s.cfg.NumWorkers, s.cfg.BufferSize, s.logger)
	return it.TryForEachBatch(ctx, fn)
}

// PointCloudClient fans a single logical query out over one or more sources
// and forwards every batch to one callback. The callback runs exclusively on
// the caller's goroutine; batch interleaving across sources is unspecified.
type PointCloudClient struct {
	sources []Source
	cfg     *config.Config
	logger  logging.Logger
}

// NewPointCloudClient creates a client over the given sources. A nil cfg
// uses the defaults.
func NewPointCloudClient(sources []Source, cfg *config.Config, logger logging.Logger) (*PointCloudClient, error) {
	if len(sources) == 0 {
		return nil, errors.New("point cloud client requires at least one source")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &PointCloudClient{sources: sources, cfg: cfg, logger: logger}, nil
}

// ForEachPointData runs the query against every source concurrently and
// invokes fn once per batch on the calling goroutine. The first error from
// any source or from fn cancels the remaining sources best-effort and is
// returned; batches already delivered stay delivered. Returning
// iterator.ErrStop from fn stops the query cleanly.
func (c *PointCloudClient) ForEachPointData(ctx context.Context, q *query.PointQuery, fn func(*pc.Batch) error) error {
	if err := q.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	merged := make(chan *pc.Batch, c.cfg.BufferSize)
	for _, source := range c.sources {
		source := source
		group.Go(func() error {
			return source.ForEachBatch(groupCtx, q, func(batch *pc.Batch) error {
				select {
				case merged <- batch:
					return nil
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
			})
		})
	}

	groupDone := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		groupDone <- group.Wait()
		close(merged)
	})

	var cbErr error
	for batch := range merged {
		if cbErr != nil {
			continue
		}
		if err := fn(batch); err != nil {
			cbErr = err
			cancel()
		}
	}
	sourceErr := <-groupDone

	switch {
	case errors.Is(cbErr, iterator.ErrStop):
		return nil
	case cbErr != nil:
		return cbErr
	case sourceErr != nil && !errors.Is(sourceErr, context.Canceled):
		return sourceErr
	default:
		return ctx.Err()
	}
}
