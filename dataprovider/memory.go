package dataprovider

import (
	"context"

	"github.com/pkg/errors"

	pc "github.com/lidarview/pointstream/pointcloud"
)

// InMemoryProvider holds node batches in a map. It is used in tests and for
// small fully resident indices.
type InMemoryProvider struct {
	nodes map[pc.NodeID]*pc.Batch
}

// NewInMemoryProvider returns an empty in-memory provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{nodes: map[pc.NodeID]*pc.Batch{}}
}

// StoreNode stores the batch under the given node id, replacing any
// previous batch.
func (p *InMemoryProvider) StoreNode(id pc.NodeID, batch *pc.Batch) error {
	if err := batch.Validate(); err != nil {
		return errors.Wrapf(err, "refusing to store invalid batch for node %q", string(id))
	}
	p.nodes[id] = batch
	return nil
}

// LoadNode returns the stored batch projected to the requested attributes.
func (p *InMemoryProvider) LoadNode(ctx context.Context, id pc.NodeID, attributes []string) (*pc.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, ok := p.nodes[id]
	if !ok {
		return nil, pc.NewNodeLoadError(id, errors.New("node not found"))
	}
	for _, want := range attributes {
		if _, ok := batch.Column(want); !ok {
			return nil, pc.NewAttributeMissingError(id, want)
		}
	}
	projected, err := batch.Project(attributes)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	return projected, nil
}
