// Package octree implements the octree spatial index variant: a cube root
// recursively subdivided into up to eight octants, with per-node point data
// loaded on demand from a data provider.
package octree

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

// RootID is the node id of an octree's root. Children append their octant
// digit to their parent's id, so "r13" is octant 3 of octant 1 of the root.
const RootID = pc.NodeID("r")

// Octree is a read-only octree spatial index. It owns the node topology
// (ids, parent/child relation, bounding boxes derived from the root cube)
// and delegates point data to its provider.
type Octree struct {
	bounds   spatialmath.AxisAlignedBox
	nodes    map[pc.NodeID]struct{}
	provider pc.DataProvider
	logger   logging.Logger
}

// New creates an octree over the given root cube from the set of node ids
// present in backing storage. Every non-root node's parent must be present
// as well.
func New(bounds spatialmath.AxisAlignedBox, ids []pc.NodeID, provider pc.DataProvider, logger logging.Logger) (*Octree, error) {
	if provider == nil {
		return nil, errors.New("octree requires a data provider")
	}
	nodes := make(map[pc.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if err := validateNodeID(id); err != nil {
			return nil, err
		}
		nodes[id] = struct{}{}
	}
	for id := range nodes {
		if id == RootID {
			continue
		}
		if _, ok := nodes[id[:len(id)-1]]; !ok {
			return nil, errors.Errorf("node %q present without its parent", string(id))
		}
	}
	return &Octree{bounds: bounds, nodes: nodes, provider: provider, logger: logger}, nil
}

func validateNodeID(id pc.NodeID) error {
	if len(id) == 0 || id[0] != 'r' {
		return errors.Errorf("octree node id %q must start with %q", string(id), string(RootID))
	}
	for _, c := range id[1:] {
		if c < '0' || c > '7' {
			return errors.Errorf("octree node id %q contains a non-octant digit", string(id))
		}
	}
	return nil
}

// Bounds returns the root cube of the octree.
func (o *Octree) Bounds() spatialmath.AxisAlignedBox {
	return o.bounds
}

// NumNodes returns the number of nodes in the index.
func (o *Octree) NumNodes() int {
	return len(o.nodes)
}

// RootIDs returns the root node id, or nothing for an empty index.
func (o *Octree) RootIDs() []pc.NodeID {
	if _, ok := o.nodes[RootID]; !ok {
		return nil
	}
	return []pc.NodeID{RootID}
}

// BoundingVolume returns the node's octant box, derived by descending from
// the root cube along the node's digit path.
func (o *Octree) BoundingVolume(id pc.NodeID) (pc.BoundingVolume, error) {
	if _, ok := o.nodes[id]; !ok {
		return nil, errors.Errorf("octree has no node %q", string(id))
	}
	box := o.bounds
	for _, c := range id[1:] {
		box = box.Octant(int(c - '0'))
	}
	return pc.BoxVolume{Box: box}, nil
}

// Children returns the ids of the node's occupied octants in digit order.
func (o *Octree) Children(id pc.NodeID) ([]pc.NodeID, error) {
	if _, ok := o.nodes[id]; !ok {
		return nil, errors.Errorf("octree has no node %q", string(id))
	}
	var children []pc.NodeID
	for digit := '0'; digit <= '7'; digit++ {
		child := id + pc.NodeID(digit)
		if _, ok := o.nodes[child]; ok {
			children = append(children, child)
		}
	}
	return children, nil
}

// LoadBatch materializes the node's points restricted to the requested
// attributes.
func (o *Octree) LoadBatch(ctx context.Context, id pc.NodeID, attributes []string) (*pc.Batch, error) {
	if _, ok := o.nodes[id]; !ok {
		return nil, pc.NewNodeLoadError(id, errors.New("node not in index"))
	}
	return o.provider.LoadNode(ctx, id, attributes)
}
