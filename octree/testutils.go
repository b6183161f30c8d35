package octree

import (
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/dataprovider"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

// BuildFromBatch builds an octree fixture from a fully resident batch,
// writing node data through the given writer. Each node keeps at most
// leafCap points; overflow is pushed down into octants, so internal nodes
// hold a coarse sample of their subtree the way a level-of-detail octree
// does. Intended for tests and tooling, not for the query path.
func BuildFromBatch(
	batch *pc.Batch,
	bounds spatialmath.AxisAlignedBox,
	leafCap int,
	writer dataprovider.NodeWriter,
	provider pc.DataProvider,
	logger logging.Logger,
) (*Octree, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if leafCap <= 0 {
		return nil, errors.Errorf("leaf capacity must be positive, got %d", leafCap)
	}
	for _, p := range batch.Positions {
		if !bounds.ContainsPoint(p) {
			return nil, errors.Errorf("point %v outside octree bounds %v", p, bounds)
		}
	}

	var ids []pc.NodeID
	if err := buildNode(RootID, bounds, batch, leafCap, writer, &ids); err != nil {
		return nil, err
	}
	return New(bounds, ids, provider, logger)
}

func buildNode(
	id pc.NodeID,
	bounds spatialmath.AxisAlignedBox,
	batch *pc.Batch,
	leafCap int,
	writer dataprovider.NodeWriter,
	ids *[]pc.NodeID,
) error {
	*ids = append(*ids, id)
	if batch.Len() <= leafCap {
		return writer.StoreNode(id, batch)
	}

	// keep a sample at this node, spread the rest across octants
	n := batch.Len()
	keep := make([]bool, n)
	stride := n / leafCap
	kept := 0
	for i := 0; i < n && kept < leafCap; i += stride {
		keep[i] = true
		kept++
	}
	if err := writer.StoreNode(id, batch.Filter(keep)); err != nil {
		return err
	}

	center := bounds.Center()
	masks := make([][]bool, 8)
	occupied := make([]bool, 8)
	for o := range masks {
		masks[o] = make([]bool, n)
	}
	for i, p := range batch.Positions {
		if keep[i] {
			continue
		}
		o := 0
		if p.X >= center.X {
			o |= 1
		}
		if p.Y >= center.Y {
			o |= 2
		}
		if p.Z >= center.Z {
			o |= 4
		}
		masks[o][i] = true
		occupied[o] = true
	}
	for o := 0; o < 8; o++ {
		if !occupied[o] {
			continue
		}
		child := id + pc.NodeID(rune('0'+o))
		if err := buildNode(child, bounds.Octant(o), batch.Filter(masks[o]), leafCap, writer, ids); err != nil {
			return err
		}
	}
	return nil
}
