package cellindex

import (
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/dataprovider"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
)

// BuildFromBatch builds a cell index fixture from a fully resident batch,
// bucketing points into storage cells at the given level and writing each
// bucket through the given writer. Intended for tests and tooling, not for
// the query path.
func BuildFromBatch(
	batch *pc.Batch,
	storageLevel int,
	writer dataprovider.NodeWriter,
	provider pc.DataProvider,
	logger logging.Logger,
) (*CellIndex, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return nil, errors.New("cannot build a cell index from an empty batch")
	}

	buckets := map[s2.CellID][]bool{}
	minRadius, maxRadius := -1.0, 0.0
	for i, p := range batch.Positions {
		r := p.Norm()
		if r == 0 {
			return nil, errors.New("cell index points must not sit at the origin")
		}
		if minRadius < 0 || r < minRadius {
			minRadius = r
		}
		if r > maxRadius {
			maxRadius = r
		}
		cell := CellIDAtLevel(p.X, p.Y, p.Z, storageLevel)
		mask, ok := buckets[cell]
		if !ok {
			mask = make([]bool, batch.Len())
			buckets[cell] = mask
		}
		mask[i] = true
	}

	schema := Schema{}
	for i, name := range batch.Attributes {
		schema[name] = batch.Columns[i].Kind()
	}

	cells := make([]s2.CellID, 0, len(buckets))
	for cell, mask := range buckets {
		if err := writer.StoreNode(pc.NodeID(cell.ToToken()), batch.Filter(mask)); err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return New(cells, storageLevel, schema, minRadius, maxRadius, provider, logger)
}
