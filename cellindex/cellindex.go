// Package cellindex implements the spherical spatial index variant: points
// are bucketed into S2 cells at a fixed storage level, and the node
// hierarchy follows the S2 cell hierarchy from the six face cells down,
// quad-subdividing at each level.
package cellindex

import (
	"context"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

// Schema maps an attribute name to its column kind. A cell index carries its
// schema so interior nodes, which store no points, can still answer batch
// loads with correctly shaped empty batches.
type Schema map[string]pc.AttributeKind

// CellIndex is a read-only spherical cell index. Point data lives only in
// storage-level cells; interior nodes exist purely for pruning.
type CellIndex struct {
	storageLevel int
	cells        []s2.CellID // sorted, all at storageLevel
	schema       Schema
	minRadius    float64
	maxRadius    float64
	provider     pc.DataProvider
	logger       logging.Logger
}

// New creates a cell index from the set of storage cells present in backing
// storage. minRadius and maxRadius bound the distance of any stored point
// from the origin and are used to derive conservative node bounding boxes.
func New(
	cells []s2.CellID,
	storageLevel int,
	schema Schema,
	minRadius, maxRadius float64,
	provider pc.DataProvider,
	logger logging.Logger,
) (*CellIndex, error) {
	if provider == nil {
		return nil, errors.New("cell index requires a data provider")
	}
	if storageLevel < 0 || storageLevel > 30 {
		return nil, errors.Errorf("storage level %d outside the valid cell level range", storageLevel)
	}
	if minRadius < 0 || maxRadius < minRadius {
		return nil, errors.Errorf("invalid radius bounds [%f, %f]", minRadius, maxRadius)
	}
	sorted := make([]s2.CellID, len(cells))
	copy(sorted, cells)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, c := range sorted {
		if !c.IsValid() || c.Level() != storageLevel {
			return nil, errors.Errorf("cell %s is not a valid level %d cell", c.ToToken(), storageLevel)
		}
	}
	return &CellIndex{
		storageLevel: storageLevel,
		cells:        sorted,
		schema:       schema,
		minRadius:    minRadius,
		maxRadius:    maxRadius,
		provider:     provider,
		logger:       logger,
	}, nil
}

// StorageLevel returns the cell level point data is stored at.
func (ci *CellIndex) StorageLevel() int {
	return ci.storageLevel
}

// NumCells returns the number of occupied storage cells.
func (ci *CellIndex) NumCells() int {
	return len(ci.cells)
}

// hasData reports whether any storage cell lies within the given cell.
func (ci *CellIndex) hasData(c s2.CellID) bool {
	i := sort.Search(len(ci.cells), func(i int) bool { return ci.cells[i] >= c.RangeMin() })
	return i < len(ci.cells) && ci.cells[i] <= c.RangeMax()
}

// RootIDs returns the occupied face cells in face order.
func (ci *CellIndex) RootIDs() []pc.NodeID {
	var roots []pc.NodeID
	for face := 0; face < 6; face++ {
		c := s2.CellIDFromFace(face)
		if ci.hasData(c) {
			roots = append(roots, pc.NodeID(c.ToToken()))
		}
	}
	return roots
}

func (ci *CellIndex) cellFromNodeID(id pc.NodeID) (s2.CellID, error) {
	c := s2.CellIDFromToken(string(id))
	if !c.IsValid() || c.Level() > ci.storageLevel || !ci.hasData(c) {
		return 0, errors.Errorf("cell index has no node %q", string(id))
	}
	return c, nil
}

// BoundingVolume returns the node's cell id plus a conservative enclosing
// axis-aligned box so box-like predicates work against the cell index.
func (ci *CellIndex) BoundingVolume(id pc.NodeID) (pc.BoundingVolume, error) {
	c, err := ci.cellFromNodeID(id)
	if err != nil {
		return nil, err
	}
	return pc.CellVolume{Cell: c, Box: ci.enclosingBox(c)}, nil
}

// enclosingBox bounds every possible point of the cell between the index's
// radius bounds. The cell's corner and center directions seed the box; the
// cap angle pads it to cover the cell's curvature.
func (ci *CellIndex) enclosingBox(c s2.CellID) spatialmath.AxisAlignedBox {
	cell := s2.CellFromCellID(c)
	dirs := []s2.Point{cell.Vertex(0), cell.Vertex(1), cell.Vertex(2), cell.Vertex(3), c.Point()}
	box := spatialmath.EmptyAxisAlignedBox()
	for _, d := range dirs {
		v := d.Vector.Normalize()
		box = box.Extend(v.Mul(ci.minRadius))
		box = box.Extend(v.Mul(ci.maxRadius))
	}
	pad := ci.maxRadius * cell.CapBound().Radius().Radians()
	return box.Expand(pad)
}

// Children returns the node's occupied child cells in cell id order.
func (ci *CellIndex) Children(id pc.NodeID) ([]pc.NodeID, error) {
	c, err := ci.cellFromNodeID(id)
	if err != nil {
		return nil, err
	}
	if c.Level() >= ci.storageLevel {
		return nil, nil
	}
	var children []pc.NodeID
	for _, child := range c.Children() {
		if ci.hasData(child) {
			children = append(children, pc.NodeID(child.ToToken()))
		}
	}
	return children, nil
}

// LoadBatch materializes the node's points restricted to the requested
// attributes. Interior nodes hold no points and produce an empty batch
// shaped by the index schema.
func (ci *CellIndex) LoadBatch(ctx context.Context, id pc.NodeID, attributes []string) (*pc.Batch, error) {
	c, err := ci.cellFromNodeID(id)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	if c.Level() < ci.storageLevel {
		return ci.emptyBatch(id, attributes)
	}
	return ci.provider.LoadNode(ctx, id, attributes)
}

func (ci *CellIndex) emptyBatch(id pc.NodeID, attributes []string) (*pc.Batch, error) {
	kinds := make([]pc.AttributeKind, len(attributes))
	for i, name := range attributes {
		kind, ok := ci.schema[name]
		if !ok {
			return nil, pc.NewAttributeMissingError(id, name)
		}
		kinds[i] = kind
	}
	return pc.NewBatch(attributes, kinds)
}

// CellIDForPoint returns the storage-level cell containing the direction of
// the given point from the origin.
func (ci *CellIndex) CellIDForPoint(x, y, z float64) s2.CellID {
	return CellIDAtLevel(x, y, z, ci.storageLevel)
}

// CellIDAtLevel returns the cell at the given level containing the direction
// of the given coordinates from the origin.
func CellIDAtLevel(x, y, z float64, level int) s2.CellID {
	p := s2.PointFromCoords(x, y, z)
	return s2.CellFromPoint(p).ID().Parent(level)
}
