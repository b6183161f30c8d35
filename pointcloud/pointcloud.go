// Package pointcloud defines the data model shared by every spatial index
// variant: columnar point batches, node identities and bounding volumes, the
// index contract itself and the data provider used to materialize a node's
// points on demand.
//
// Indices are read-only for the lifetime of a query and safe for concurrent
// use; batches are ephemeral and discarded once consumed.
package pointcloud

import (
	"context"

	"github.com/golang/geo/s2"

	"github.com/lidarview/pointstream/spatialmath"
)

// NodeID identifies a node within its spatial index. Octree nodes use an
// "r"-prefixed octant digit path ("r", "r0".."r7", "r00", ...); cell index
// nodes use the token form of their S2 cell id.
type NodeID string

// BoundingVolume is the closed set of node bounding volume variants. Every
// volume can report a conservative enclosing axis-aligned box so box-like
// predicates work against any index; cell index nodes additionally expose
// their cell id for exact cell arithmetic.
type BoundingVolume interface {
	// AABB returns an axis-aligned box enclosing every point the node and
	// its descendants may contain.
	AABB() spatialmath.AxisAlignedBox
}

// BoxVolume is the bounding volume of an octree node, an exact axis-aligned
// box.
type BoxVolume struct {
	Box spatialmath.AxisAlignedBox
}

// AABB returns the node's box.
func (v BoxVolume) AABB() spatialmath.AxisAlignedBox {
	return v.Box
}

// CellVolume is the bounding volume of a cell index node: the spherical cell
// itself plus a conservative enclosing box for classification against
// box-like predicates.
type CellVolume struct {
	Cell s2.CellID
	Box  spatialmath.AxisAlignedBox
}

// AABB returns the conservative enclosing box of the cell.
func (v CellVolume) AABB() spatialmath.AxisAlignedBox {
	return v.Box
}

// SpatialIndex is the contract every index variant exposes so the traversal
// scheduler and iterator stay index-agnostic. Implementations must be safe
// for concurrent readers; the query engine never mutates an index.
type SpatialIndex interface {
	// RootIDs returns the ids of the index's root nodes in a stable order.
	RootIDs() []NodeID

	// BoundingVolume returns the bounding volume of the given node.
	BoundingVolume(id NodeID) (BoundingVolume, error)

	// Children returns the ids of the node's children, empty for leaves.
	Children(id NodeID) ([]NodeID, error)

	// LoadBatch materializes the node's points restricted to the requested
	// attributes. It fails with a NodeLoadError when backing storage is
	// unreadable and with an AttributeMissingError when an attribute is
	// absent from the node.
	LoadBatch(ctx context.Context, id NodeID, attributes []string) (*Batch, error)
}

// DataProvider supplies node point data from some backing store, keyed by
// node id. It is injected into an index so storage backends stay swappable.
type DataProvider interface {
	// LoadNode reads the stored batch for a node, restricted to the
	// requested attributes.
	LoadNode(ctx context.Context, id NodeID, attributes []string) (*Batch, error)
}
