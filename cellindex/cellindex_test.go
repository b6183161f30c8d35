package cellindex

import (
	"context"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"go.viam.com/test"

	"github.com/lidarview/pointstream/dataprovider"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
)

// sphereBatch returns n points at radii in [minR, maxR] in random directions.
func sphereBatch(t *testing.T, n int, minR, maxR float64) *pc.Batch {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	batch, err := pc.NewBatch([]string{"color"}, []pc.AttributeKind{pc.KindU8x3})
	test.That(t, err, test.ShouldBeNil)
	colors := pc.U8x3Column{}
	for i := 0; i < n; i++ {
		dir := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()
		radius := minR + rng.Float64()*(maxR-minR)
		batch.Positions = append(batch.Positions, dir.Mul(radius))
		colors = append(colors, [3]uint8{uint8(i), 0, 0})
	}
	batch.Columns[0] = colors
	return batch
}

func TestNewValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()

	_, err := New(nil, 4, nil, 1, 2, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(nil, 31, nil, 1, 2, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(nil, 4, nil, 2, 1, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)

	// cells must be at the storage level
	wrongLevel := s2.CellIDFromFace(0).ChildBeginAtLevel(3)
	_, err = New([]s2.CellID{wrongLevel}, 4, nil, 1, 2, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)

	index, err := New(nil, 4, nil, 1, 2, provider, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, index.NumCells(), test.ShouldEqual, 0)
	test.That(t, index.RootIDs(), test.ShouldHaveLength, 0)
}

func TestHierarchy(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	batch := sphereBatch(t, 500, 5, 10)

	index, err := BuildFromBatch(batch, 3, provider, provider, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, index.StorageLevel(), test.ShouldEqual, 3)
	test.That(t, index.NumCells(), test.ShouldBeGreaterThan, 1)

	roots := index.RootIDs()
	test.That(t, len(roots), test.ShouldBeGreaterThan, 0)

	// walking the hierarchy reaches every stored point exactly once
	total := 0
	var walk func(id pc.NodeID)
	walk = func(id pc.NodeID) {
		nodeBatch, err := index.LoadBatch(context.Background(), id, []string{"color"})
		test.That(t, err, test.ShouldBeNil)
		total += nodeBatch.Len()
		children, err := index.Children(id)
		test.That(t, err, test.ShouldBeNil)
		cell := s2.CellIDFromToken(string(id))
		if cell.Level() < index.StorageLevel() {
			// interior nodes store nothing
			test.That(t, nodeBatch.Len(), test.ShouldEqual, 0)
			test.That(t, len(children), test.ShouldBeGreaterThan, 0)
		} else {
			test.That(t, children, test.ShouldHaveLength, 0)
		}
		for _, child := range children {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	test.That(t, total, test.ShouldEqual, 500)
}

func TestBoundingVolume(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	batch := sphereBatch(t, 300, 5, 10)

	index, err := BuildFromBatch(batch, 2, provider, provider, logger)
	test.That(t, err, test.ShouldBeNil)

	// every node's enclosing box contains every point stored under it
	var walk func(id pc.NodeID)
	walk = func(id pc.NodeID) {
		vol, err := index.BoundingVolume(id)
		test.That(t, err, test.ShouldBeNil)
		cv, ok := vol.(pc.CellVolume)
		test.That(t, ok, test.ShouldBeTrue)

		box := cv.AABB()
		cell := s2.CellIDFromToken(string(id))
		for _, p := range batch.Positions {
			if cell.Contains(s2.CellFromPoint(s2.PointFromCoords(p.X, p.Y, p.Z)).ID()) {
				test.That(t, box.ContainsPoint(p), test.ShouldBeTrue)
			}
		}
		children, err := index.Children(id)
		test.That(t, err, test.ShouldBeNil)
		for _, child := range children {
			walk(child)
		}
	}
	for _, root := range index.RootIDs() {
		walk(root)
	}

	_, err = index.BoundingVolume("zzz")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadBatchErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	batch := sphereBatch(t, 100, 1, 2)

	index, err := BuildFromBatch(batch, 4, provider, provider, logger)
	test.That(t, err, test.ShouldBeNil)

	roots := index.RootIDs()
	test.That(t, len(roots), test.ShouldBeGreaterThan, 0)

	_, err = index.LoadBatch(context.Background(), "not-a-token", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	// unknown attribute on an interior node is caught by the schema
	interior := roots[0]
	if s2.CellIDFromToken(string(interior)).Level() < index.StorageLevel() {
		_, err = index.LoadBatch(context.Background(), interior, []string{"missing"})
		test.That(t, pc.IsAttributeMissingError(err), test.ShouldBeTrue)
	}
}

func TestCellIDForPoint(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	index, err := New(nil, 5, nil, 1, 2, provider, logger)
	test.That(t, err, test.ShouldBeNil)

	c := index.CellIDForPoint(1, 2, 3)
	test.That(t, c.Level(), test.ShouldEqual, 5)
	test.That(t, c, test.ShouldEqual, CellIDAtLevel(1, 2, 3, 5))
	// scaling the point does not change its direction cell
	test.That(t, CellIDAtLevel(10, 20, 30, 5), test.ShouldEqual, c)
}
