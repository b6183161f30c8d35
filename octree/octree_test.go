package octree

import (
	"context"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lidarview/pointstream/dataprovider"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

func randomBatch(t *testing.T, n int, bounds spatialmath.AxisAlignedBox) *pc.Batch {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	batch, err := pc.NewBatch([]string{"intensity"}, []pc.AttributeKind{pc.KindF32})
	test.That(t, err, test.ShouldBeNil)
	extent := bounds.Max.Sub(bounds.Min)
	intensities := pc.F32Column{}
	for i := 0; i < n; i++ {
		batch.Positions = append(batch.Positions, r3.Vector{
			X: bounds.Min.X + rng.Float64()*extent.X,
			Y: bounds.Min.Y + rng.Float64()*extent.Y,
			Z: bounds.Min.Z + rng.Float64()*extent.Z,
		})
		intensities = append(intensities, rng.Float32())
	}
	batch.Columns[0] = intensities
	return batch
}

func TestNewValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	bounds := spatialmath.AxisAlignedBox{Max: r3.Vector{X: 1, Y: 1, Z: 1}}

	_, err := New(bounds, []pc.NodeID{"r"}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(bounds, []pc.NodeID{"x1"}, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(bounds, []pc.NodeID{"r", "r8"}, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)

	// orphan child
	_, err = New(bounds, []pc.NodeID{"r", "r12"}, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parent")

	tree, err := New(bounds, []pc.NodeID{"r", "r1", "r12"}, provider, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.NumNodes(), test.ShouldEqual, 3)
	test.That(t, tree.RootIDs(), test.ShouldResemble, []pc.NodeID{RootID})

	empty, err := New(bounds, nil, provider, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.RootIDs(), test.ShouldHaveLength, 0)
}

func TestTopology(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	bounds := spatialmath.AxisAlignedBox{Max: r3.Vector{X: 8, Y: 8, Z: 8}}
	tree, err := New(bounds, []pc.NodeID{"r", "r0", "r7", "r70"}, provider, logger)
	test.That(t, err, test.ShouldBeNil)

	children, err := tree.Children("r")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, children, test.ShouldResemble, []pc.NodeID{"r0", "r7"})

	children, err = tree.Children("r0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, children, test.ShouldHaveLength, 0)

	_, err = tree.Children("r3")
	test.That(t, err, test.ShouldNotBeNil)

	vol, err := tree.BoundingVolume("r7")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vol.AABB(), test.ShouldResemble, spatialmath.AxisAlignedBox{
		Min: r3.Vector{X: 4, Y: 4, Z: 4},
		Max: r3.Vector{X: 8, Y: 8, Z: 8},
	})

	vol, err = tree.BoundingVolume("r70")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vol.AABB(), test.ShouldResemble, spatialmath.AxisAlignedBox{
		Min: r3.Vector{X: 4, Y: 4, Z: 4},
		Max: r3.Vector{X: 6, Y: 6, Z: 6},
	})
}

func TestBuildFromBatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	bounds := spatialmath.AxisAlignedBox{
		Min: r3.Vector{X: -10, Y: -10, Z: -10},
		Max: r3.Vector{X: 10, Y: 10, Z: 10},
	}
	batch := randomBatch(t, 2000, bounds)

	tree, err := BuildFromBatch(batch, bounds, 100, provider, provider, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.NumNodes(), test.ShouldBeGreaterThan, 8)

	// every point lands in exactly one node and inside that node's box
	total := 0
	var walk func(id pc.NodeID)
	walk = func(id pc.NodeID) {
		nodeBatch, err := tree.LoadBatch(context.Background(), id, []string{"intensity"})
		test.That(t, err, test.ShouldBeNil)
		total += nodeBatch.Len()
		children, err := tree.Children(id)
		test.That(t, err, test.ShouldBeNil)
		for _, child := range children {
			vol, err := tree.BoundingVolume(child)
			test.That(t, err, test.ShouldBeNil)
			childBatch, err := tree.LoadBatch(context.Background(), child, nil)
			test.That(t, err, test.ShouldBeNil)
			for _, p := range childBatch.Positions {
				test.That(t, vol.AABB().ContainsPoint(p), test.ShouldBeTrue)
			}
			walk(child)
		}
	}
	walk(RootID)
	test.That(t, total, test.ShouldEqual, 2000)

	// out of bounds points are rejected
	outside := randomBatch(t, 10, spatialmath.AxisAlignedBox{
		Min: r3.Vector{X: 20, Y: 20, Z: 20},
		Max: r3.Vector{X: 30, Y: 30, Z: 30},
	})
	_, err = BuildFromBatch(outside, bounds, 100, provider, provider, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadBatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := dataprovider.NewInMemoryProvider()
	bounds := spatialmath.AxisAlignedBox{Max: r3.Vector{X: 1, Y: 1, Z: 1}}
	batch := randomBatch(t, 50, bounds)
	tree, err := BuildFromBatch(batch, bounds, 100, provider, provider, logger)
	test.That(t, err, test.ShouldBeNil)

	loaded, err := tree.LoadBatch(context.Background(), RootID, []string{"intensity"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Len(), test.ShouldEqual, 50)

	_, err = tree.LoadBatch(context.Background(), "r5", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	_, err = tree.LoadBatch(context.Background(), RootID, []string{"color"})
	test.That(t, pc.IsAttributeMissingError(err), test.ShouldBeTrue)
}
