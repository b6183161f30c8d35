package dataprovider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
)

func makeNodeBatch(t *testing.T, n int) *pc.Batch {
	t.Helper()
	batch, err := pc.NewBatch([]string{"color", "intensity"}, []pc.AttributeKind{pc.KindU8x3, pc.KindF32})
	test.That(t, err, test.ShouldBeNil)
	colors := pc.U8x3Column{}
	intensities := pc.F32Column{}
	for i := 0; i < n; i++ {
		batch.Positions = append(batch.Positions, r3.Vector{X: float64(i), Y: float64(i % 7), Z: -float64(i)})
		colors = append(colors, [3]uint8{uint8(i), uint8(i / 2), 200})
		intensities = append(intensities, float32(i)*0.25)
	}
	batch.Columns[0] = colors
	batch.Columns[1] = intensities
	return batch
}

func TestOnDiskProviderRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := NewOnDiskProvider(t.TempDir(), logger)
	stored := makeNodeBatch(t, 100)

	test.That(t, provider.StoreNode("r42", stored), test.ShouldBeNil)

	loaded, err := provider.LoadNode(context.Background(), "r42", []string{"color", "intensity"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Len(), test.ShouldEqual, 100)
	test.That(t, loaded.Positions, test.ShouldResemble, stored.Positions)
	test.That(t, loaded.Attributes, test.ShouldResemble, []string{"color", "intensity"})
	loadedColors, _ := loaded.Column("color")
	storedColors, _ := stored.Column("color")
	test.That(t, loadedColors, test.ShouldResemble, storedColors)
}

func TestOnDiskProviderProjection(t *testing.T) {
	logger := logging.NewTestLogger(t)
	provider := NewOnDiskProvider(t.TempDir(), logger)
	test.That(t, provider.StoreNode("r", makeNodeBatch(t, 10)), test.ShouldBeNil)

	// attribute subset, reordered
	loaded, err := provider.LoadNode(context.Background(), "r", []string{"intensity"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Attributes, test.ShouldResemble, []string{"intensity"})
	test.That(t, loaded.Len(), test.ShouldEqual, 10)

	// positions only
	loaded, err = provider.LoadNode(context.Background(), "r", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Attributes, test.ShouldHaveLength, 0)
	test.That(t, loaded.Len(), test.ShouldEqual, 10)
}

func TestOnDiskProviderErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	provider := NewOnDiskProvider(dir, logger)
	test.That(t, provider.StoreNode("r", makeNodeBatch(t, 5)), test.ShouldBeNil)

	_, err := provider.LoadNode(context.Background(), "r9", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	_, err = provider.LoadNode(context.Background(), "r", []string{"classification"})
	test.That(t, pc.IsAttributeMissingError(err), test.ShouldBeTrue)

	// corrupt file
	path := filepath.Join(dir, "r.pst")
	test.That(t, os.WriteFile(path, []byte("not a node file"), 0o644), test.ShouldBeNil)
	_, err = provider.LoadNode(context.Background(), "r", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = provider.LoadNode(ctx, "r", nil)
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestInMemoryProvider(t *testing.T) {
	provider := NewInMemoryProvider()
	test.That(t, provider.StoreNode("n1", makeNodeBatch(t, 8)), test.ShouldBeNil)

	loaded, err := provider.LoadNode(context.Background(), "n1", []string{"color"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Len(), test.ShouldEqual, 8)
	test.That(t, loaded.Attributes, test.ShouldResemble, []string{"color"})

	_, err = provider.LoadNode(context.Background(), "n2", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	_, err = provider.LoadNode(context.Background(), "n1", []string{"missing"})
	test.That(t, pc.IsAttributeMissingError(err), test.ShouldBeTrue)
}

func TestBlockHeadersBoundAllocations(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	provider := NewOnDiskProvider(dir, logger)
	path := filepath.Join(dir, "r.pst")

	header := func(block ...byte) []byte {
		raw := append([]byte{}, nodeFileMagic[:]...)
		raw = append(raw, 1, 0)       // version
		raw = append(raw, 1, 0, 0, 0) // point count
		raw = append(raw, 0, 0)       // attribute count
		return append(raw, block...)
	}

	// raw block claiming ~4 GiB with nothing behind it
	test.That(t, os.WriteFile(path, header(0xF0, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0), 0o644), test.ShouldBeNil)
	_, err := provider.LoadNode(context.Background(), "r", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	// compressed block claiming more than any 4 bytes can decompress to
	test.That(t, os.WriteFile(path, header(0xF0, 0xFF, 0xFF, 0xFF, 4, 0, 0, 0, 1, 2, 3, 4), 0o644), test.ShouldBeNil)
	_, err = provider.LoadNode(context.Background(), "r", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)

	// compressed block header larger than the file
	test.That(t, os.WriteFile(path, header(16, 0, 0, 0, 0xFF, 0xFF, 0, 0), 0o644), test.ShouldBeNil)
	_, err = provider.LoadNode(context.Background(), "r", nil)
	test.That(t, pc.IsNodeLoadError(err), test.ShouldBeTrue)
}

func TestNodeWriterInterfaces(t *testing.T) {
	var _ NodeWriter = NewInMemoryProvider()
	var _ NodeWriter = NewOnDiskProvider(t.TempDir(), logging.NewTestLogger(t))
}
