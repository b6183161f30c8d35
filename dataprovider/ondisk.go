// Package dataprovider contains the backing stores a spatial index loads
// node point data from: a directory-backed store with lz4 compressed
// columnar node files, and an in-memory store for tests.
package dataprovider

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
)

const (
	nodeFileExt     = ".pst"
	nodeFileVersion = uint16(1)
)

var nodeFileMagic = [4]byte{'P', 'N', 'T', 'S'}

// OnDiskProvider reads node batches from one file per node inside a
// directory. Column blocks are lz4 compressed.
type OnDiskProvider struct {
	dir    string
	logger logging.Logger
}

// NewOnDiskProvider returns a provider reading node files from the given
// directory.
func NewOnDiskProvider(dir string, logger logging.Logger) *OnDiskProvider {
	return &OnDiskProvider{dir: dir, logger: logger}
}

// Directory returns the directory backing the provider.
func (p *OnDiskProvider) Directory() string {
	return p.dir
}

func (p *OnDiskProvider) nodePath(id pc.NodeID) string {
	return filepath.Join(p.dir, string(id)+nodeFileExt)
}

// LoadNode reads the stored batch for a node restricted to the requested
// attributes. Requested attributes absent from the node surface as
// AttributeMissingError; any storage failure surfaces as NodeLoadError.
func (p *OnDiskProvider) LoadNode(ctx context.Context, id pc.NodeID, attributes []string) (*pc.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p.nodePath(id))
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	batch, err := decodeNodeFile(raw, id, attributes)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// StoreNode stores the batch as the node's file, creating the directory if
// needed. This is the surface index construction tooling writes through.
func (p *OnDiskProvider) StoreNode(id pc.NodeID, batch *pc.Batch) error {
	if err := batch.Validate(); err != nil {
		return errors.Wrapf(err, "refusing to write invalid batch for node %q", string(id))
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating node directory")
	}
	data, err := encodeNodeFile(batch)
	if err != nil {
		return errors.Wrapf(err, "encoding node %q", string(id))
	}
	return os.WriteFile(p.nodePath(id), data, 0o644)
}

// encodeNodeFile serializes a batch into the on-disk node file layout:
// a fixed header, an attribute table, then one compressed block for the
// position column followed by one per attribute column.
func encodeNodeFile(batch *pc.Batch) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(nodeFileMagic[:])
	writeU16(&buf, nodeFileVersion)
	writeU32(&buf, uint32(batch.Len()))
	writeU16(&buf, uint16(len(batch.Attributes)))
	for i, name := range batch.Attributes {
		writeU16(&buf, uint16(len(name)))
		buf.WriteString(name)
		buf.WriteByte(byte(batch.Columns[i].Kind()))
	}

	if err := writeBlock(&buf, pc.EncodePositions(batch.Positions)); err != nil {
		return nil, err
	}
	for _, col := range batch.Columns {
		if err := writeBlock(&buf, pc.EncodeColumn(col)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeNodeFile(raw []byte, id pc.NodeID, attributes []string) (*pc.Batch, error) {
	r := bytes.NewReader(raw)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != nodeFileMagic {
		return nil, pc.NewNodeLoadError(id, errors.New("bad node file magic"))
	}
	version, err := readU16(r)
	if err != nil || version != nodeFileVersion {
		return nil, pc.NewNodeLoadError(id, errors.Errorf("unsupported node file version %d", version))
	}
	count, err := readU32(r)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	attrCount, err := readU16(r)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}

	names := make([]string, attrCount)
	kinds := make([]pc.AttributeKind, attrCount)
	for i := 0; i < int(attrCount); i++ {
		nameLen, err := readU16(r)
		if err != nil {
			return nil, pc.NewNodeLoadError(id, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, pc.NewNodeLoadError(id, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, pc.NewNodeLoadError(id, err)
		}
		names[i] = string(name)
		kinds[i] = pc.AttributeKind(kind)
	}

	stored := make(map[string]int, attrCount)
	for i, name := range names {
		stored[name] = i
	}
	for _, want := range attributes {
		if _, ok := stored[want]; !ok {
			return nil, pc.NewAttributeMissingError(id, want)
		}
	}

	posRaw, err := readBlock(r)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	positions, err := pc.DecodePositions(posRaw, int(count))
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}

	cols := make([]pc.Column, attrCount)
	for i := 0; i < int(attrCount); i++ {
		colRaw, err := readBlock(r)
		if err != nil {
			return nil, pc.NewNodeLoadError(id, err)
		}
		col, err := pc.DecodeColumn(colRaw, kinds[i], int(count))
		if err != nil {
			return nil, pc.NewNodeLoadError(id, err)
		}
		cols[i] = col
	}

	full := &pc.Batch{Positions: positions, Attributes: names, Columns: cols}
	if err := full.Validate(); err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	projected, err := full.Project(attributes)
	if err != nil {
		return nil, pc.NewNodeLoadError(id, err)
	}
	return projected, nil
}

// writeBlock writes an lz4 compressed block: uncompressed size, compressed
// size, payload. A compressed size of zero marks an incompressible block
// stored raw.
func writeBlock(buf *bytes.Buffer, data []byte) error {
	writeU32(buf, uint32(len(data)))
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return errors.Wrap(err, "lz4 compression")
	}
	if n == 0 || n >= len(data) {
		writeU32(buf, 0)
		buf.Write(data)
		return nil
	}
	writeU32(buf, uint32(n))
	buf.Write(compressed[:n])
	return nil
}

// lz4MaxExpansion bounds how much an lz4 block can grow on decompression:
// match extension encodes at most 255 output bytes per input byte.
const lz4MaxExpansion = 255

func readBlock(r *bytes.Reader) ([]byte, error) {
	uncompressedSize, err := readU32(r)
	if err != nil {
		return nil, err
	}
	compressedSize, err := readU32(r)
	if err != nil {
		return nil, err
	}
	// size allocations from the bytes actually present, never from header
	// fields alone
	if compressedSize == 0 {
		if int(uncompressedSize) > r.Len() {
			return nil, errors.Errorf("block claims %d raw bytes but only %d remain", uncompressedSize, r.Len())
		}
		data := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return data, nil
	}
	if int(compressedSize) > r.Len() {
		return nil, errors.Errorf("block claims %d compressed bytes but only %d remain", compressedSize, r.Len())
	}
	if uint64(uncompressedSize) > uint64(compressedSize)*lz4MaxExpansion {
		return nil, errors.Errorf("block claims %d bytes from %d compressed", uncompressedSize, compressedSize)
	}
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	data := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, data)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompression")
	}
	if n != int(uncompressedSize) {
		return nil, errors.Errorf("block decompressed to %d bytes, want %d", n, uncompressedSize)
	}
	return data, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var tmp [2]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(tmp[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}
