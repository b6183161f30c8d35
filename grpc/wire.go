// Package grpc contains the streaming transport: a server that runs the
// traversal pipeline against its local indices and streams size-capped
// columnar chunks, and a client source that reassembles the chunks and
// replays them through the standard callback API. The wire protocol is a
// hand-rolled binary codec carried over gRPC server streams; message
// semantics match the in-process pipeline exactly.
package grpc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
	"github.com/lidarview/pointstream/spatialmath"
)

const (
	locationKindAll       = "all"
	locationKindAabb      = "aabb"
	locationKindObb       = "obb"
	locationKindFrustum   = "frustum"
	locationKindCellUnion = "cells"
)

// queryRequest is the wire form of a point query. It is small and
// infrequent, so it travels as JSON; a nil location is the all-points
// shortcut request.
type queryRequest struct {
	Attributes []string          `json:"attributes"`
	Location   *locationEnvelope `json:"location,omitempty"`
}

type locationEnvelope struct {
	Kind    string          `json:"kind"`
	Aabb    *aabbPayload    `json:"aabb,omitempty"`
	Obb     *obbPayload     `json:"obb,omitempty"`
	Frustum *frustumPayload `json:"frustum,omitempty"`
	Cells   []string        `json:"cells,omitempty"`
}

type aabbPayload struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type obbPayload struct {
	Center   [3]float64 `json:"center"`
	Dims     [3]float64 `json:"dims"`
	Rotation [9]float64 `json:"rotation"`
}

type frustumPayload struct {
	// planes as [nx ny nz offset], normals pointing inward
	Planes [6][4]float64 `json:"planes"`
}

func vec(v [3]float64) r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

func arr(v r3.Vector) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// toWireQuery converts an in-process query into its wire form.
func toWireQuery(q *query.PointQuery) (*queryRequest, error) {
	req := &queryRequest{Attributes: q.Attributes}
	switch loc := q.Predicate().(type) {
	case query.AllPoints:
		req.Location = nil
	case query.AxisAlignedBox:
		req.Location = &locationEnvelope{
			Kind: locationKindAabb,
			Aabb: &aabbPayload{Min: arr(loc.Box.Min), Max: arr(loc.Box.Max)},
		}
	case query.OrientedBox:
		half := loc.Box.HalfSize()
		req.Location = &locationEnvelope{
			Kind: locationKindObb,
			Obb: &obbPayload{
				Center:   arr(loc.Box.Center()),
				Dims:     [3]float64{2 * half[0], 2 * half[1], 2 * half[2]},
				Rotation: loc.Box.Rotation().RowMajor(),
			},
		}
	case query.Frustum:
		payload := &frustumPayload{}
		for i, p := range loc.Frustum.Planes() {
			payload.Planes[i] = [4]float64{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Offset}
		}
		req.Location = &locationEnvelope{Kind: locationKindFrustum, Frustum: payload}
	case query.S2Cells:
		env := &locationEnvelope{Kind: locationKindCellUnion}
		for _, c := range loc.Cells {
			env.Cells = append(env.Cells, c.ToToken())
		}
		req.Location = env
	default:
		return nil, errors.Errorf("unsupported location predicate %T", loc)
	}
	return req, nil
}

// toQuery converts a wire request back into an in-process query.
func toQuery(req *queryRequest) (*query.PointQuery, error) {
	q := &query.PointQuery{Attributes: req.Attributes}
	env := req.Location
	if env == nil || env.Kind == locationKindAll {
		return q, nil
	}
	switch env.Kind {
	case locationKindAabb:
		if env.Aabb == nil {
			return nil, errors.New("aabb location without box payload")
		}
		box, err := spatialmath.NewAxisAlignedBox(vec(env.Aabb.Min), vec(env.Aabb.Max))
		if err != nil {
			return nil, err
		}
		q.Location = query.AxisAlignedBox{Box: box}
	case locationKindObb:
		if env.Obb == nil {
			return nil, errors.New("obb location without box payload")
		}
		rotation, err := spatialmath.NewRotationMatrix(env.Obb.Rotation[:])
		if err != nil {
			return nil, err
		}
		box, err := spatialmath.NewOrientedBox(vec(env.Obb.Center), vec(env.Obb.Dims), rotation)
		if err != nil {
			return nil, err
		}
		q.Location = query.OrientedBox{Box: box}
	case locationKindFrustum:
		if env.Frustum == nil {
			return nil, errors.New("frustum location without plane payload")
		}
		var planes [6]spatialmath.Plane
		for i, p := range env.Frustum.Planes {
			planes[i] = spatialmath.Plane{
				Normal: r3.Vector{X: p[0], Y: p[1], Z: p[2]},
				Offset: p[3],
			}
		}
		frustum, err := spatialmath.NewFrustum(planes)
		if err != nil {
			return nil, err
		}
		q.Location = query.Frustum{Frustum: frustum}
	case locationKindCellUnion:
		union := make(s2.CellUnion, 0, len(env.Cells))
		for _, token := range env.Cells {
			c := s2.CellIDFromToken(token)
			if !c.IsValid() {
				return nil, errors.Errorf("invalid cell token %q", token)
			}
			union = append(union, c)
		}
		q.Location = query.S2Cells{Cells: union}
	default:
		return nil, errors.Errorf("unknown location kind %q", env.Kind)
	}
	return q, nil
}

// batchChunk is one streamed wire message: a column-aligned slice of a
// batch. Final marks the last chunk of its source batch so the client can
// reassemble batches exactly as the server's pipeline produced them.
type batchChunk struct {
	Final bool
	Batch *pc.Batch
}

const (
	chunkFlagFinal = uint8(1 << 0)

	// chunkHeadroom is subtracted from the message ceiling to leave space
	// for the chunk header and attribute table.
	chunkHeadroom = 1024
)

// encodeChunk serializes a chunk: flags, point count, attribute table, then
// the packed position and attribute columns.
func encodeChunk(chunk *batchChunk) ([]byte, error) {
	batch := chunk.Batch
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	flags := uint8(0)
	if chunk.Final {
		flags |= chunkFlagFinal
	}
	buf.WriteByte(flags)

	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(batch.Len()))
	buf.Write(tmp[:])
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(batch.Attributes)))
	buf.Write(tmp2[:])
	for i, name := range batch.Attributes {
		binary.LittleEndian.PutUint16(tmp2[:], uint16(len(name)))
		buf.Write(tmp2[:])
		buf.WriteString(name)
		buf.WriteByte(byte(batch.Columns[i].Kind()))
	}

	buf.Write(pc.EncodePositions(batch.Positions))
	for _, col := range batch.Columns {
		buf.Write(pc.EncodeColumn(col))
	}
	return buf.Bytes(), nil
}

// decodeChunk is the inverse of encodeChunk.
func decodeChunk(raw []byte) (*batchChunk, error) {
	r := bytes.NewReader(raw)
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	count := int(binary.LittleEndian.Uint32(tmp[:]))
	var tmp2 [2]byte
	if _, err := io.ReadFull(r, tmp2[:]); err != nil {
		return nil, err
	}
	attrCount := int(binary.LittleEndian.Uint16(tmp2[:]))

	names := make([]string, attrCount)
	kinds := make([]pc.AttributeKind, attrCount)
	for i := 0; i < attrCount; i++ {
		if _, err := io.ReadFull(r, tmp2[:]); err != nil {
			return nil, err
		}
		name := make([]byte, binary.LittleEndian.Uint16(tmp2[:]))
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		names[i] = string(name)
		kinds[i] = pc.AttributeKind(kind)
	}

	// size allocations from the remaining payload, never from wire-supplied
	// counts alone
	if posLen := count * 24; posLen > r.Len() {
		return nil, errors.Errorf("chunk claims %d points but only %d payload bytes remain", count, r.Len())
	}
	posRaw := make([]byte, count*24)
	if _, err := io.ReadFull(r, posRaw); err != nil {
		return nil, err
	}
	positions, err := pc.DecodePositions(posRaw, count)
	if err != nil {
		return nil, err
	}
	cols := make([]pc.Column, attrCount)
	for i := 0; i < attrCount; i++ {
		colLen := count * kinds[i].ByteWidth()
		if colLen > r.Len() {
			return nil, errors.Errorf("chunk column %q needs %d bytes but only %d remain", names[i], colLen, r.Len())
		}
		colRaw := make([]byte, colLen)
		if _, err := io.ReadFull(r, colRaw); err != nil {
			return nil, err
		}
		col, err := pc.DecodeColumn(colRaw, kinds[i], count)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	batch := &pc.Batch{Positions: positions, Attributes: names, Columns: cols}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return &batchChunk{Final: flags&chunkFlagFinal != 0, Batch: batch}, nil
}

// encodeRequest and decodeRequest carry the query envelope as JSON.
func encodeRequest(req *queryRequest) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte, req *queryRequest) error {
	return json.Unmarshal(raw, req)
}
