// Package main runs a point stream server that serves spatial queries over a
// directory of stored index nodes.
package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/lidarview/pointstream/cellindex"
	"github.com/lidarview/pointstream/config"
	"github.com/lidarview/pointstream/dataprovider"
	"github.com/lidarview/pointstream/grpc"
	"github.com/lidarview/pointstream/logging"
	"github.com/lidarview/pointstream/octree"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

var logger = logging.NewDebugLogger("pointstream_server")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	DataDir   string `flag:"data,required,usage=directory holding the index node files"`
	Address   string `flag:"address,usage=listen address (default :50051)"`
	IndexKind string `flag:"index,default=octree,usage=index variant: octree or cells"`

	// octree options
	Bounds string `flag:"bounds,usage=octree root cube as minX,minY,minZ,maxX,maxY,maxZ"`

	// cell index options
	CellLevel int    `flag:"level,default=12,usage=cell index storage level"`
	MinRadius string `flag:"minRadius,usage=minimum point distance from the origin"`
	MaxRadius string `flag:"maxRadius,usage=maximum point distance from the origin"`
	Schema    string `flag:"schema,usage=cell index attribute schema, e.g. color:u8x3,intensity:f32"`

	NumWorkers int `flag:"workers,usage=worker pool size (default one less than the CPU count)"`
	BatchSize  int `flag:"batchSize,usage=maximum points per delivered batch"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if argsParsed.Address != "" {
		cfg.BindAddress = argsParsed.Address
	}
	if argsParsed.NumWorkers > 0 {
		cfg.NumWorkers = argsParsed.NumWorkers
	}
	if argsParsed.BatchSize > 0 {
		cfg.BatchSize = argsParsed.BatchSize
	}

	provider := dataprovider.NewOnDiskProvider(argsParsed.DataDir, logger)
	ids, err := scanNodeIDs(argsParsed.DataDir)
	if err != nil {
		return err
	}
	logger.Infow("scanned data directory", "dir", argsParsed.DataDir, "nodes", len(ids))

	var index pc.SpatialIndex
	switch argsParsed.IndexKind {
	case "octree":
		bounds, err := parseBounds(argsParsed.Bounds)
		if err != nil {
			return err
		}
		index, err = octree.New(bounds, ids, provider, logger)
		if err != nil {
			return err
		}
	case "cells":
		index, err = buildCellIndex(&argsParsed, ids, provider, logger)
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown index variant %q", argsParsed.IndexKind)
	}

	server, err := grpc.NewServer([]pc.SpatialIndex{index}, cfg, logger)
	if err != nil {
		return err
	}
	listener, err := server.Listen()
	if err != nil {
		return err
	}
	goutils.PanicCapturingGo(func() {
		<-ctx.Done()
		server.Stop()
	})
	return server.Serve(listener)
}

// scanNodeIDs lists the node ids present in the data directory.
func scanNodeIDs(dir string) ([]pc.NodeID, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading data directory")
	}
	var ids []pc.NodeID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pst") {
			continue
		}
		ids = append(ids, pc.NodeID(strings.TrimSuffix(name, ".pst")))
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("no node files in %q", dir)
	}
	return ids, nil
}

func parseBounds(s string) (spatialmath.AxisAlignedBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return spatialmath.AxisAlignedBox{}, errors.Errorf("bounds needs 6 comma separated values, got %q", s)
	}
	var vals [6]float64
	var err error
	for i, part := range parts {
		v, parseErr := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if parseErr != nil {
			err = multierr.Append(err, errors.Wrapf(parseErr, "bounds value %d", i))
			continue
		}
		vals[i] = v
	}
	if err != nil {
		return spatialmath.AxisAlignedBox{}, err
	}
	return spatialmath.NewAxisAlignedBox(
		r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
		r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]},
	)
}

func parseSchema(s string) (cellindex.Schema, error) {
	schema := cellindex.Schema{}
	if s == "" {
		return schema, nil
	}
	var err error
	for _, entry := range strings.Split(s, ",") {
		name, kindName, ok := strings.Cut(entry, ":")
		if !ok {
			err = multierr.Append(err, errors.Errorf("schema entry %q is not name:kind", entry))
			continue
		}
		switch kindName {
		case "u8":
			schema[name] = pc.KindU8
		case "u8x3":
			schema[name] = pc.KindU8x3
		case "f32":
			schema[name] = pc.KindF32
		case "f64":
			schema[name] = pc.KindF64
		default:
			err = multierr.Append(err, errors.Errorf("schema entry %q has unknown kind %q", entry, kindName))
		}
	}
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func buildCellIndex(
	args *Arguments,
	ids []pc.NodeID,
	provider pc.DataProvider,
	logger logging.Logger,
) (*cellindex.CellIndex, error) {
	minRadius, err := strconv.ParseFloat(args.MinRadius, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parsing minRadius")
	}
	maxRadius, err := strconv.ParseFloat(args.MaxRadius, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parsing maxRadius")
	}
	schema, err := parseSchema(args.Schema)
	if err != nil {
		return nil, err
	}
	cells := make([]s2.CellID, 0, len(ids))
	for _, id := range ids {
		c := s2.CellIDFromToken(string(id))
		if !c.IsValid() {
			return nil, errors.Errorf("node file %q is not a cell token", string(id))
		}
		cells = append(cells, c)
	}
	return cellindex.New(cells, args.CellLevel, schema, minRadius, maxRadius, provider, logger)
}
