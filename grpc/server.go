package grpc

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lidarview/pointstream/config"
	"github.com/lidarview/pointstream/iterator"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
	"github.com/lidarview/pointstream/utils"
)

const (
	serviceName         = "pointstream.v1.PointStream"
	queryPointDataName  = "QueryPointData"
	queryPointDataRoute = "/" + serviceName + "/" + queryPointDataName
)

// queryService is the server-side contract of the streaming protocol.
type queryService interface {
	queryPointData(req *queryRequest, stream grpc.ServerStream) error
}

func queryPointDataHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(queryRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(queryService).queryPointData(req, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*queryService)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    queryPointDataName,
		Handler:       queryPointDataHandler,
		ServerStreams: true,
	}},
}

// Server streams query results for a fixed set of spatial indices. Each
// incoming query runs through its own traversal pipeline; result batches
// are split into chunks that stay under the configured message ceiling.
type Server struct {
	indices    []pc.SpatialIndex
	cfg        *config.Config
	logger     logging.Logger
	grpcServer *grpc.Server
}

// NewServer creates a streaming server over the given indices. A nil cfg
// uses the defaults.
func NewServer(indices []pc.SpatialIndex, cfg *config.Config, logger logging.Logger) (*Server, error) {
	if len(indices) == 0 {
		return nil, errors.New("streaming server requires at least one index")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	server := &Server{
		indices: indices,
		cfg:     cfg,
		logger:  logger,
		grpcServer: grpc.NewServer(
			grpc.ForceServerCodec(wireCodec{}),
			grpc.MaxSendMsgSize(cfg.MaxMessageBytes),
		),
	}
	server.grpcServer.RegisterService(&serviceDesc, server)
	return server, nil
}

// Listen binds the configured address and returns the listener. Callers pass
// it to Serve; tests substitute their own listener instead.
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "binding %q", s.cfg.BindAddress)
	}
	return listener, nil
}

// Serve accepts connections on the listener until Stop. It blocks.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Infow("point stream server listening", "address", listener.Addr().String())
	return s.grpcServer.Serve(listener)
}

// Stop drains in-flight streams and shuts the server down.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) queryPointData(req *queryRequest, stream grpc.ServerStream) error {
	session := uuid.NewString()
	q, err := toQuery(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := q.Validate(); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debugw("streaming query started",
		"session", session,
		"attributes", q.Attributes,
		"location", locationKind(req),
	)

	it := iterator.NewParallelIterator(
		s.indices, q, s.cfg.BatchSize, s.cfg.NumWorkers, s.cfg.BufferSize, s.logger)
	err = it.TryForEachBatch(stream.Context(), func(batch *pc.Batch) error {
		return s.sendBatch(stream, batch)
	})
	if err != nil {
		s.logger.Debugw("streaming query failed", "session", session, "error", err)
		return queryStatus(err)
	}
	s.logger.Debugw("streaming query completed", "session", session)
	return nil
}

// sendBatch streams one pipeline batch as a run of chunks, each sized under
// the message ceiling, with the final chunk flagged so the client can
// reassemble the original batch boundary.
func (s *Server) sendBatch(stream grpc.ServerStream, batch *pc.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	limit := utils.MaxInt((s.cfg.MaxMessageBytes-chunkHeadroom)/batch.BytesPerPoint(), 1)
	for start := 0; start < batch.Len(); start += limit {
		end := utils.MinInt(start+limit, batch.Len())
		chunk := &batchChunk{Final: end == batch.Len(), Batch: batch.Slice(start, end)}
		if err := stream.SendMsg(chunk); err != nil {
			return err
		}
	}
	return nil
}

func locationKind(req *queryRequest) string {
	if req.Location == nil {
		return locationKindAll
	}
	return req.Location.Kind
}

// queryStatus maps pipeline errors onto gRPC status codes.
func queryStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Canceled, err.Error())
	case pc.IsAttributeMissingError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case pc.IsNodeLoadError(err):
		return status.Error(codes.NotFound, err.Error())
	case isGeometryError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func isGeometryError(err error) bool {
	var geomErr *query.GeometryError
	return errors.As(err, &geomErr)
}
