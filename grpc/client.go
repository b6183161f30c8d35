package grpc

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lidarview/pointstream/client"
	"github.com/lidarview/pointstream/config"
	"github.com/lidarview/pointstream/iterator"
	"github.com/lidarview/pointstream/logging"
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
)

// TransportError wraps a failure of the streaming transport itself, as
// opposed to an error produced by the remote query pipeline.
type TransportError struct {
	cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("point stream transport: %v", e.cause)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// RemoteSource serves queries from a remote streaming server. It satisfies
// the client source contract, so remote endpoints and local indices mix
// freely inside one point cloud client.
type RemoteSource struct {
	conn   *grpc.ClientConn
	cfg    *config.Config
	logger logging.Logger
}

var _ client.Source = (*RemoteSource)(nil)

// Dial connects to a streaming server. A nil cfg uses the defaults. The
// returned source is ready immediately; the underlying connection dials
// lazily.
func Dial(address string, cfg *config.Config, logger logging.Logger) (*RemoteSource, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	conn, err := grpc.NewClient(
		address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(wireCodec{}),
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageBytes),
		),
	)
	if err != nil {
		return nil, &TransportError{cause: err}
	}
	return NewRemoteSource(conn, cfg, logger), nil
}

// NewRemoteSource wraps an existing client connection. Tests use this with
// an in-memory listener.
func NewRemoteSource(conn *grpc.ClientConn, cfg *config.Config, logger logging.Logger) *RemoteSource {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &RemoteSource{conn: conn, cfg: cfg, logger: logger}
}

// Close tears down the underlying connection.
func (s *RemoteSource) Close() error {
	return s.conn.Close()
}

// ForEachBatch streams the query's results from the server and invokes fn
// once per reassembled batch on the calling goroutine. Returning
// iterator.ErrStop from fn cancels the stream and returns nil.
func (s *RemoteSource) ForEachBatch(ctx context.Context, q *query.PointQuery, fn func(*pc.Batch) error) error {
	if err := q.Validate(); err != nil {
		return err
	}
	req, err := toWireQuery(q)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.conn.NewStream(ctx, &serviceDesc.Streams[0], queryPointDataRoute)
	if err != nil {
		return &TransportError{cause: err}
	}
	if err := stream.SendMsg(req); err != nil {
		return &TransportError{cause: err}
	}
	if err := stream.CloseSend(); err != nil {
		return &TransportError{cause: err}
	}

	// Chunks of one source batch arrive in order on a single stream; the
	// accumulator holds the partial batch until the final chunk lands.
	var pending *pc.Batch
	for {
		chunk := new(batchChunk)
		if err := stream.RecvMsg(chunk); err != nil {
			if errors.Is(err, io.EOF) {
				if pending != nil {
					return &TransportError{cause: errors.New("stream ended mid-batch")}
				}
				return nil
			}
			return &TransportError{cause: err}
		}
		if pending == nil {
			pending = chunk.Batch
		} else if err := pending.Append(chunk.Batch); err != nil {
			return &TransportError{cause: err}
		}
		if !chunk.Final {
			continue
		}
		batch := pending
		pending = nil
		if err := fn(batch); err != nil {
			if errors.Is(err, iterator.ErrStop) {
				return nil
			}
			return err
		}
	}
}

// ForAllPoints streams every point the server has with the given attributes.
// It is the remote counterpart of a query without a location predicate.
func (s *RemoteSource) ForAllPoints(ctx context.Context, attributes []string, fn func(*pc.Batch) error) error {
	return s.ForEachBatch(ctx, &query.PointQuery{Attributes: attributes}, fn)
}
