package dataprovider

import pc "github.com/lidarview/pointstream/pointcloud"

// NodeWriter is the write-side surface of a backing store, used by index
// construction tooling and test fixtures. The query engine itself never
// writes.
type NodeWriter interface {
	StoreNode(id pc.NodeID, batch *pc.Batch) error
}
