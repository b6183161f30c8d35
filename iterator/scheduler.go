// Package iterator contains the traversal scheduler and the parallel
// iterator, the bounded producer/consumer pipeline at the heart of the query
// engine.
package iterator

import (
	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/query"
	"github.com/lidarview/pointstream/spatialmath"
)

// FilterMode says whether a scheduled node's points must be tested
// individually against the query predicate.
type FilterMode uint8

const (
	// FilterNone accepts every point of the node; the node's volume is
	// fully contained in the query region.
	FilterNone = FilterMode(iota)
	// FilterPerPoint tests each point individually.
	FilterPerPoint
)

// workItem is one unit of worker work: load a node, maybe filter, re-chunk.
type workItem struct {
	index pc.SpatialIndex
	node  pc.NodeID
	mode  FilterMode
}

// scheduleIndex performs the pruning descent over one index and returns the
// ordered worklist. Disjoint nodes and their subtrees are skipped; Contains
// nodes schedule their whole subtree unfiltered, each descendant as its own
// item so the subtree is processed in parallel; Intersects nodes are
// scheduled with per-point filtering and descended into for further pruning.
func scheduleIndex(index pc.SpatialIndex, loc query.PointLocation) ([]workItem, error) {
	var items []workItem
	stack := reverse(index.RootIDs())
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		vol, err := index.BoundingVolume(id)
		if err != nil {
			return nil, err
		}
		switch loc.RelationToVolume(vol) {
		case spatialmath.Disjoint:
			continue
		case spatialmath.Contains:
			// containment is inherited; no child needs classification
			items, err = appendSubtree(index, id, items)
			if err != nil {
				return nil, err
			}
		case spatialmath.Intersects:
			items = append(items, workItem{index: index, node: id, mode: FilterPerPoint})
			children, err := index.Children(id)
			if err != nil {
				return nil, err
			}
			stack = append(stack, reverse(children)...)
		}
	}
	return items, nil
}

// appendSubtree schedules the node and all its descendants unfiltered.
func appendSubtree(index pc.SpatialIndex, id pc.NodeID, items []workItem) ([]workItem, error) {
	stack := []pc.NodeID{id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		items = append(items, workItem{index: index, node: id, mode: FilterNone})
		children, err := index.Children(id)
		if err != nil {
			return nil, err
		}
		stack = append(stack, reverse(children)...)
	}
	return items, nil
}

func reverse(ids []pc.NodeID) []pc.NodeID {
	out := make([]pc.NodeID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
