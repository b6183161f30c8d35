package spatialmath

// Relation is the three-way verdict of classifying a volume against a query
// region. It decides whether a spatial index node is skipped entirely,
// visited with per-point filtering, or accepted wholesale.
type Relation uint8

const (
	// Disjoint means the volumes share nothing; the node and its subtree
	// are skipped.
	Disjoint = Relation(iota)
	// Intersects means the volumes overlap partially; points must be
	// tested individually.
	Intersects
	// Contains means the query region fully contains the volume; every
	// point is accepted without testing.
	Contains
)

func (r Relation) String() string {
	switch r {
	case Disjoint:
		return "Disjoint"
	case Intersects:
		return "Intersects"
	case Contains:
		return "Contains"
	default:
		return "Unknown"
	}
}
