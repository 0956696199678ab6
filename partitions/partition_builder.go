package partitions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// PartitionBuilder groups work items into partitions
type PartitionBuilder struct {
	NumItems int

	// Item positions, used by SpaceFillingCurve
	Positions []r3.Vec

	// Partitioning parameters
	TargetPartitionSize int // Desired items per partition, ignored when NumPartitions > 0
	NumPartitions       int
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how items are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive items
	RoundRobin                              // Distribute cyclically

	// Graph-based strategies
	GraphPartition    // Use METIS or similar
	SpaceFillingCurve // Morton curve ordering of item positions
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case GraphPartition:
		return "graph"
	case SpaceFillingCurve:
		return "morton"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy converts a strategy name to a PartitionStrategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(name) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	case "graph", "metis":
		return GraphPartition, nil
	case "morton", "sfc":
		return SpaceFillingCurve, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumItems <= 0 {
		return nil, fmt.Errorf("invalid number of items: %d", pb.NumItems)
	}
	if pb.Strategy == SpaceFillingCurve && len(pb.Positions) != pb.NumItems {
		return nil, fmt.Errorf("space filling curve needs %d positions, got %d", pb.NumItems, len(pb.Positions))
	}

	// Determine number of partitions needed
	numPartitions := pb.calculateNumPartitions()

	// Partition the items
	iToP := pb.partitionItems(numPartitions)

	// Create partition structures
	partitions := pb.createPartitions(iToP, numPartitions)

	// Create the layout
	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxItems:      calculateMaxItems(partitions),
		TotalItems:    pb.NumItems,
		NumPartitions: numPartitions,
		IToP:          iToP,
	}

	// Validate the layout
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := pb.NumPartitions
	if numPartitions <= 0 {
		target := pb.TargetPartitionSize
		if target <= 0 {
			target = pb.NumItems
		}
		numPartitions = int(math.Ceil(float64(pb.NumItems) / float64(target)))
	}

	// At least one partition, no empty ones
	if numPartitions < 1 {
		numPartitions = 1
	}
	if numPartitions > pb.NumItems {
		numPartitions = pb.NumItems
	}
	return numPartitions
}

// partitionItems assigns items to partitions
func (pb *PartitionBuilder) partitionItems(numPartitions int) []int {
	switch pb.Strategy {
	case RoundRobin:
		// Distribute items cyclically
		iToP := make([]int, pb.NumItems)
		for i := range iToP {
			iToP[i] = i % numPartitions
		}
		return iToP

	case SpaceFillingCurve:
		order := mortonOrder(pb.Positions)
		blocks := blockAssignment(pb.NumItems, numPartitions)
		iToP := make([]int, pb.NumItems)
		for rank, item := range order {
			iToP[item] = blocks[rank]
		}
		return iToP

	case GraphPartition:
		// Would use METIS or similar graph partitioner
		// For now, fall back to block partitioning
		return blockAssignment(pb.NumItems, numPartitions)

	default:
		return blockAssignment(pb.NumItems, numPartitions)
	}
}

// blockAssignment splits n consecutive items into p blocks whose sizes differ
// by at most one
func blockAssignment(n, p int) []int {
	iToP := make([]int, n)
	base, extra := n/p, n%p
	i := 0
	for part := 0; part < p; part++ {
		size := base
		if part < extra {
			size++
		}
		for k := 0; k < size; k++ {
			iToP[i] = part
			i++
		}
	}
	return iToP
}

// mortonOrder sorts items along a Z-order curve through their bounding box
func mortonOrder(pos []r3.Vec) []int {
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range pos {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	const levels = 1 << 21
	quantize := func(v, lo, hi float64) uint64 {
		if hi <= lo {
			return 0
		}
		q := uint64((v - lo) / (hi - lo) * (levels - 1))
		if q >= levels {
			q = levels - 1
		}
		return q
	}

	codes := make([]uint64, len(pos))
	for i, p := range pos {
		codes[i] = interleave3(quantize(p.X, lo.X, hi.X)) |
			interleave3(quantize(p.Y, lo.Y, hi.Y))<<1 |
			interleave3(quantize(p.Z, lo.Z, hi.Z))<<2
	}
	order := make([]int, len(pos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return codes[order[a]] < codes[order[b]] })
	return order
}

// interleave3 spreads the low 21 bits of v two zero bits apart
func interleave3(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

// createPartitions builds partition structures from item assignments
func (pb *PartitionBuilder) createPartitions(iToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:    i,
			Items: make([]int, 0),
		}
	}

	// Items are visited in ascending order, so each list stays sorted
	for item, part := range iToP {
		partitions[part].Items = append(partitions[part].Items, item)
		partitions[part].NumItems++
	}
	return partitions
}

// calculateMaxItems finds maximum items across all partitions
func calculateMaxItems(partitions []Partition) int {
	maxItems := 0
	for _, p := range partitions {
		if p.NumItems > maxItems {
			maxItems = p.NumItems
		}
	}
	return maxItems
}

// PartitionStatistics computes load balance metrics
func (layout *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: layout.NumPartitions,
		MinItems:      math.MaxInt32,
		MaxItems:      0,
		AvgItems:      float64(layout.TotalItems) / float64(layout.NumPartitions),
	}

	for _, p := range layout.Partitions {
		if p.NumItems < stats.MinItems {
			stats.MinItems = p.NumItems
		}
		if p.NumItems > stats.MaxItems {
			stats.MaxItems = p.NumItems
		}
	}

	stats.Imbalance = float64(stats.MaxItems) / stats.AvgItems

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinItems      int
	MaxItems      int
	AvgItems      float64
	Imbalance     float64 // MaxItems / AvgItems
}
