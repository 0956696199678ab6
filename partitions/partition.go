package partitions

import (
	"fmt"
)

// Partition is a set of work items (interaction volumes) processed together
// by one worker
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Item membership
	Items    []int // Global item indices in this partition, ascending
	NumItems int
}

// PartitionLayout manages the complete decomposition of the items
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	MaxItems      int // max(NumItems) across all partitions
	TotalItems    int // Sum of all items across partitions
	NumPartitions int

	// Item to partition mapping
	IToP []int // Length TotalItems: item i belongs to partition IToP[i]
}

// GetPartition returns the partition containing item i
func (pl *PartitionLayout) GetPartition(item int) int {
	if item < 0 || item >= len(pl.IToP) {
		return -1
	}
	return pl.IToP[item]
}

// ValidateLayout checks that every item belongs to exactly one partition
func (pl *PartitionLayout) ValidateLayout() error {
	if pl.NumPartitions != len(pl.Partitions) {
		return fmt.Errorf("layout has %d partitions, NumPartitions=%d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.IToP) != pl.TotalItems {
		return fmt.Errorf("item map covers %d items, TotalItems=%d", len(pl.IToP), pl.TotalItems)
	}

	seen := make([]bool, pl.TotalItems)
	actualMax, total := 0, 0
	for p, part := range pl.Partitions {
		if part.ID != p {
			return fmt.Errorf("partition %d has ID %d", p, part.ID)
		}
		if part.NumItems != len(part.Items) {
			return fmt.Errorf("partition %d: NumItems %d != %d items", p, part.NumItems, len(part.Items))
		}
		for _, item := range part.Items {
			if item < 0 || item >= pl.TotalItems {
				return fmt.Errorf("partition %d: item %d out of range", p, item)
			}
			if seen[item] {
				return fmt.Errorf("item %d assigned twice", item)
			}
			if pl.IToP[item] != p {
				return fmt.Errorf("item %d in partition %d, map says %d", item, p, pl.IToP[item])
			}
			seen[item] = true
		}
		if part.NumItems > actualMax {
			actualMax = part.NumItems
		}
		total += part.NumItems
	}
	if total != pl.TotalItems {
		return fmt.Errorf("partitions hold %d items, TotalItems=%d", total, pl.TotalItems)
	}
	if actualMax != pl.MaxItems {
		return fmt.Errorf("computed MaxItems %d != stored MaxItems %d", actualMax, pl.MaxItems)
	}
	return nil
}
