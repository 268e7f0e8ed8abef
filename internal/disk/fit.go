package disk

import "sort"

// gap is a run of unallocated bytes between partitions.
type gap struct {
	start int32
	size  int32
}

// freeGaps returns the unallocated runs between the MBR and the end of the
// disk, in disk order.
func freeGaps(mbr MBR) []gap {
	used := make([]Partition, 0, MaxPartitions)
	for _, p := range mbr.Partitions {
		if p.Used() {
			used = append(used, p)
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Start < used[j].Start })

	var gaps []gap
	cursor := MBRSize
	for _, p := range used {
		if p.Start > cursor {
			gaps = append(gaps, gap{start: cursor, size: p.Start - cursor})
		}
		cursor = max(cursor, p.End())
	}
	if mbr.Size > cursor {
		gaps = append(gaps, gap{start: cursor, size: mbr.Size - cursor})
	}
	return gaps
}

// place picks the start offset for a partition of size bytes. First fit takes
// the earliest gap that is large enough, best fit the smallest and worst fit
// the largest. Ties go to the earlier gap.
func place(gaps []gap, size int32, fit Fit) (int32, bool) {
	chosen := -1
	for i, g := range gaps {
		if g.size < size {
			continue
		}
		if chosen < 0 {
			chosen = i
			if fit == FirstFit {
				break
			}
			continue
		}
		switch fit {
		case BestFit:
			if g.size < gaps[chosen].size {
				chosen = i
			}
		case WorstFit:
			if g.size > gaps[chosen].size {
				chosen = i
			}
		}
	}
	if chosen < 0 {
		return 0, false
	}
	return gaps[chosen].start, true
}
