package sendtable

import (
	"math/bits"
	"sort"
)

type excludeKey struct {
	dtName  string
	varName string
}

// FlattenAll computes the flattened property vector for every bound
// server class and caches the well-known per-class indices (m_vecOrigin,
// m_vecOrigin[2]) and the server-class bit width.
func (s *Store) FlattenAll() error {
	s.ServerClassBits = serverClassBits(len(s.ClassesByID))

	for classID, sc := range s.ClassesByID {
		flat, err := s.flattenClass(sc)
		if err != nil {
			return err
		}
		s.Flat[classID] = flat
	}

	if s.PlayerClassID >= 0 {
		for i, fp := range s.Flat[s.PlayerClassID] {
			if fp.VarName == "m_vecOrigin" && fp.Type != Array {
				s.OriginPropIdx = int32(i)
			}
			if fp.VarName == "m_vecOrigin[2]" {
				s.OriginZPropIdx = int32(i)
			}
		}
	}
	return nil
}

func serverClassBits(n int) uint {
	if n <= 1 {
		return 1
	}
	return uint(bits.Len(uint(n-1))) + 1
}

// flattenClass runs the three-stage algorithm against one server class's
// root table: gather excludes, gather the leaf properties honoring
// exclude/collapse rules, then sort the result by priority.
func (s *Store) flattenClass(sc *ServerClass) ([]FlatProp, error) {
	excludes := map[excludeKey]bool{}
	gatherExcludes(sc.Table, excludes)

	var leaves []*Descriptor
	gatherProps(sc.Table, excludes, &leaves)

	ordered := prioritySort(leaves)

	posOf := make(map[*Descriptor]int, len(ordered))
	for i, d := range ordered {
		posOf[d] = i
	}

	flat := make([]FlatProp, len(ordered))
	for i, d := range ordered {
		d.ElemIdx = -1
		fp := FlatProp{Descriptor: d}
		if d.Type == Array && d.elemPtr != nil {
			if idx, ok := posOf[d.elemPtr]; ok {
				d.ElemIdx = int32(idx)
				fp.ArrayElemProp = d.elemPtr
			}
		}
		flat[i] = fp
	}
	return flat, nil
}

// gatherExcludes walks t and every DataTable it reaches, recording every
// (containing-table-name, var-name) pair that carries the EXCLUDE flag —
// the pair names the EXCLUDED property in the table it would otherwise
// live in, not the table holding the exclude declaration.
func gatherExcludes(t *Table, excludes map[excludeKey]bool) {
	for _, p := range t.Props {
		if p.Type == DataTable {
			if p.DTTable != nil {
				gatherExcludes(p.DTTable, excludes)
			}
			continue
		}
		if p.Flags.Has(FlagExclude) {
			excludes[excludeKey{dtName: p.DTName, varName: p.VarName}] = true
		}
	}
}

// gatherProps depth-first walks t, appending leaves to out in the same
// order the original engine's recursive GatherProps_IterateProps does:
// COLLAPSIBLE sub-tables are inlined into the same flat list; other
// DataTable properties recurse into their own continuation of that list
// (there is no separate per-table list — everything lands in out).
func gatherProps(t *Table, excludes map[excludeKey]bool, out *[]*Descriptor) {
	for _, p := range t.Props {
		if p.Flags.Has(FlagInsideArray) {
			continue
		}
		if p.Type == DataTable {
			if p.DTTable == nil {
				continue
			}
			// Both the COLLAPSIBLE and non-collapsible cases recurse into
			// the same flat output list: there is no separate per-table
			// list in this model, only a continuation of the class's one
			// flattened vector.
			gatherProps(p.DTTable, excludes, out)
			continue
		}
		if p.Flags.Has(FlagExclude) {
			continue
		}
		if excludes[excludeKey{dtName: p.DTName, varName: p.VarName}] {
			continue
		}

		if p.Type == Array && len(*out) > 0 {
			p.elemPtr = (*out)[len(*out)-1]
		}
		*out = append(*out, p)
	}
}

// prioritySort applies the swap-based selection pass described in §4.3:
// the distinct priorities observed (plus the ChangesOftenPriority
// sentinel) are visited ascending, and for each one the slice is swept
// from the current start pointer, swapping each match for that priority
// (or, at the sentinel, CHANGES_OFTEN regardless of nominal priority)
// down into the next unplaced slot. Because this mutates the slice
// in place as it goes, a later pass's sweep sees the permutation left by
// every earlier pass — unlike a stable partition, a priority bucket can
// come out in other than original relative order when an earlier pass's
// swaps disturbed it.
func prioritySort(leaves []*Descriptor) []*Descriptor {
	prioritySet := map[int32]bool{ChangesOftenPriority: true}
	for _, d := range leaves {
		prioritySet[d.Priority] = true
	}
	priorities := make([]int32, 0, len(prioritySet))
	for p := range prioritySet {
		priorities = append(priorities, p)
	}
	sort.Slice(priorities, func(i, j int) bool { return priorities[i] < priorities[j] })

	out := make([]*Descriptor, len(leaves))
	copy(out, leaves)

	start := 0
	for _, p := range priorities {
		for {
			current := start
			for current < len(out) {
				d := out[current]
				matches := d.Priority == p
				if p == ChangesOftenPriority && d.Flags.Has(FlagChangesOften) {
					matches = true
				}
				if matches {
					if start != current {
						out[start], out[current] = out[current], out[start]
					}
					start++
					break
				}
				current++
			}
			if current == len(out) {
				break
			}
		}
	}
	return out
}
