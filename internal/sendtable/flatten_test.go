package sendtable

import "testing"

func desc(name string, priority int32, flags Flags) *Descriptor {
	return &Descriptor{VarName: name, Type: Int, Priority: priority, Flags: flags}
}

func TestFlattenClassOrdersByPriority(t *testing.T) {
	low := desc("m_lowPriority", 10, 0)
	high := desc("m_highPriority", 20, 0)
	// Nominal priority 100 (above the ChangesOftenPriority sentinel of 64)
	// but CHANGES_OFTEN-flagged: the sentinel pass at p=64 pulls it forward
	// ahead of where its own priority would otherwise place it.
	changesOften := desc("m_changesOften", 100, FlagChangesOften)

	table := &Table{Name: "DT_Test", Props: []*Descriptor{low, high, changesOften}}
	s := NewStore()
	sc := &ServerClass{ClassID: 0, Name: "CTest", Table: table}
	s.ClassesByID[0] = sc

	flat, err := s.flattenClass(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flat) != 3 {
		t.Fatalf("got %d props, want 3", len(flat))
	}
	order := []string{flat[0].VarName, flat[1].VarName, flat[2].VarName}
	want := []string{"m_lowPriority", "m_highPriority", "m_changesOften"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

// TestPrioritySortInterleavedPrioritiesPermuteLaterBucket reproduces the
// reference implementation's swap-based selection sort: within the
// priority-3 pass, b and d are swapped down in turn, which displaces c
// and a (both priority 5) relative to each other by the time the
// priority-5 pass runs. A stable partition would instead preserve their
// original relative order and yield [b,d,a,c].
func TestPrioritySortInterleavedPrioritiesPermuteLaterBucket(t *testing.T) {
	a := desc("a", 5, 0)
	b := desc("b", 3, 0)
	c := desc("c", 5, 0)
	d := desc("d", 3, 0)

	out := prioritySort([]*Descriptor{a, b, c, d})

	var order []string
	for _, d := range out {
		order = append(order, d.VarName)
	}
	want := []string{"b", "d", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestGatherPropsSkipsExcludedAndInlinesCollapsible(t *testing.T) {
	excluded := desc("m_excludedProp", 0, FlagExclude)
	kept := desc("m_keptProp", 0, 0)

	nested := &Table{Name: "DT_Nested", Props: []*Descriptor{kept}}
	root := &Table{
		Name: "DT_Root",
		Props: []*Descriptor{
			excluded,
			{VarName: "nested", Type: DataTable, DTTable: nested, Flags: FlagCollapsible},
		},
	}

	excludes := map[excludeKey]bool{}
	gatherExcludes(root, excludes)

	var out []*Descriptor
	gatherProps(root, excludes, &out)

	if len(out) != 1 || out[0].VarName != "m_keptProp" {
		t.Fatalf("got %+v, want only the nested table's one leaf", out)
	}
}

func TestGatherExcludesAppliesAcrossTables(t *testing.T) {
	excluder := desc("m_baseclass", 0, 0)
	excluder.DTName = "DT_Base"
	excluder.VarName = "m_excludeMe"
	excluder.Flags = FlagExclude

	target := desc("m_excludeMe", 0, 0)
	target.DTName = "DT_Base"

	baseTable := &Table{Name: "DT_Base", Props: []*Descriptor{target}}
	root := &Table{
		Name: "DT_Root",
		Props: []*Descriptor{
			excluder,
			{VarName: "baseclass", Type: DataTable, DTTable: baseTable, Flags: FlagCollapsible},
		},
	}

	excludes := map[excludeKey]bool{}
	gatherExcludes(root, excludes)

	var out []*Descriptor
	gatherProps(root, excludes, &out)

	if len(out) != 0 {
		t.Fatalf("expected the excluded property to be dropped, got %+v", out)
	}
}

func TestServerClassBits(t *testing.T) {
	cases := []struct {
		n    int
		want uint
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 3}, {4, 3}, {256, 9}, {257, 10},
	}
	for _, c := range cases {
		if got := serverClassBits(c.n); got != c.want {
			t.Fatalf("serverClassBits(%d): got %d, want %d", c.n, got, c.want)
		}
	}
}
