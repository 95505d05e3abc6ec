package objaddr

import "testing"

func TestAddress_Contains(t *testing.T) {
	whole := Address{ClassID: 1, ObjectID: 100}
	col := Address{ClassID: 1, ObjectID: 100, SubID: 5}
	other := Address{ClassID: 1, ObjectID: 200}

	if !whole.Contains(col) {
		t.Error("whole-object address should contain its own column sub-object")
	}
	if !whole.Contains(whole) {
		t.Error("an address should contain itself")
	}
	if col.Contains(whole) {
		t.Error("a column address should not contain the whole-object address")
	}
	if whole.Contains(other) {
		t.Error("unrelated objects should not contain each other")
	}
}

func TestAddress_SameObjectAndWhole(t *testing.T) {
	col := Address{ClassID: 1, ObjectID: 100, SubID: 5}
	whole := col.Whole()
	if whole.SubID != 0 {
		t.Errorf("Whole() should zero SubID, got %d", whole.SubID)
	}
	if !whole.SameObject(col) {
		t.Error("Whole() result should report SameObject as the original")
	}
}

func TestSet_ContainsOrParent(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 1, ObjectID: 100})

	if !s.ContainsOrParent(Address{ClassID: 1, ObjectID: 100, SubID: 3}) {
		t.Error("a stored whole-object address should cover a column sub-address")
	}
	if s.ContainsOrParent(Address{ClassID: 1, ObjectID: 200}) {
		t.Error("unrelated object should not be reported as contained")
	}
}

func TestSet_Dedupe_CollapsesExactDuplicates(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 1})
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 1})
	s.Dedupe()

	if got := s.Len(); got != 1 {
		t.Fatalf("Dedupe() left %d items, want 1", got)
	}
}

func TestSet_Dedupe_ColumnSubsumesWholeObject(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 1, ObjectID: 100}) // whole-object, added first
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 2})
	s.Dedupe()

	items := s.Iterate()
	if len(items) != 1 {
		t.Fatalf("Dedupe() left %d items, want 1", len(items))
	}
	if items[0].SubID != 2 {
		t.Errorf("Dedupe() kept SubID %d, want the more specific column reference (2)", items[0].SubID)
	}
}

func TestSet_Dedupe_WholeObjectSubsumedByPriorColumn(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 2}) // column added first
	s.Add(Address{ClassID: 1, ObjectID: 100})            // whole-object added second
	s.Dedupe()

	items := s.Iterate()
	if len(items) != 1 {
		t.Fatalf("Dedupe() left %d items, want 1", len(items))
	}
	if items[0].SubID != 2 {
		t.Errorf("Dedupe() kept SubID %d, want the column reference to survive (2)", items[0].SubID)
	}
}

func TestSet_Dedupe_DistinctColumnsBothSurvive(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 1})
	s.Add(Address{ClassID: 1, ObjectID: 100, SubID: 2})
	s.Dedupe()

	if got := s.Len(); got != 2 {
		t.Fatalf("Dedupe() left %d items, want 2 distinct column references", got)
	}
}

func TestSet_Dedupe_SortsByClassThenObjectThenSub(t *testing.T) {
	s := NewSet(4)
	s.Add(Address{ClassID: 2, ObjectID: 1})
	s.Add(Address{ClassID: 1, ObjectID: 200})
	s.Add(Address{ClassID: 1, ObjectID: 100})
	s.Dedupe()

	items := s.Iterate()
	want := []Address{
		{ClassID: 1, ObjectID: 100},
		{ClassID: 1, ObjectID: 200},
		{ClassID: 2, ObjectID: 1},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestSet_AddByClassTag(t *testing.T) {
	s := NewSet(1)
	s.AddByClassTag(func() int64 { return 42 }, 7, 3)

	items := s.Iterate()
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	want := Address{ClassID: 42, ObjectID: 7, SubID: 3}
	if items[0] != want {
		t.Errorf("got %+v, want %+v", items[0], want)
	}
}
