package spreadsheet

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
)

// checkEdgeMirror verifies that every readsFrom edge has its readBy twin and
// the other way around
func checkEdgeMirror(t *testing.T, g *grid) {
	t.Helper()
	for addr, cell := range g.cells {
		if cell.addr != addr {
			t.Fatalf("cell stored at %s reports address %s", addr, cell.addr)
		}
		for ref := range cell.readsFrom {
			target := g.lookup(ref)
			if target == nil {
				t.Fatalf("%s reads %s, which is not stored", addr, ref)
			}
			if _, ok := target.readBy[addr]; !ok {
				t.Fatalf("%s reads %s, but %s.readBy lacks %s", addr, ref, ref, addr)
			}
		}
		for reader := range cell.readBy {
			source := g.lookup(reader)
			if source == nil {
				t.Fatalf("%s is read by %s, which is not stored", addr, reader)
			}
			if _, ok := source.readsFrom[addr]; !ok {
				t.Fatalf("%s is read by %s, but %s.readsFrom lacks %s", addr, reader, reader, addr)
			}
		}
	}
}

func TestEdgeMirrorUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	sheet := NewSheet()
	cellName := func() string {
		return fmt.Sprintf("%s%d", columnToLetters(rng.IntN(4)), rng.IntN(4)+1)
	}

	for i := 0; i < 2000; i++ {
		target := cellName()
		var err error
		switch rng.IntN(5) {
		case 0:
			err = sheet.Clear(target)
		case 1:
			err = sheet.Set(target, fmt.Sprint(rng.IntN(10)))
		case 2:
			err = sheet.Set(target, "="+cellName()+"+"+cellName())
		case 3:
			err = sheet.Set(target, "=SUM("+cellName()+":"+cellName()+")")
		default:
			err = sheet.Set(target, "="+cellName()+"*2")
		}
		if err != nil && !errors.Is(err, ErrCircularDependency) {
			t.Fatalf("edit %d on %s: unexpected error %v", i, target, err)
		}
		checkEdgeMirror(t, sheet.grid)

		// reads must always terminate with a value
		if _, err := sheet.Get(cellName()); err != nil {
			t.Fatalf("edit %d: read failed: %v", i, err)
		}
	}
}

func TestCycleRejectionLeavesGraphUntouched(t *testing.T) {
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "=B1+C1")
	mustSet(t, sheet, "B1", "=C1")
	mustSet(t, sheet, "C1", "=D1")

	before := snapshotEdges(sheet.grid)
	if err := sheet.Set("D1", "=E1+A1"); !errors.Is(err, ErrCircularDependency) {
		t.Fatalf("Set(D1) = %v, want ErrCircularDependency", err)
	}
	after := snapshotEdges(sheet.grid)

	if !slices.Equal(before, after) {
		t.Errorf("graph changed on a rejected write:\nbefore %v\nafter  %v", before, after)
	}
	if cell, _ := sheet.GetCell(ParseAddress("E1")); cell != nil {
		t.Errorf("rejected write materialized E1")
	}
}

func snapshotEdges(g *grid) []string {
	var edges []string
	for addr, cell := range g.cells {
		for _, ref := range cell.ReferencedCells() {
			edges = append(edges, addr.String()+"->"+ref.String())
		}
	}
	slices.Sort(edges)
	return edges
}

func TestDiamondInvalidation(t *testing.T) {
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "1")
	mustSet(t, sheet, "B1", "=A1")
	mustSet(t, sheet, "C1", "=A1")
	mustSet(t, sheet, "D1", "=B1+C1")

	if value, _ := sheet.Get("D1"); value != 2.0 {
		t.Fatalf("D1 = %v, want 2", value)
	}

	a1, _ := sheet.GetCell(ParseAddress("A1"))
	if dropped := sheet.grid.invalidate(a1); dropped != 3 {
		t.Errorf("invalidate(A1) dropped %d caches, want 3", dropped)
	}
	// nothing is cached now, so a second pass stops at the first readers
	if dropped := sheet.grid.invalidate(a1); dropped != 0 {
		t.Errorf("second invalidate(A1) dropped %d caches, want 0", dropped)
	}

	mustSet(t, sheet, "A1", "2")
	if value, _ := sheet.Get("D1"); value != 4.0 {
		t.Errorf("D1 = %v, want 4", value)
	}
}

func TestInvalidationStopsAtUncachedReader(t *testing.T) {
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "1")
	mustSet(t, sheet, "A2", "=A1+1")
	mustSet(t, sheet, "A3", "=A2+1")

	// only A2 has been read; A3 never cached anything
	if value, _ := sheet.Get("A2"); value != 2.0 {
		t.Fatalf("A2 = %v, want 2", value)
	}
	a1, _ := sheet.GetCell(ParseAddress("A1"))
	if dropped := sheet.grid.invalidate(a1); dropped != 1 {
		t.Errorf("invalidate(A1) dropped %d caches, want 1", dropped)
	}
	if value, _ := sheet.Get("A3"); value != 3.0 {
		t.Errorf("A3 = %v, want 3", value)
	}
}

func TestLongChainIsIterative(t *testing.T) {
	const length = 5000
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "1")
	for row := 2; row <= length; row++ {
		mustSet(t, sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("=A%d+1", row-1))
	}

	// reading the tail directly would exceed the depth guard
	if _, err := sheet.Get(fmt.Sprintf("A%d", length)); !errors.Is(err, ErrEvalDepthExceeded) {
		t.Fatalf("deep read = %v, want ErrEvalDepthExceeded", err)
	}
	if err := sheet.Calculate(); err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if value, _ := sheet.Get(fmt.Sprintf("A%d", length)); value != float64(length) {
		t.Fatalf("tail = %v, want %d", value, length)
	}

	// a cycle check and an invalidation over the whole chain
	if err := sheet.Set("A1", fmt.Sprintf("=A%d", length)); !errors.Is(err, ErrCircularDependency) {
		t.Errorf("closing the chain = %v, want ErrCircularDependency", err)
	}
	mustSet(t, sheet, "A1", "2")
	if err := sheet.Calculate(); err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if value, _ := sheet.Get(fmt.Sprintf("A%d", length)); value != float64(length+1) {
		t.Errorf("tail = %v, want %d", value, length+1)
	}
}

func TestPrecedentsAndDependents(t *testing.T) {
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "1")
	mustSet(t, sheet, "B1", "=A1*2")
	mustSet(t, sheet, "C1", "=B1+A1")
	mustSet(t, sheet, "D1", "=SUM(B1:C1)")

	tests := []struct {
		cell       string
		precedents []string
		dependents []string
	}{
		{"A1", nil, []string{"B1", "C1", "D1"}},
		{"B1", []string{"A1"}, []string{"C1", "D1"}},
		{"D1", []string{"A1", "B1", "C1"}, nil},
		{"Z9", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			addr := ParseAddress(tt.cell)
			precedents, err := sheet.Precedents(addr)
			if err != nil {
				t.Fatalf("Precedents failed: %v", err)
			}
			dependents, err := sheet.Dependents(addr)
			if err != nil {
				t.Fatalf("Dependents failed: %v", err)
			}
			if got := addressNames(precedents); !slices.Equal(got, tt.precedents) {
				t.Errorf("Precedents(%s) = %v, want %v", tt.cell, got, tt.precedents)
			}
			if got := addressNames(dependents); !slices.Equal(got, tt.dependents) {
				t.Errorf("Dependents(%s) = %v, want %v", tt.cell, got, tt.dependents)
			}
		})
	}
}

func TestCalculationOrder(t *testing.T) {
	sheet := NewSheet()
	mustSet(t, sheet, "A1", "=B1+C1")
	mustSet(t, sheet, "B1", "=C1")
	mustSet(t, sheet, "C1", "=D1")
	mustSet(t, sheet, "E1", "text")

	var order []string
	for _, cell := range sheet.grid.GetCalculationOrder() {
		order = append(order, cell.Address().String())
	}
	if want := []string{"C1", "B1", "A1"}; !slices.Equal(order, want) {
		t.Errorf("GetCalculationOrder() = %v, want %v", order, want)
	}
}

func addressNames(addrs []Address) []string {
	var names []string
	for _, addr := range addrs {
		names = append(names, addr.String())
	}
	return names
}
