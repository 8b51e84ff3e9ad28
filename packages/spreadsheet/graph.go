package spreadsheet

// the dependency graph lives in the cells themselves: readsFrom holds a
// formula's precedents and readBy its dependents. the functions here walk
// those edges. every walk is iterative so chain length is bounded by memory,
// not by the goroutine stack

// reaches reports whether target can be reached from any of the seeds by
// following readsFrom edges. a seed equal to target counts as reached. the
// existing graph is assumed to be acyclic
func (g *grid) reaches(seeds []Address, target Address) bool {
	visited := make(map[Address]struct{}, len(seeds))
	queue := make([]Address, 0, len(seeds))
	for _, addr := range seeds {
		if _, seen := visited[addr]; !seen {
			visited[addr] = struct{}{}
			queue = append(queue, addr)
		}
	}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		if addr == target {
			return true
		}

		cell := g.lookup(addr)
		if cell == nil {
			continue
		}
		for next := range cell.readsFrom {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return false
}

// invalidate drops the cached result of start and of every cell that reads
// it, directly or transitively. each cell is visited at most once. a reader
// without a cached result is not expanded, since nothing downstream of it
// can hold a cached result either. returns the number of caches dropped
func (g *grid) invalidate(start *Cell) int {
	dropped := 0
	if start.hasCache() {
		start.content.cache = nil
		dropped++
	}

	visited := map[Address]struct{}{start.addr: {}}
	stack := []*Cell{start}
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for addr := range cell.readBy {
			if _, seen := visited[addr]; seen {
				continue
			}
			visited[addr] = struct{}{}

			reader := g.lookup(addr)
			if reader == nil || !reader.hasCache() {
				continue
			}
			reader.content.cache = nil
			dropped++
			stack = append(stack, reader)
		}
	}

	if dropped > 0 {
		g.logger.Debug("invalidated cached results", "cell", start.addr.String(), "count", dropped)
	}
	return dropped
}

// GetAllDependents returns every cell affected by addr (transitive closure
// over readBy), sorted row-major. addr itself is not included
func (g *grid) GetAllDependents(addr Address) []Address {
	return g.closure(addr, func(c *Cell) map[Address]struct{} { return c.readBy })
}

// GetAllPrecedents returns every cell addr reads from (transitive closure
// over readsFrom), sorted row-major. addr itself is not included
func (g *grid) GetAllPrecedents(addr Address) []Address {
	return g.closure(addr, func(c *Cell) map[Address]struct{} { return c.readsFrom })
}

func (g *grid) closure(start Address, edges func(*Cell) map[Address]struct{}) []Address {
	visited := map[Address]struct{}{start: {}}
	var result []Address

	stack := []Address{start}
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cell := g.lookup(addr)
		if cell == nil {
			continue
		}
		for next := range edges(cell) {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			result = append(result, next)
			stack = append(stack, next)
		}
	}

	sortAddresses(result)
	return result
}

// GetCalculationOrder returns every formula cell ordered so each comes after
// all the formula cells it reads. evaluating in this order never recurses
// more than one level through the resolver
func (g *grid) GetCalculationOrder() []*Cell {
	// three states: unvisited (not in map), visiting (false), done (true)
	state := make(map[Address]bool)
	var order []*Cell

	type frame struct {
		cell *Cell
		next []Address
	}

	roots := make([]Address, 0, len(g.cells))
	for addr, cell := range g.cells {
		if cell.IsFormula() {
			roots = append(roots, addr)
		}
	}
	sortAddresses(roots)

	for _, root := range roots {
		if _, seen := state[root]; seen {
			continue
		}
		state[root] = false
		stack := []frame{{cell: g.cells[root], next: g.cells[root].ReferencedCells()}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				state[top.cell.addr] = true
				order = append(order, top.cell)
				stack = stack[:len(stack)-1]
				continue
			}

			addr := top.next[0]
			top.next = top.next[1:]
			if _, seen := state[addr]; seen {
				continue
			}
			cell := g.lookup(addr)
			if cell == nil || !cell.IsFormula() {
				continue
			}
			state[addr] = false
			stack = append(stack, frame{cell: cell, next: cell.ReferencedCells()})
		}
	}

	return order
}
