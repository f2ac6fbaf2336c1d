package costing

import (
	"container/heap"
	"fmt"

	"github.com/shopspring/decimal"
)

// outputSumTolerance is how far a step's output yields may drift from 100%.
var outputSumTolerance = MustParseDecimal("0.001")

// routeGraph is a validated arena of route steps. Nodes are addressed by index;
// products connect a producing step to the one step that consumes it.
type routeGraph struct {
	routeID  string
	steps    []RouteStep // normalized, arena order
	index    map[string]int
	sources  map[string]bool
	producer map[string]int
	consumer map[string]int
	outgoing [][]int
	indeg    []int
}

// buildRouteGraph normalizes implicit inputs/outputs and validates the graph:
// unique step ids, outputs summing to 100%, single producer and single consumer
// per product, no unknown inputs, and no cycles.
func buildRouteGraph(r ProcessingRoute) (*routeGraph, error) {
	g := &routeGraph{
		routeID:  r.RouteID,
		index:    make(map[string]int, len(r.Steps)),
		sources:  make(map[string]bool, len(r.Sources)),
		producer: make(map[string]int),
		consumer: make(map[string]int),
	}
	for _, s := range r.Sources {
		g.sources[s.PartCode] = true
	}

	g.steps = make([]RouteStep, len(r.Steps))
	for i, s := range r.Steps {
		if s.ID == "" {
			s.ID = fmt.Sprintf("step-%d", i+1)
		}
		if _, dup := g.index[s.ID]; dup {
			return nil, routeInvalidf(r.RouteID, "duplicate step id %q", s.ID)
		}
		if s.CostPerKg.IsNegative() {
			return nil, routeInvalidf(r.RouteID, "step %q: cost_per_kg must be >= 0", s.ID)
		}
		g.index[s.ID] = i

		if len(s.Inputs) == 0 {
			if i == 0 {
				for _, src := range r.Sources {
					s.Inputs = append(s.Inputs, src.PartCode)
				}
			} else {
				s.Inputs = mainOutputs(g.steps[i-1])
			}
		}
		if len(s.Outputs) == 0 {
			product := s.ID + ".out"
			if i == len(r.Steps)-1 {
				product = r.EndProduct
			}
			s.Outputs = []StepOutput{{Product: product, YieldPct: hundred}}
		}
		// own copies; normalization must not leak into the caller's route
		s.Inputs = append([]string(nil), s.Inputs...)
		s.Outputs = append([]StepOutput(nil), s.Outputs...)
		g.steps[i] = s
	}

	for i, s := range g.steps {
		total := decimal.Zero
		for _, o := range s.Outputs {
			if o.Product == "" {
				return nil, routeInvalidf(r.RouteID, "step %q: output without product", s.ID)
			}
			if o.YieldPct.IsNegative() {
				return nil, routeInvalidf(r.RouteID, "step %q: output %q yield must be >= 0", s.ID, o.Product)
			}
			if g.sources[o.Product] {
				return nil, routeInvalidf(r.RouteID, "step %q: output %q shadows a source part", s.ID, o.Product)
			}
			if prev, dup := g.producer[o.Product]; dup {
				return nil, routeInvalidf(r.RouteID, "product %q produced by both %q and %q", o.Product, g.steps[prev].ID, s.ID)
			}
			g.producer[o.Product] = i
			total = total.Add(o.YieldPct)
		}
		if total.Sub(hundred).Abs().GreaterThan(outputSumTolerance) {
			return nil, routeInvalidf(r.RouteID, "step %q: outputs sum to %s%%, want 100%%", s.ID, total)
		}
	}

	g.outgoing = make([][]int, len(g.steps))
	g.indeg = make([]int, len(g.steps))
	for i, s := range g.steps {
		for _, in := range s.Inputs {
			if prev, dup := g.consumer[in]; dup {
				return nil, routeInvalidf(r.RouteID, "product %q consumed by both %q and %q", in, g.steps[prev].ID, s.ID)
			}
			g.consumer[in] = i
			if g.sources[in] {
				continue
			}
			from, ok := g.producer[in]
			if !ok {
				return nil, routeInvalidf(r.RouteID, "step %q: unknown input %q", s.ID, in)
			}
			if from == i {
				return nil, routeCycle(r.RouteID, []string{s.ID, s.ID})
			}
			g.outgoing[from] = append(g.outgoing[from], i)
			g.indeg[i]++
		}
	}

	if order := g.topoOrder(); len(order) != len(g.steps) {
		return nil, routeCycle(r.RouteID, g.findCycle())
	}

	if len(g.steps) > 0 {
		for _, src := range r.Sources {
			if _, ok := g.consumer[src.PartCode]; !ok {
				return nil, routeInvalidf(r.RouteID, "source part %q is not consumed by any step", src.PartCode)
			}
		}
		end, ok := g.producer[r.EndProduct]
		if !ok {
			return nil, routeInvalidf(r.RouteID, "no step produces end product %q", r.EndProduct)
		}
		if _, consumed := g.consumer[r.EndProduct]; consumed {
			return nil, routeInvalidf(r.RouteID, "end product %q is consumed inside the route", r.EndProduct)
		}
		for _, s := range g.steps {
			for _, o := range s.Outputs {
				if o.Product == r.EndProduct || o.IsByProduct {
					continue
				}
				if _, consumed := g.consumer[o.Product]; !consumed {
					return nil, routeInvalidf(r.RouteID, "step %q: output %q goes nowhere", s.ID, o.Product)
				}
			}
		}
		if g.isByProduct(end, r.EndProduct) {
			return nil, routeInvalidf(r.RouteID, "end product %q is flagged as a by-product", r.EndProduct)
		}
	}
	return g, nil
}

func mainOutputs(s RouteStep) []string {
	var out []string
	for _, o := range s.Outputs {
		if !o.IsByProduct {
			out = append(out, o.Product)
		}
	}
	return out
}

func (g *routeGraph) isByProduct(step int, product string) bool {
	for _, o := range g.steps[step].Outputs {
		if o.Product == product {
			return o.IsByProduct
		}
	}
	return false
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder is Kahn's algorithm with a min-heap ready queue, so ties resolve
// by declaration order.
func (g *routeGraph) topoOrder() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one stable cycle witness as step ids.
func (g *routeGraph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.steps))
	parent := make([]int, len(g.steps))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.steps {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.steps[cycle[i]].ID)
	}
	return out
}
