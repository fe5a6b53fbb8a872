package internal

import (
	"math"
	"sort"
)

// Edge is one undirected association; every edge appears in the adjacency
// rows of both endpoints with the same weight.
type Edge struct {
	To     string  `json:"to"`
	Weight float32 `json:"weight"`
}

// Association is a discovery result: a memory reached over the graph, the
// bottleneck weight of the strongest path and the number of hops taken.
type Association struct {
	ID     string  `json:"id"`
	Weight float32 `json:"weight"`
	Hops   int     `json:"hops"`
}

// AssociationGraph keeps similarity edges between memories. Edges are created
// at link time from index neighbors whose score clears the threshold; each
// node's row is ordered strongest first and capped, with the weakest edge
// giving way when a stronger one arrives.
type AssociationGraph struct {
	threshold float32
	maxEdges  int
	adj       map[string][]Edge
}

func NewAssociationGraph(threshold float32, maxEdges int) *AssociationGraph {
	if maxEdges < 1 {
		maxEdges = 64
	}
	return &AssociationGraph{
		threshold: threshold,
		maxEdges:  maxEdges,
		adj:       make(map[string][]Edge),
	}
}

func (g *AssociationGraph) Threshold() float32 { return g.threshold }

// Link registers id and connects it to every neighbor at or above the
// threshold. Neighbor hits referring to id itself are ignored.
func (g *AssociationGraph) Link(id string, neighbors []Hit) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
	for _, n := range neighbors {
		if n.ID == id || n.Score < g.threshold {
			continue
		}
		if _, ok := g.adj[n.ID]; !ok {
			continue
		}
		g.addEdge(id, n.ID, n.Score)
	}
}

// Unlink drops every incident edge but keeps the node.
func (g *AssociationGraph) Unlink(id string) {
	for _, e := range g.adj[id] {
		g.dropHalf(e.To, id)
	}
	g.adj[id] = nil
}

// Remove deletes the node and all incident edges.
func (g *AssociationGraph) Remove(id string) {
	for _, e := range g.adj[id] {
		g.dropHalf(e.To, id)
	}
	delete(g.adj, id)
}

func (g *AssociationGraph) Contains(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns a copy of id's adjacency row, strongest first.
func (g *AssociationGraph) Neighbors(id string) []Edge {
	return append([]Edge(nil), g.adj[id]...)
}

// Size reports node and edge counts (each edge counted once).
func (g *AssociationGraph) Size() (nodes, edges int) {
	nodes = len(g.adj)
	for _, row := range g.adj {
		edges += len(row)
	}
	return nodes, edges / 2
}

// Discover walks breadth-first from origin up to depth hops and returns at
// most limit associations, strongest first, ids ascending on equal weight.
// The origin itself is never part of the result. A node reachable several
// ways keeps its smallest hop count; among equal-hop paths the one with the
// highest bottleneck weight wins, and that bottleneck is the reported weight.
func (g *AssociationGraph) Discover(origin string, depth, limit int) []Association {
	const inf = float32(math.MaxFloat32)

	hops := map[string]int{origin: 0}
	best := map[string]float32{origin: inf}
	frontier := []string{origin}

	var results []Association
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		level := make(map[string]float32)
		for _, u := range frontier {
			uw := best[u]
			for _, e := range g.adj[u] {
				if h, seen := hops[e.To]; seen && h < hop {
					continue
				}
				pw := min(uw, e.Weight)
				if cur, ok := level[e.To]; !ok || pw > cur {
					level[e.To] = pw
				}
			}
		}
		frontier = frontier[:0]
		for id, w := range level {
			hops[id] = hop
			best[id] = w
			frontier = append(frontier, id)
			results = append(results, Association{ID: id, Weight: w, Hops: hop})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Weight != results[j].Weight {
			return results[i].Weight > results[j].Weight
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// addEdge inserts the undirected edge only when both rows accept it, so the
// two halves never fall out of step.
func (g *AssociationGraph) addEdge(a, b string, w float32) {
	if !g.accepts(a, b, w) || !g.accepts(b, a, w) {
		return
	}
	if evicted := g.insertHalf(a, b, w); evicted != "" {
		g.dropHalf(evicted, a)
	}
	if evicted := g.insertHalf(b, a, w); evicted != "" {
		g.dropHalf(evicted, b)
	}
}

func (g *AssociationGraph) accepts(node, to string, w float32) bool {
	row := g.adj[node]
	for _, e := range row {
		if e.To == to {
			return true
		}
	}
	if len(row) < g.maxEdges {
		return true
	}
	return w > row[len(row)-1].Weight
}

// insertHalf upserts the edge into node's row and returns the neighbor id of
// the edge evicted to make room, if any.
func (g *AssociationGraph) insertHalf(node, to string, w float32) (evicted string) {
	row := g.adj[node]
	for i, e := range row {
		if e.To == to {
			row[i].Weight = w
			g.adj[node] = sortRow(row)
			return ""
		}
	}
	row = append(row, Edge{To: to, Weight: w})
	row = sortRow(row)
	if len(row) > g.maxEdges {
		evicted = row[len(row)-1].To
		row = row[:len(row)-1]
	}
	g.adj[node] = row
	return evicted
}

func (g *AssociationGraph) dropHalf(node, to string) {
	row := g.adj[node]
	for i, e := range row {
		if e.To == to {
			g.adj[node] = append(row[:i], row[i+1:]...)
			return
		}
	}
}

func sortRow(row []Edge) []Edge {
	sort.Slice(row, func(i, j int) bool {
		if row[i].Weight != row[j].Weight {
			return row[i].Weight > row[j].Weight
		}
		return row[i].To < row[j].To
	})
	return row
}
