package unified

import (
	"sort"
)

// ---------------------------------------------------------------------------
// CategoryNode / CategoryForest
// ---------------------------------------------------------------------------

// CategoryNode is one node of the assembled category tree
type CategoryNode struct {
	Category Category        `json:"category"`
	Children []*CategoryNode `json:"children"`
	Parent   *CategoryNode   `json:"-"`
	// Orphaned is true when the node was promoted to a root because its
	// parent is missing from the scope or part of a cycle
	Orphaned bool `json:"orphaned,omitempty"`
}

// CategoryForest is the validated tree built from a flat category set of a
// single (platform, storeId) scope.
type CategoryForest struct {
	Roots []*CategoryNode
	// index maps external IDs to their nodes for path lookups
	index map[string]*CategoryNode
}

// ---------------------------------------------------------------------------
// HierarchyBuilder
// ---------------------------------------------------------------------------

// HierarchyBuilder assembles flat categories (each carrying an optional
// parent reference) into a validated forest, computing depth and breadcrumb
// paths. It tolerates missing parents and parent cycles: both degrade to
// flagged orphaned roots instead of errors or infinite loops.
type HierarchyBuilder struct{}

// NewHierarchyBuilder creates a new HierarchyBuilder
func NewHierarchyBuilder() *HierarchyBuilder {
	return &HierarchyBuilder{}
}

// BuildTree assembles the flat categories into a forest. Categories whose
// parent does not exist in the input are roots; categories on a parent cycle
// are broken out as flagged orphaned roots. Levels are recomputed from the
// resulting structure (root = 0).
func (b *HierarchyBuilder) BuildTree(categories []Category) *CategoryForest {
	forest := &CategoryForest{
		Roots: make([]*CategoryNode, 0),
		index: make(map[string]*CategoryNode, len(categories)),
	}

	for i := range categories {
		cat := categories[i]
		forest.index[cat.ExternalID] = &CategoryNode{
			Category: cat,
			Children: make([]*CategoryNode, 0),
		}
	}

	for _, node := range forest.index {
		if node.Category.IsRoot() {
			forest.Roots = append(forest.Roots, node)
			continue
		}
		parent, ok := forest.index[*node.Category.ParentID]
		if !ok || parent == node {
			// Missing parent inside the scope: orphaned root.
			node.Orphaned = true
			forest.Roots = append(forest.Roots, node)
			continue
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

	b.breakCycles(forest)
	b.computeLevels(forest)
	b.sortSiblings(forest)

	return forest
}

// breakCycles promotes every node on a parent cycle to a flagged orphaned
// root. Detection runs over the intact structure first so all members of a
// cycle are found before any edge is cut; nodes merely hanging off a cycle
// keep their parents.
func (b *HierarchyBuilder) breakCycles(forest *CategoryForest) {
	// Stable iteration so traversal is deterministic.
	ids := make([]string, 0, len(forest.index))
	for id := range forest.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cyclic := make([]*CategoryNode, 0)
	for _, id := range ids {
		node := forest.index[id]
		seen := make(map[*CategoryNode]bool)
		for cur := node.Parent; cur != nil; cur = cur.Parent {
			if cur == node {
				// The ancestor chain returned to the node itself: it is a
				// cycle member.
				cyclic = append(cyclic, node)
				break
			}
			if seen[cur] {
				// Repeat of some other ancestor: the cycle sits above this
				// node, and its members are flagged on their own walks.
				break
			}
			seen[cur] = true
		}
	}

	for _, node := range cyclic {
		b.detach(node)
		node.Orphaned = true
		forest.Roots = append(forest.Roots, node)
	}
}

// detach removes a node from its parent's children list
func (b *HierarchyBuilder) detach(node *CategoryNode) {
	parent := node.Parent
	if parent == nil {
		return
	}
	for i, child := range parent.Children {
		if child == node {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	node.Parent = nil
}

// computeLevels assigns 0 to roots and parent-level+1 downward
func (b *HierarchyBuilder) computeLevels(forest *CategoryForest) {
	var walk func(node *CategoryNode, level int)
	walk = func(node *CategoryNode, level int) {
		node.Category.Level = level
		for _, child := range node.Children {
			walk(child, level+1)
		}
	}
	for _, root := range forest.Roots {
		walk(root, 0)
	}
}

// sortSiblings orders children by menu order, then external ID for stability
func (b *HierarchyBuilder) sortSiblings(forest *CategoryForest) {
	var walk func(nodes []*CategoryNode)
	walk = func(nodes []*CategoryNode) {
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].Category.MenuOrder != nodes[j].Category.MenuOrder {
				return nodes[i].Category.MenuOrder < nodes[j].Category.MenuOrder
			}
			return nodes[i].Category.ExternalID < nodes[j].Category.ExternalID
		})
		for _, n := range nodes {
			walk(n.Children)
		}
	}
	walk(forest.Roots)
}

// ---------------------------------------------------------------------------
// Forest queries
// ---------------------------------------------------------------------------

// Node returns the node for an external ID, if present
func (f *CategoryForest) Node(externalID string) (*CategoryNode, bool) {
	node, ok := f.index[externalID]
	return node, ok
}

// ComputePath returns the ordered breadcrumb from the root to the category
// itself. It terminates on a missing parent; the cycle handling in BuildTree
// guarantees parent chains are acyclic by the time paths are computed, and a
// defensive visited check keeps this total even on a hand-built forest.
func (f *CategoryForest) ComputePath(externalID string) ([]Category, error) {
	node, ok := f.index[externalID]
	if !ok {
		return nil, ErrCategoryNotInScope
	}

	path := make([]Category, 0, 4)
	seen := make(map[*CategoryNode]bool)
	for cur := node; cur != nil; cur = cur.Parent {
		if seen[cur] {
			break
		}
		seen[cur] = true
		path = append(path, cur.Category)
	}

	// Walked upward; reverse into root-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Size returns the number of categories in the forest
func (f *CategoryForest) Size() int {
	return len(f.index)
}

// HierarchyStats summarizes the shape of one scope's category tree
type HierarchyStats struct {
	TotalCategories int `json:"total_categories"`
	RootCount       int `json:"root_count"`
	OrphanCount     int `json:"orphan_count"`
	MaxDepth        int `json:"max_depth"`
	TotalProducts   int `json:"total_products"`
}

// Stats computes summary statistics over the forest. MaxDepth is the deepest
// level present plus one (a lone root yields depth 1); an empty forest
// yields zero.
func (f *CategoryForest) Stats() HierarchyStats {
	stats := HierarchyStats{TotalCategories: len(f.index)}

	maxLevel := -1
	for _, node := range f.index {
		if node.Category.Level > maxLevel {
			maxLevel = node.Category.Level
		}
		stats.TotalProducts += node.Category.ProductCount
	}
	stats.MaxDepth = maxLevel + 1

	for _, root := range f.Roots {
		stats.RootCount++
		if root.Orphaned {
			stats.OrphanCount++
		}
	}
	return stats
}
