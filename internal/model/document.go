package model

// DocumentNode is a node of the output tree: a copy of an outline node that
// additionally owns the requirements placed under it
type DocumentNode struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	OutlineNumber string          `json:"outlineNumber,omitempty"`
	Workitems     []Requirement   `json:"workitems"`
	Children      []*DocumentNode `json:"children,omitempty"`
}

// OutputTree is the populated document
type OutputTree struct {
	Document DocumentInfo    `json:"document"`
	Roots    []*DocumentNode `json:"roots"`
}

// Walk visits every node depth-first in document order. Returning false stops the walk.
func (t *OutputTree) Walk(fn func(node *DocumentNode, depth int) bool) {
	var walk func(nodes []*DocumentNode, depth int) bool
	walk = func(nodes []*DocumentNode, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !walk(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	walk(t.Roots, 0)
}

// Find returns the node with the given id, or nil
func (t *OutputTree) Find(id string) *DocumentNode {
	var found *DocumentNode
	t.Walk(func(n *DocumentNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// WorkitemCount returns the number of requirements placed in the tree
func (t *OutputTree) WorkitemCount() int {
	count := 0
	t.Walk(func(n *DocumentNode, _ int) bool {
		count += len(n.Workitems)
		return true
	})
	return count
}
