package outline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/reqmap/internal/model"
)

// PathSeparator joins ancestor titles in context text
const PathSeparator = " > "

// Entry is a flattened outline node together with its position in the tree
type Entry struct {
	Node     *model.OutlineNode
	ParentID string   // Empty for top-level chapters
	Path     []string // Ancestor titles, outermost first
	Depth    int      // 0 for top-level chapters
	Index    int      // Position in document order
}

// ContextText returns the ancestor titles and the node title joined, so that
// e.g. "Intended Use" is matched together with "Summary of the Function"
func (e Entry) ContextText() string {
	if len(e.Path) == 0 {
		return e.Node.Title
	}
	return strings.Join(e.Path, PathSeparator) + PathSeparator + e.Node.Title
}

// Outline is an immutable, indexed view of the target document structure.
// It is safe for concurrent readers.
type Outline struct {
	document model.DocumentInfo
	roots    []*model.OutlineNode
	entries  []Entry
	byID     map[string]int
	children map[string][]*model.OutlineNode
}

// New indexes a nested outline. The nodes are copied; later changes to the
// input do not affect the outline. Missing outline numbers are derived from
// document position.
func New(doc model.DocumentInfo, roots []*model.OutlineNode) (*Outline, error) {
	o := &Outline{
		document: doc,
		byID:     make(map[string]int),
		children: make(map[string][]*model.OutlineNode),
	}

	seen := make(map[*model.OutlineNode]bool)
	var copyNodes func(nodes []*model.OutlineNode, parent *model.OutlineNode, path []string, depth int) ([]*model.OutlineNode, error)
	copyNodes = func(nodes []*model.OutlineNode, parent *model.OutlineNode, path []string, depth int) ([]*model.OutlineNode, error) {
		out := make([]*model.OutlineNode, 0, len(nodes))
		for pos, n := range nodes {
			if n == nil {
				return nil, &model.OutlineError{Reason: "nil node"}
			}
			if seen[n] {
				return nil, &model.OutlineError{NodeID: n.ID, Reason: "node appears more than once in the tree"}
			}
			seen[n] = true

			id := strings.TrimSpace(n.ID)
			if id == "" {
				return nil, &model.OutlineError{Reason: fmt.Sprintf("node %q has an empty id", n.Title)}
			}
			if _, dup := o.byID[id]; dup {
				return nil, &model.OutlineError{NodeID: id, Reason: "duplicate node id"}
			}

			number := strings.TrimSpace(n.OutlineNumber)
			if number == "" {
				number = strconv.Itoa(pos + 1)
				if parent != nil {
					number = parent.OutlineNumber + "." + number
				}
			}

			c := &model.OutlineNode{
				ID:            id,
				Title:         strings.TrimSpace(n.Title),
				OutlineNumber: number,
				Description:   n.Description,
			}
			parentID := ""
			if parent != nil {
				parentID = parent.ID
			}

			o.byID[id] = len(o.entries)
			o.entries = append(o.entries, Entry{
				Node:     c,
				ParentID: parentID,
				Path:     append([]string(nil), path...),
				Depth:    depth,
				Index:    len(o.entries),
			})

			kids, err := copyNodes(n.Children, c, append(path, c.Title), depth+1)
			if err != nil {
				return nil, err
			}
			c.Children = kids
			o.children[id] = kids
			out = append(out, c)
		}
		return out, nil
	}

	copied, err := copyNodes(roots, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if len(copied) == 0 {
		return nil, &model.OutlineError{Reason: "outline has no nodes"}
	}
	o.roots = copied
	return o, nil
}

// FromFlat builds an outline from a flat heading list. A heading's parent is
// its ParentID when set, otherwise the heading whose outline number is the
// dotted prefix of its own ("1.4" for "1.4.1"). Input order is document order.
func FromFlat(doc model.DocumentInfo, headings []model.FlatHeading) (*Outline, error) {
	nodes := make(map[string]*model.OutlineNode, len(headings))
	byNumber := make(map[string]string, len(headings))

	for _, h := range headings {
		id := strings.TrimSpace(h.ID)
		if id == "" {
			return nil, &model.OutlineError{Reason: fmt.Sprintf("heading %q has an empty id", h.Title)}
		}
		if _, dup := nodes[id]; dup {
			return nil, &model.OutlineError{NodeID: id, Reason: "duplicate node id"}
		}
		number := strings.TrimSpace(h.OutlineNumber)
		nodes[id] = &model.OutlineNode{ID: id, Title: h.Title, OutlineNumber: number}
		if number != "" {
			if other, dup := byNumber[number]; dup {
				return nil, &model.OutlineError{NodeID: id, Reason: fmt.Sprintf("outline number %q already used by %q", number, other)}
			}
			byNumber[number] = id
		}
	}

	var roots []*model.OutlineNode
	for _, h := range headings {
		id := strings.TrimSpace(h.ID)
		node := nodes[id]

		parentID := strings.TrimSpace(h.ParentID)
		if parentID == "" {
			if prefix := parentNumber(node.OutlineNumber); prefix != "" {
				pid, ok := byNumber[prefix]
				if !ok {
					return nil, &model.OutlineError{NodeID: id, Reason: fmt.Sprintf("no heading with parent outline number %q", prefix)}
				}
				parentID = pid
			}
		}

		if parentID == "" {
			roots = append(roots, node)
			continue
		}
		if parentID == id {
			return nil, &model.OutlineError{NodeID: id, Reason: "node is its own parent"}
		}
		parent, ok := nodes[parentID]
		if !ok {
			return nil, &model.OutlineError{NodeID: id, Reason: fmt.Sprintf("parent %q does not exist", parentID)}
		}
		parent.Children = append(parent.Children, node)
	}

	o, err := New(doc, roots)
	if err != nil {
		return nil, err
	}
	// Headings on a parent cycle are never reachable from a root
	if o.Len() != len(headings) {
		for _, h := range headings {
			if _, ok := o.byID[strings.TrimSpace(h.ID)]; !ok {
				return nil, &model.OutlineError{NodeID: h.ID, Reason: "parent chain forms a cycle"}
			}
		}
	}
	return o, nil
}

// parentNumber returns "1.4" for "1.4.1" and "" for top-level numbers
func parentNumber(number string) string {
	idx := strings.LastIndex(number, ".")
	if idx <= 0 {
		return ""
	}
	return number[:idx]
}

// Document returns the document identity
func (o *Outline) Document() model.DocumentInfo {
	return o.document
}

// Roots returns the top-level chapters in document order
func (o *Outline) Roots() []*model.OutlineNode {
	return o.roots
}

// Entries returns every node, depth-first in document order
func (o *Outline) Entries() []Entry {
	return o.entries
}

// Len returns the number of nodes
func (o *Outline) Len() int {
	return len(o.entries)
}

// Lookup finds a node by id
func (o *Outline) Lookup(id string) (Entry, bool) {
	idx, ok := o.byID[id]
	if !ok {
		return Entry{}, false
	}
	return o.entries[idx], true
}

// Contains reports whether a node with this id exists
func (o *Outline) Contains(id string) bool {
	_, ok := o.byID[id]
	return ok
}

// Parent returns the parent node, or false for top-level chapters and unknown ids
func (o *Outline) Parent(id string) (*model.OutlineNode, bool) {
	e, ok := o.Lookup(id)
	if !ok || e.ParentID == "" {
		return nil, false
	}
	p, _ := o.Lookup(e.ParentID)
	return p.Node, true
}

// Children returns the direct subchapters of a node
func (o *Outline) Children(id string) []*model.OutlineNode {
	return o.children[id]
}

// IDs returns all node ids in document order
func (o *Outline) IDs() []string {
	ids := make([]string, len(o.entries))
	for i, e := range o.entries {
		ids[i] = e.Node.ID
	}
	return ids
}

// CompareOutlineNumbers orders dotted outline numbers segment by segment,
// numerically where both segments are numbers. Empty numbers sort last.
func CompareOutlineNumbers(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func compareSegment(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
