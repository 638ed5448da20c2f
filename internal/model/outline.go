package model

// OutlineNode is one chapter or subchapter heading of the target document
type OutlineNode struct {
	ID            string         `json:"id" yaml:"id"`
	Title         string         `json:"title" yaml:"title"`
	OutlineNumber string         `json:"outlineNumber,omitempty" yaml:"outline_number,omitempty"` // Display/ordering only, never matched on
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Children      []*OutlineNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether the node has no subchapters
func (n *OutlineNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// FlatHeading is a heading listed without nesting, as exported by document
// discovery tools. ParentID may be empty, in which case the parent is
// inferred from the outline number.
type FlatHeading struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	OutlineNumber string `json:"outlineNumber" yaml:"outline_number"`
	ParentID      string `json:"parentId,omitempty" yaml:"parent_id,omitempty"`
}

// DocumentInfo carries the identity of the document the outline belongs to
type DocumentInfo struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	Space   string `json:"space,omitempty" yaml:"space,omitempty"`
}
