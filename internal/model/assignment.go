package model

// AssignmentStatus is the terminal state of a requirement after a run
type AssignmentStatus string

const (
	StatusAssigned     AssignmentStatus = "assigned"
	StatusUnassignable AssignmentStatus = "unassignable"
)

// Assignment records the decision for one requirement. It is created once
// per requirement and never modified afterwards.
type Assignment struct {
	RequirementID string           `json:"requirement_id"`
	Status        AssignmentStatus `json:"status"`
	TargetNodeID  string           `json:"target_node_id,omitempty"` // Empty when unassignable
	BestNodeID    string           `json:"best_node_id,omitempty"`   // Highest scoring node, even when below threshold
	Score         float64          `json:"score"`
	Confidence    float64          `json:"confidence"` // Score normalized to [0,1]
	Rationale     []Signal         `json:"rationale"`  // Non-zero signals of the winning node
	TieBreak      TieBreakRule     `json:"tie_break,omitempty"`
	Candidates    int              `json:"candidates"` // Nodes sharing the maximum score before tie-break
	Degraded      bool             `json:"degraded,omitempty"`
}

// Unassignable is a requirement whose best score stayed below the threshold
type Unassignable struct {
	Requirement Requirement `json:"requirement"`
	BestNodeID  string      `json:"best_node_id,omitempty"`
	BestScore   float64     `json:"best_score"`
	Threshold   float64     `json:"threshold"`
}

// TieBreakRule names the rule that settled a tie between equally scored nodes
type TieBreakRule string

const (
	TieBreakNone          TieBreakRule = ""
	TieBreakCategory      TieBreakRule = "category_match"
	TieBreakSafety        TieBreakRule = "safety_rule"
	TieBreakDepth         TieBreakRule = "deeper_node"
	TieBreakOutlineNumber TieBreakRule = "lowest_outline_number"
)

// Signal is one contribution to a node's score, with its inputs kept for audit
type Signal struct {
	Type         SignalType             `json:"type"`
	Value        float64                `json:"value"`        // Raw signal in [0,1]
	Weight       float64                `json:"weight"`       // Configured weight
	Contribution float64                `json:"contribution"` // value * weight
	Description  string                 `json:"description"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalSemantic SignalType = "semantic"
	SignalCategory SignalType = "category"
	SignalKeyword  SignalType = "keyword"
)

// Stats summarizes a run
type Stats struct {
	Requirements       int     `json:"requirements"`
	Assigned           int     `json:"assigned"`
	Unassignable       int     `json:"unassignable"`
	Nodes              int     `json:"nodes"`
	SimilarityCalls    int64   `json:"similarity_calls"`
	SimilarityFailures int64   `json:"similarity_failures"`
	DegradedRatio      float64 `json:"degraded_ratio"`
	Strategy           string  `json:"strategy"`
}
