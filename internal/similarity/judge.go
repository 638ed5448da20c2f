package similarity

import (
	"context"

	"github.com/ppiankov/reqmap/internal/llm"
)

// Judge delegates the rating to a language model
type Judge struct {
	judge llm.Judge
}

// NewJudge wraps an LLM judge as a strategy
func NewJudge(j llm.Judge) *Judge {
	return &Judge{judge: j}
}

func (j *Judge) Name() string { return "judge/" + j.judge.Name() }

func (j *Judge) Similarity(ctx context.Context, requirement, heading string) (float64, error) {
	v, err := j.judge.Relatedness(ctx, requirement, heading)
	if err != nil {
		return 0, err
	}
	return clamp(v), nil
}
