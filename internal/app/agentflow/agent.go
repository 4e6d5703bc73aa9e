package agentflow

import (
	"context"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// Agent is one step of the coaching flow.
type Agent interface {
	Name() string
	Run(ctx context.Context, in AgentInput) (AgentOutput, error)
}

// AgentInput is what each agent receives. Prompt is the full text sent to
// the model; the first agent gets the stage prompt built by the session.
type AgentInput struct {
	Prompt   string
	CoachCtx domain.CoachContext
}

type AgentOutput struct {
	Reply          string
	UpdatedContext domain.CoachContext
}
