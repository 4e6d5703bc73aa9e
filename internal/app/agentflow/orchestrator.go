package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
)

var ErrNoAgents = errors.New("no agents configured in orchestrator")

// Orchestrator runs agents in sequence. Each agent's reply becomes the
// next agent's prompt.
type Orchestrator struct {
	agents []Agent
}

func NewOrchestrator(agents ...Agent) *Orchestrator {
	return &Orchestrator{agents: agents}
}

// NewDefaultOrchestrator builds the flow used by the server: a single coach.
func NewDefaultOrchestrator(llm domain.LLMClient) *Orchestrator {
	return NewOrchestrator(NewCoachAgent(llm))
}

// Run executes the chain and returns the last reply.
func (o *Orchestrator) Run(
	ctx context.Context,
	prompt string,
	coachCtx domain.CoachContext,
) (string, error) {
	if len(o.agents) == 0 {
		return "", ErrNoAgents
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", coachCtx.SessionID,
		"user_id", coachCtx.UserID,
	)
	log.Info("orchestrator started", "agents_count", len(o.agents))

	in := AgentInput{
		Prompt:   prompt,
		CoachCtx: coachCtx,
	}

	var (
		out AgentOutput
		err error
	)

	for _, ag := range o.agents {
		start := time.Now()
		log.Info("agent run start", "agent", ag.Name())

		out, err = ag.Run(ctx, in)
		if err != nil {
			log.Error("agent failed",
				"agent", ag.Name(),
				"error", err)
			return "", fmt.Errorf("agent %s failed: %w", ag.Name(), err)
		}

		log.Info("agent run end", "agent", ag.Name(), "elapsed_ms", time.Since(start).Milliseconds())

		in.Prompt = out.Reply
		in.CoachCtx = out.UpdatedContext
	}

	log.Info("orchestrator end")
	return out.Reply, nil
}
