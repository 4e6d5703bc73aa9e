package agentflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
)

// CoachAgent asks the model for a short reply in the voice of the session coach.
type CoachAgent struct {
	llm domain.LLMClient
}

func NewCoachAgent(llm domain.LLMClient) *CoachAgent {
	return &CoachAgent{llm: llm}
}

func (a *CoachAgent) Name() string {
	return "coach"
}

func (a *CoachAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	log := observability.LoggerFromContext(ctx).With("agent", a.Name(), "stage", in.CoachCtx.Stage)
	log.Info("coach agent running")

	reply, err := a.llm.GenerateReply(ctx, in.Prompt, in.CoachCtx)
	if err != nil {
		log.Error("coach agent error", "error", err)
		return AgentOutput{}, err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return AgentOutput{}, fmt.Errorf("coach agent: empty reply")
	}

	updated := in.CoachCtx
	updated.History = append(append([]string(nil), in.CoachCtx.History...), reply)

	log.Info("coach agent success", "reply_len", len(reply))
	return AgentOutput{
		Reply:          reply,
		UpdatedContext: updated,
	}, nil
}
