package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// MockLLM answers without any network call. Used in local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) GenerateReply(_ context.Context, _ string, coachCtx domain.CoachContext) (string, error) {
	return fmt.Sprintf("I'm here with you. We're working on %s together; take the next small step when you're ready.",
		stageLabel(coachCtx.Stage)), nil
}

func stageLabel(stage domain.Stage) string {
	switch stage {
	case domain.StageSituation:
		return "your situation"
	case domain.StagePerception:
		return "a new perspective"
	case domain.StageAffect:
		return "how you feel"
	case domain.StageResponse:
		return "your next action"
	case domain.StageKeyResult:
		return "what you learned"
	}
	return "this"
}
