package agentflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

type recordingLLM struct {
	prompts []string
	reply   string
	err     error
}

func (r *recordingLLM) GenerateReply(_ context.Context, prompt string, _ domain.CoachContext) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.reply, r.err
}

type upperAgent struct{}

func (upperAgent) Name() string { return "upper" }

func (upperAgent) Run(_ context.Context, in AgentInput) (AgentOutput, error) {
	return AgentOutput{Reply: "[" + in.Prompt + "]", UpdatedContext: in.CoachCtx}, nil
}

func TestOrchestrator_NoAgents(t *testing.T) {
	_, err := NewOrchestrator().Run(context.Background(), "hi", domain.CoachContext{})
	require.ErrorIs(t, err, ErrNoAgents)
}

func TestOrchestrator_DefaultFlowSendsPrompt(t *testing.T) {
	llm := &recordingLLM{reply: "  Take a slow breath.  "}
	o := NewDefaultOrchestrator(llm)

	reply, err := o.Run(context.Background(), "stage prompt", domain.CoachContext{
		SessionID: "s1",
		Stage:     domain.StageAffect,
	})
	require.NoError(t, err)
	assert.Equal(t, "Take a slow breath.", reply)
	assert.Equal(t, []string{"stage prompt"}, llm.prompts)
}

func TestOrchestrator_ChainsReplies(t *testing.T) {
	llm := &recordingLLM{reply: "coach says hi"}
	o := NewOrchestrator(NewCoachAgent(llm), upperAgent{})

	reply, err := o.Run(context.Background(), "p", domain.CoachContext{})
	require.NoError(t, err)
	assert.Equal(t, "[coach says hi]", reply)
}

func TestOrchestrator_PropagatesErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	o := NewDefaultOrchestrator(&recordingLLM{err: boom})

	_, err := o.Run(context.Background(), "p", domain.CoachContext{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "agent coach failed")
}

func TestCoachAgent_RejectsEmptyReply(t *testing.T) {
	_, err := NewCoachAgent(&recordingLLM{reply: "   "}).Run(context.Background(), AgentInput{Prompt: "p"})
	require.Error(t, err)
}

func TestCoachAgent_AppendsReplyToHistory(t *testing.T) {
	history := []string{"earlier"}
	out, err := NewCoachAgent(&recordingLLM{reply: "now"}).Run(context.Background(), AgentInput{
		Prompt:   "p",
		CoachCtx: domain.CoachContext{History: history},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"earlier", "now"}, out.UpdatedContext.History)
	assert.Equal(t, []string{"earlier"}, history)
}
