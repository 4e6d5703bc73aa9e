package spark

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

func userInput(t domain.InputType, v any) domain.UserInput {
	return domain.UserInput{Type: t, Value: v}
}

func enteredSession(stage domain.Stage) (*domain.Session, Handler) {
	s := &domain.Session{ID: "s-1", CurrentStage: stage}
	h := newHandler(stage, s)
	h.Enter(s)
	return s, h
}

func TestNewHandler_CompletedHasNone(t *testing.T) {
	require.Nil(t, newHandler(domain.StageCompleted, &domain.Session{}))
	require.Nil(t, newHandler("NOPE", &domain.Session{}))

	for _, tr := range Transitions {
		h := newHandler(tr.From, &domain.Session{})
		require.NotNil(t, h)
		require.Equal(t, tr.From, h.Stage())
		require.Equal(t, tr.To, h.NextStage())
	}
}

func TestEnter_IsIdempotent(t *testing.T) {
	for _, tr := range Transitions {
		s := &domain.Session{CurrentStage: tr.From}
		h := newHandler(tr.From, s)
		first := h.Enter(s)
		snapshot := s.Clone()
		second := h.Enter(s)
		require.Equal(t, first, second, tr.From)
		require.Equal(t, snapshot.Data, s.Data, tr.From)
	}
}

func TestSituation_DescriptionThenThoughts(t *testing.T) {
	s, h := enteredSession(domain.StageSituation)

	h.ProcessInput(s, userInput(domain.InputOptionSelect, "ignored"))
	require.Empty(t, s.Data.Situation.Description)

	h.ProcessInput(s, userInput(domain.InputText, "   "))
	require.Empty(t, s.Data.Situation.Description, "blank text does not fill the slot")

	h.ProcessInput(s, userInput(domain.InputText, "Inbox at 400"))
	require.Equal(t, "Inbox at 400", s.Data.Situation.Description)
	require.False(t, h.CanTransition(s))

	msgs := h.Enter(s)
	require.Equal(t, "What thoughts are running through your mind?", msgs[1].Content)

	h.ProcessInput(s, userInput(domain.InputText, "Everyone is waiting on me"))
	require.Equal(t, "Inbox at 400", s.Data.Situation.Description)
	require.Equal(t, "Everyone is waiting on me", s.Data.Situation.Thoughts)
	require.True(t, h.CanTransition(s))
}

func TestPerception_RejectsUnknownReframe(t *testing.T) {
	s, h := enteredSession(domain.StagePerception)

	h.ProcessInput(s, userInput(domain.InputOptionSelect, "Is the moon made of cheese?"))
	require.Empty(t, s.Data.Perception.SelectedReframe)

	h.ProcessInput(s, userInput(domain.InputEmotionSelect, "sad"))
	require.Empty(t, s.Data.Perception.UserReflection)
}

func TestAffect_InputShapes(t *testing.T) {
	s, h := enteredSession(domain.StageAffect)

	h.ProcessInput(s, userInput(domain.InputEmotionSelect, "bored"))
	require.Empty(t, s.Data.Affect.Emotion, "unknown emotion ignored")

	h.ProcessInput(s, userInput(domain.InputIntensity, 4.5))
	require.Zero(t, s.Data.Affect.Intensity, "fractional intensity ignored")

	h.ProcessInput(s, userInput(domain.InputIntensity, "7"))
	require.Equal(t, 7, s.Data.Affect.Intensity)

	h.ProcessInput(s, userInput(domain.InputEmotionSelect, "Frustrated"))
	require.Equal(t, domain.EmotionFrustrated, s.Data.Affect.Emotion)
	require.True(t, h.CanTransition(s))
}

func TestResponse_RequiresCompletion(t *testing.T) {
	s, h := enteredSession(domain.StageResponse)

	h.ProcessInput(s, userInput(domain.InputOptionSelect, "Do jumping jacks for 30 seconds"))
	require.Equal(t, domain.ActionJumpingJacks, s.Data.Response.SelectedAction)
	require.False(t, h.CanTransition(s))

	h.ProcessInput(s, userInput(domain.InputActionComplete, false))
	require.False(t, h.CanTransition(s))

	h.ProcessInput(s, userInput(domain.InputActionComplete, true))
	require.True(t, h.CanTransition(s))
}

// stageFields lists, per order-free stage, one valid input per required field.
var stageFields = map[domain.Stage][]domain.UserInput{
	domain.StagePerception: {
		userInput(domain.InputOptionSelect, domain.ReframeQuestions[2]),
		userInput(domain.InputText, "I can only reply to one email"),
	},
	domain.StageAffect: {
		userInput(domain.InputEmotionSelect, "overwhelmed"),
		userInput(domain.InputIntensity, 6),
	},
	domain.StageKeyResult: {
		userInput(domain.InputOptionSelect, "Made significant progress"),
		userInput(domain.InputText, "Timers help"),
	},
}

func TestCanTransition_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		stage := rapid.SampledFrom([]domain.Stage{
			domain.StagePerception,
			domain.StageAffect,
			domain.StageKeyResult,
		}).Draw(r, "stage")
		inputs := rapid.Permutation(stageFields[stage]).Draw(r, "inputs")

		s, h := enteredSession(stage)
		for i, input := range inputs {
			require.False(r, h.CanTransition(s), "transition before field %d", i)
			h.ProcessInput(s, input)
		}
		require.True(r, h.CanTransition(s))

		// resubmitting valid input keeps the stage satisfied
		h.ProcessInput(s, inputs[0])
		require.True(r, h.CanTransition(s))
	})
}

func TestCanTransition_AgreesWithTable(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		stage := rapid.SampledFrom([]domain.Stage{
			domain.StagePerception,
			domain.StageAffect,
			domain.StageResponse,
			domain.StageKeyResult,
		}).Draw(r, "stage")

		s, h := enteredSession(stage)
		tr, ok := TransitionFrom(stage)
		require.True(r, ok)

		n := rapid.IntRange(0, 6).Draw(r, "n")
		for i := 0; i < n; i++ {
			input := domain.UserInput{
				Type: rapid.SampledFrom([]domain.InputType{
					domain.InputText,
					domain.InputOptionSelect,
					domain.InputEmotionSelect,
					domain.InputIntensity,
					domain.InputActionComplete,
				}).Draw(r, "type"),
				Value: rapid.OneOf(
					rapid.Just[any]("anxious"),
					rapid.Just[any](domain.ReframeQuestions[0]),
					rapid.Just[any]("Ask someone for help"),
					rapid.Just[any]("completed_all"),
					rapid.Just[any]("free text"),
					rapid.Just[any](true),
					rapid.Just[any](float64(rapid.IntRange(-2, 12).Draw(r, "num"))),
				).Draw(r, "value"),
			}
			h.ProcessInput(s, input)
			require.Equal(r, tr.Predicate(s.Data), h.CanTransition(s))
		}
	})
}
