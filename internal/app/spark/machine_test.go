package spark_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

func TestMachine_Start(t *testing.T) {
	m := newMachine()
	res := m.Start()

	require.False(t, res.Transitioned)
	require.False(t, res.Completed)
	require.Equal(t, domain.SessionID("session-1"), res.Session.ID)
	require.Equal(t, domain.UserID("user-1"), res.Session.OwnerID)
	require.Equal(t, domain.StageSituation, res.Session.CurrentStage)
	require.NotNil(t, res.Session.Data.Situation, "situation slot is created on entry")
	require.Nil(t, res.Session.Data.Perception)
	require.Nil(t, res.Session.CompletedAt)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, domain.MessageSpeech, res.Messages[0].Type)
	assert.Equal(t, "Describe the situation:", res.Messages[1].Content)
	assert.Equal(t, domain.InputKindTextarea, res.Messages[2].InputType)

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStateChange, events[0].Type)
}

func TestMachine_SituationToPerception(t *testing.T) {
	m := newMachine()
	m.Start()

	res, err := m.ProcessInput(text("Can't start my report"))
	require.NoError(t, err)
	require.False(t, res.Transitioned)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, spark.PartialInputReplies, res.Messages[0].Content)
	assert.Equal(t, 1, m.Progress().StepIndex)

	res, err = m.ProcessInput(text("I'll never finish"))
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	require.False(t, res.Completed)
	require.Equal(t, domain.StagePerception, res.Session.CurrentStage)
	require.Equal(t, "Can't start my report", res.Session.Data.Situation.Description)
	require.Equal(t, "I'll never finish", res.Session.Data.Situation.Thoughts)

	progress := m.Progress()
	assert.Equal(t, 2, progress.StepIndex)
	assert.Equal(t, 20, progress.Percentage)
	assert.Equal(t, "Perception", progress.StageName)

	// acknowledgment first, then the perception prompts
	assert.Equal(t,
		`Thank you for sharing that. Dealing with "Can't start my report" while your mind is racing with thoughts like "I'll never finish" sounds really challenging.`,
		res.Messages[0].Content)
	assert.Equal(t, domain.MessageOptions, res.Messages[len(res.Messages)-1].Type)
	assert.Equal(t, domain.ReframeQuestions, res.Messages[len(res.Messages)-1].Options)
}

func TestMachine_AffectHighIntensity(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StageAffect)

	res, err := m.ProcessInput(emotion("anxious"))
	require.NoError(t, err)
	require.False(t, res.Transitioned)

	res, err = m.ProcessInput(intensity(9))
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	require.Equal(t, domain.StageResponse, res.Session.CurrentStage)

	ack := res.Messages[0].Content
	assert.Contains(t, ack, "alarm system")
	assert.Contains(t, ack, "With that level of intensity, taking action to regulate is really important right now.")
}

func TestMachine_AffectOutOfRangeStays(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StageAffect)

	_, err := m.ProcessInput(emotion("sad"))
	require.NoError(t, err)
	res, err := m.ProcessInput(intensity(11))
	require.NoError(t, err)
	require.False(t, res.Transitioned)
	require.Equal(t, 11, res.Session.Data.Affect.Intensity)

	res, err = m.ProcessInput(intensity(float64(3)))
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	assert.Contains(t, res.Messages[0].Content, "Even at this level")
}

func TestMachine_CompletesAndRejectsFurtherInput(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StageKeyResult)

	res, err := m.ProcessInput(option("completed_all"))
	require.NoError(t, err)
	require.False(t, res.Completed)

	res, err = m.ProcessInput(text("Small steps work for me."))
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	require.True(t, res.Completed)
	require.Equal(t, domain.StageCompleted, res.Session.CurrentStage)
	require.NotNil(t, res.Session.CompletedAt)
	completedAt := *res.Session.CompletedAt

	require.Len(t, res.Messages, 2)
	assert.Equal(t,
		`You completed everything! That's incredible. Your insight shows real self-awareness. Your insight, "Small steps work for me", is something to carry forward.`,
		res.Messages[0].Content)
	assert.Equal(t, spark.ClosingLine, res.Messages[1].Content)
	assert.Equal(t, 100, m.Progress().Percentage)
	assert.False(t, m.Active())

	_, err = m.ProcessInput(text("hello?"))
	require.ErrorIs(t, err, spark.ErrNoActiveHandler)
	require.Equal(t, completedAt, *m.Session().CompletedAt, "completedAt is set once")
}

func TestMachine_FiveTransitionsToComplete(t *testing.T) {
	m := newMachine()
	m.Start()

	transitions := 0
	last := 0
	for m.Active() {
		for _, in := range validInputs[m.Stage()] {
			res, err := m.ProcessInput(in)
			require.NoError(t, err)
			if res.Transitioned {
				transitions++
			}
			pct := m.Progress().Percentage
			require.GreaterOrEqual(t, pct, last)
			last = pct
		}
	}
	require.Equal(t, 5, transitions)
	require.Equal(t, 100, last)
	require.True(t, m.Validate().Valid)
}

func TestMachine_ResponseEncouragementUsesLabel(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StageResponse)

	_, err := m.ProcessInput(option("five_min_walk"))
	require.NoError(t, err)
	res, err := m.ProcessInput(actionComplete(true))
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	assert.True(t, strings.HasPrefix(res.Messages[0].Content, "Movement is medicine"))

	var types []domain.EventType
	for _, e := range m.Events() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, domain.EventActionStart)
	assert.Contains(t, types, domain.EventActionComplete)
}

func TestMachine_RestoreMatchesLiveMachine(t *testing.T) {
	for _, stage := range []domain.Stage{
		domain.StageSituation,
		domain.StagePerception,
		domain.StageAffect,
		domain.StageResponse,
		domain.StageKeyResult,
	} {
		t.Run(string(stage), func(t *testing.T) {
			live := newMachine()
			live.Start()
			advanceTo(t, live, stage)
			// first half of the stage's input so restore has partial data to carry
			_, err := live.ProcessInput(validInputs[stage][0])
			require.NoError(t, err)

			rec, err := live.Session().ToRecord()
			require.NoError(t, err)
			raw, err := json.Marshal(rec)
			require.NoError(t, err)
			var decoded domain.SessionRecord
			require.NoError(t, json.Unmarshal(raw, &decoded))
			snapshot, err := domain.SessionFromRecord(&decoded)
			require.NoError(t, err)

			restored, err := spark.Restore(snapshot, spark.WithPicker(fixedPicker(0)), spark.WithClock(stepClock()))
			require.NoError(t, err)
			require.Equal(t, live.Session().Data, restored.Session().Data)

			next := validInputs[stage][1]
			want, err := live.ProcessInput(next)
			require.NoError(t, err)
			got, err := restored.ProcessInput(next)
			require.NoError(t, err)

			require.Equal(t, want.Transitioned, got.Transitioned)
			require.Equal(t, want.Completed, got.Completed)
			require.Equal(t, want.Messages, got.Messages)
			require.Equal(t, want.Session.CurrentStage, got.Session.CurrentStage)
			require.Equal(t, want.Session.Data, got.Session.Data)
		})
	}
}

func TestRestore_UnknownStage(t *testing.T) {
	_, err := spark.Restore(&domain.Session{ID: "s", CurrentStage: "DANCING"})
	require.ErrorIs(t, err, spark.ErrUnknownStage)
}

func TestRestore_CompletedHasNoHandler(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StageCompleted)

	restored, err := spark.Restore(m.Session())
	require.NoError(t, err)
	_, err = restored.ProcessInput(text("again"))
	require.ErrorIs(t, err, spark.ErrNoActiveHandler)
}

func TestMachine_DialogueHistoryCap(t *testing.T) {
	m := newMachine()
	m.Start()

	for i := 1; i <= 11; i++ {
		m.AddLLMResponse(fmt.Sprintf("reply %d", i))
	}

	history := m.Session().DialogueHistory
	require.Len(t, history, domain.DialogueHistoryLimit)
	require.Equal(t, "reply 2", history[0])
	require.Equal(t, "reply 11", history[9])
}

func TestMachine_AnalyticsDisabled(t *testing.T) {
	m := newMachine(spark.WithAnalytics(false))
	m.Start()
	advanceTo(t, m, domain.StageAffect)

	require.Empty(t, m.Events())
}

func TestMachine_LLMPrompt(t *testing.T) {
	m := newMachine()
	m.Start()
	advanceTo(t, m, domain.StagePerception)

	prompt := m.LLMPrompt("I keep procrastinating")
	require.True(t, strings.HasPrefix(prompt, spark.SystemPrompt))
	assert.Contains(t, prompt, "Current SPARK step: PERCEPTION\n")
	assert.Contains(t, prompt, `"description": "Can't start my report"`)
	assert.Contains(t, prompt, "User's latest input: I keep procrastinating\n")
	assert.True(t, strings.HasSuffix(prompt, "Respond as the ADHD coach avatar:"))
}

func TestMachine_SessionIsACopy(t *testing.T) {
	m := newMachine()
	m.Start()

	s := m.Session()
	s.Data.Situation.Description = "tampered"
	s.DialogueHistory = append(s.DialogueHistory, "x")

	require.Empty(t, m.Session().Data.Situation.Description)
	require.Empty(t, m.Session().DialogueHistory)
}

func TestMachine_BeforeStart(t *testing.T) {
	m := newMachine()

	assert.Equal(t, spark.Progress{TotalSteps: spark.TotalSteps}, m.Progress())
	assert.False(t, m.Validate().Valid)
	assert.Empty(t, m.Stage())
	assert.Empty(t, m.SessionID())
	assert.Empty(t, m.LLMPrompt("hello"))
	assert.Nil(t, m.Session())
	assert.True(t, m.LastActivity().IsZero())
	assert.Equal(t, domain.UserID("user-1"), m.CoachContext().UserID)
	assert.False(t, m.Active())

	m.AddLLMResponse("ignored")
	assert.Empty(t, m.Events())

	_, err := m.ProcessInput(text("hi"))
	require.ErrorIs(t, err, spark.ErrNoActiveHandler)

	m.Start()
	assert.Equal(t, 1, m.Progress().StepIndex)
}
