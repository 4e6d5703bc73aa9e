package spark_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

func TestExtractKeyPhrase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short without terminator", "  Can't start my report ", "Can't start my report"},
		{"first sentence", "Deadline tomorrow. Boss is upset!", "Deadline tomorrow"},
		{"question mark", "Why can't I focus? It keeps happening", "Why can't I focus"},
		{
			"long without terminator",
			strings.Repeat("abcdefghij", 8),
			strings.Repeat("abcdefghij", 4) + "abcdefg...",
		},
		{
			"long first sentence cuts the whole text",
			strings.Repeat("word ", 12) + "end. Second part",
			strings.TrimSpace(strings.Repeat("word ", 12)[:47]) + "...",
		},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, spark.ExtractKeyPhrase(tt.in))
		})
	}
}

func TestExtractKeyPhrase_Bounds(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		s := rapid.StringMatching(`[a-zA-Z ,']{0,120}`).Draw(r, "text")
		got := spark.ExtractKeyPhrase(s)
		if len([]rune(s)) <= 50 {
			require.Equal(r, strings.TrimSpace(s), got)
			return
		}
		require.True(r, strings.HasSuffix(got, "..."))
		require.LessOrEqual(r, len([]rune(got)), 50)
	})
}

func TestSituationAcknowledgment_OneOfThree(t *testing.T) {
	d := domain.StageData{Situation: &domain.SituationData{Description: "Late again.", Thoughts: "I'm hopeless"}}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		seen[spark.SituationAcknowledgment(d, fixedPicker(i))] = true
	}
	require.Len(t, seen, 3)
	assert.True(t, seen[`Thank you for sharing that. Dealing with "Late again" while your mind is racing with thoughts like "I'm hopeless" sounds really challenging.`])
}

func TestPerceptionReframe(t *testing.T) {
	d := domain.StageData{
		Situation:  &domain.SituationData{Description: "Messy kitchen"},
		Perception: &domain.PerceptionData{SelectedReframe: domain.ReframeQuestions[0]},
	}
	assert.Contains(t, spark.PerceptionReframe(d), `Looking at "Messy kitchen"`)

	d.Perception.SelectedReframe = domain.ReframeQuestions[3]
	assert.True(t, strings.HasPrefix(spark.PerceptionReframe(d), "Ah, the inner critic."))

	d.Perception.SelectedReframe = "Something else entirely?"
	assert.Equal(t, "That's a powerful question to sit with. Take a moment to really consider it.", spark.PerceptionReframe(d))
}

func TestAffectValidation_IntensityBands(t *testing.T) {
	tests := []struct {
		intensity int
		want      string
	}{
		{10, "With that level of intensity"},
		{8, "With that level of intensity"},
		{7, "That's a moderate intensity"},
		{5, "That's a moderate intensity"},
		{4, "Even at this level"},
		{1, "Even at this level"},
	}
	for _, tt := range tests {
		d := domain.StageData{Affect: &domain.AffectData{Emotion: domain.EmotionStressed, Intensity: tt.intensity}}
		got := spark.AffectValidation(d)
		assert.True(t, strings.HasPrefix(got, "Stress is your body's way"), got)
		assert.Contains(t, got, tt.want)
	}
}

func TestActionEncouragement(t *testing.T) {
	for _, a := range domain.ActionOptions {
		assert.NotEqual(t, spark.ActionEncouragement("nope"), spark.ActionEncouragement(a.Label), a.Label)
	}
	assert.Equal(t, "You've chosen your action. Remember, starting is the hardest part.", spark.ActionEncouragement("breathing_exercise"))
}

func TestSessionSummary(t *testing.T) {
	d := domain.StageData{KeyResult: &domain.KeyResultData{
		FollowThrough: domain.FollowThroughStruggledToBegin,
		Insights:      "I need smaller first steps! Always.",
	}}
	require.Equal(t,
		`Thank you for being honest. Executive dysfunction is real. The fact that you're reflecting on it is meaningful. Your insight, "I need smaller first steps", is something to carry forward.`,
		spark.SessionSummary(d))
}

func TestPartialInputReply(t *testing.T) {
	for i := 0; i < 5; i++ {
		require.Contains(t, spark.PartialInputReplies, spark.PartialInputReply(fixedPicker(i)))
	}
}
