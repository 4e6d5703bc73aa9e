package spark_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

func TestProgressOf(t *testing.T) {
	tests := []struct {
		stage      domain.Stage
		stepIndex  int
		percentage int
		name       string
	}{
		{domain.StageSituation, 1, 0, "Situation"},
		{domain.StagePerception, 2, 20, "Perception"},
		{domain.StageAffect, 3, 40, "Affect"},
		{domain.StageResponse, 4, 60, "Response"},
		{domain.StageKeyResult, 5, 80, "Key Result"},
		{domain.StageCompleted, 6, 100, "Completed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			p := spark.ProgressOf(&domain.Session{CurrentStage: tt.stage})
			require.Equal(t, tt.stepIndex, p.StepIndex)
			require.Equal(t, spark.TotalSteps, p.TotalSteps)
			require.Equal(t, tt.percentage, p.Percentage)
			require.Equal(t, tt.name, p.StageName)
			require.NotEmpty(t, p.StageDescription)
		})
	}
}

func TestTransitionTable_FollowsStageOrder(t *testing.T) {
	require.Len(t, spark.Transitions, len(domain.StageOrder)-1)
	for i, tr := range spark.Transitions {
		require.Equal(t, domain.StageOrder[i], tr.From)
		require.Equal(t, domain.StageOrder[i+1], tr.To)
	}

	_, ok := spark.TransitionFrom(domain.StageCompleted)
	require.False(t, ok, "completed is terminal")
}

func TestValidateIntegrity_MissingSituation(t *testing.T) {
	s := &domain.Session{CurrentStage: domain.StageAffect}
	s.Data.Perception = &domain.PerceptionData{
		SelectedReframe: domain.ReframeQuestions[1],
		UserReflection:  "It would be fine",
	}

	report := spark.ValidateIntegrity(s)
	require.False(t, report.Valid)
	require.Equal(t, []string{"Situation data incomplete"}, report.Errors)
}

func TestValidateIntegrity_ReportsEveryStage(t *testing.T) {
	s := &domain.Session{CurrentStage: domain.StageKeyResult}
	s.Data.Affect = &domain.AffectData{Emotion: domain.EmotionSad, Intensity: 0}
	s.Data.Response = &domain.ResponseData{SelectedAction: domain.ActionAskForHelp}

	report := spark.ValidateIntegrity(s)
	require.False(t, report.Valid)
	require.Equal(t, []string{
		"Situation data incomplete",
		"Perception data incomplete",
		"Affect data incomplete",
		"Response data incomplete",
	}, report.Errors)
}

func TestValidateIntegrity_FreshSessionIsValid(t *testing.T) {
	report := spark.ValidateIntegrity(&domain.Session{CurrentStage: domain.StageSituation})
	require.True(t, report.Valid)
	require.Empty(t, report.Errors)
}

func TestValidateIntegrity_UnknownStage(t *testing.T) {
	report := spark.ValidateIntegrity(&domain.Session{CurrentStage: "LIMBO"})
	require.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
}
