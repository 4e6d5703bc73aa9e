package spark_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

// fixedPicker always picks the same template index (mod n).
type fixedPicker int

func (p fixedPicker) IntN(n int) int { return int(p) % n }

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// stepClock advances one second per call so timestamps stay distinct.
func stepClock() func() time.Time {
	now := testStart
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func sequentialIDs() func() domain.SessionID {
	n := 0
	return func() domain.SessionID {
		n++
		return domain.SessionID(fmt.Sprintf("session-%d", n))
	}
}

func newMachine(opts ...spark.Option) *spark.Machine {
	base := []spark.Option{
		spark.WithPicker(fixedPicker(0)),
		spark.WithClock(stepClock()),
		spark.WithIDGenerator(sequentialIDs()),
	}
	return spark.New("user-1", append(base, opts...)...)
}

func text(v string) domain.UserInput {
	return domain.UserInput{Type: domain.InputText, Value: v}
}

func option(v string) domain.UserInput {
	return domain.UserInput{Type: domain.InputOptionSelect, Value: v}
}

func emotion(v string) domain.UserInput {
	return domain.UserInput{Type: domain.InputEmotionSelect, Value: v}
}

func intensity(v any) domain.UserInput {
	return domain.UserInput{Type: domain.InputIntensity, Value: v}
}

func actionComplete(v bool) domain.UserInput {
	return domain.UserInput{Type: domain.InputActionComplete, Value: v}
}

// validInputs satisfies each working stage in order.
var validInputs = map[domain.Stage][]domain.UserInput{
	domain.StageSituation:  {text("Can't start my report"), text("I'll never finish")},
	domain.StagePerception: {option(domain.ReframeQuestions[0]), text("Just the outline today")},
	domain.StageAffect:     {emotion("anxious"), intensity(9)},
	domain.StageResponse:   {option("Guided breathing exercise"), actionComplete(true)},
	domain.StageKeyResult:  {option("completed_all"), text("Small steps work for me. Really.")},
}

// advanceTo feeds valid input until the machine sits at target.
func advanceTo(t *testing.T, m *spark.Machine, target domain.Stage) {
	t.Helper()
	for m.Stage() != target {
		inputs, ok := validInputs[m.Stage()]
		require.True(t, ok, "no inputs for stage %s", m.Stage())
		for _, in := range inputs {
			_, err := m.ProcessInput(in)
			require.NoError(t, err)
		}
	}
}
