package conversation

import "github.com/PabloGalante/spark-agent/internal/domain"

type GuideType string

const (
	GuideBreathing GuideType = "breathing"
	GuideTimer     GuideType = "timer"
	GuidePrompt    GuideType = "prompt"
	GuideGeneric   GuideType = "generic"
)

// Guide tells the client how to run the action the user picked.
// Duration is in seconds.
type Guide struct {
	Type        GuideType `json:"type"`
	Pattern     []int     `json:"pattern,omitempty"`
	Cycles      int       `json:"cycles,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	Instruction string    `json:"instruction"`
}

// ActionGuide returns the guide for an action id or label. Unknown actions
// get a generic guide.
func ActionGuide(actionType string) Guide {
	action, ok := domain.LookupAction(actionType)
	if !ok {
		return Guide{
			Type:        GuideGeneric,
			Instruction: "Take your chosen action. Come back when you are ready.",
		}
	}

	switch action.ID {
	case domain.ActionBreathingExercise:
		return Guide{
			Type:        GuideBreathing,
			Pattern:     []int{4, 7, 8},
			Cycles:      3,
			Instruction: "Breathe in for 4 seconds, hold for 7, exhale for 8. Follow the visual guide.",
		}
	case domain.ActionFiveMinWalk:
		return Guide{
			Type:        GuideTimer,
			Duration:    300,
			Instruction: "Take a 5-minute walk. I'll be here when you return. Timer started.",
		}
	case domain.ActionJumpingJacks:
		return Guide{
			Type:        GuideTimer,
			Duration:    30,
			Instruction: "30 seconds of jumping jacks. Ready? Go!",
		}
	default:
		return Guide{
			Type:        GuidePrompt,
			Instruction: "Think of one person you trust. What would you say to them? Write it down first if it helps.",
		}
	}
}
