package spark

import (
	"fmt"
	"math"
	"strings"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// TotalSteps counts the five working stages; Completed is not a step.
const TotalSteps = 5

// Predicate reports whether the session holds everything a stage needs.
type Predicate func(data domain.StageData) bool

// Transition moves a session from one stage to the next once Predicate holds.
type Transition struct {
	From      domain.Stage
	To        domain.Stage
	Predicate Predicate
}

// Transitions is the full table, one entry per non-terminal stage.
var Transitions = []Transition{
	{From: domain.StageSituation, To: domain.StagePerception, Predicate: situationComplete},
	{From: domain.StagePerception, To: domain.StageAffect, Predicate: perceptionComplete},
	{From: domain.StageAffect, To: domain.StageResponse, Predicate: affectComplete},
	{From: domain.StageResponse, To: domain.StageKeyResult, Predicate: responseComplete},
	{From: domain.StageKeyResult, To: domain.StageCompleted, Predicate: keyResultComplete},
}

func filled(s string) bool {
	return strings.TrimSpace(s) != ""
}

func situationComplete(d domain.StageData) bool {
	return d.Situation != nil && filled(d.Situation.Description) && filled(d.Situation.Thoughts)
}

func perceptionComplete(d domain.StageData) bool {
	return d.Perception != nil && filled(d.Perception.SelectedReframe) && filled(d.Perception.UserReflection)
}

func affectComplete(d domain.StageData) bool {
	return d.Affect != nil &&
		d.Affect.Emotion != "" &&
		d.Affect.Intensity >= domain.MinIntensity &&
		d.Affect.Intensity <= domain.MaxIntensity
}

func responseComplete(d domain.StageData) bool {
	return d.Response != nil && d.Response.ActionCompleted
}

func keyResultComplete(d domain.StageData) bool {
	return d.KeyResult != nil && d.KeyResult.FollowThrough != "" && filled(d.KeyResult.Insights)
}

// TransitionFrom returns the table entry leaving stage, if any.
func TransitionFrom(stage domain.Stage) (Transition, bool) {
	for _, t := range Transitions {
		if t.From == stage {
			return t, true
		}
	}
	return Transition{}, false
}

// Progress describes how far a session has come.
type Progress struct {
	StepIndex        int          `json:"step_index"`
	TotalSteps       int          `json:"total_steps"`
	Percentage       int          `json:"percentage"`
	Stage            domain.Stage `json:"stage"`
	StageName        string       `json:"stage_name"`
	StageDescription string       `json:"stage_description"`
}

// ProgressOf derives progress from the session's current stage.
// StepIndex is 1-based over all six stages, so Completed sits at 6 and reads 100%.
func ProgressOf(s *domain.Session) Progress {
	idx := s.CurrentStage.Index() + 1
	return Progress{
		StepIndex:        idx,
		TotalSteps:       TotalSteps,
		Percentage:       int(math.Round(100 * float64(idx-1) / TotalSteps)),
		Stage:            s.CurrentStage,
		StageName:        StageName(s.CurrentStage),
		StageDescription: StageDescription(s.CurrentStage),
	}
}

var stageNames = map[domain.Stage]string{
	domain.StageSituation:  "Situation",
	domain.StagePerception: "Perception",
	domain.StageAffect:     "Affect",
	domain.StageResponse:   "Response",
	domain.StageKeyResult:  "Key Result",
	domain.StageCompleted:  "Completed",
}

var stageDescriptions = map[domain.Stage]string{
	domain.StageSituation:  "Understanding your current situation and thoughts",
	domain.StagePerception: "Reframing your perspective with new viewpoints",
	domain.StageAffect:     "Acknowledging and rating your emotions",
	domain.StageResponse:   "Taking action to regulate your state",
	domain.StageKeyResult:  "Reflecting on your progress and insights",
	domain.StageCompleted:  "Session complete",
}

func StageName(stage domain.Stage) string {
	return stageNames[stage]
}

func StageDescription(stage domain.Stage) string {
	return stageDescriptions[stage]
}

// IntegrityReport lists stages behind the current one that are missing data.
type IntegrityReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateIntegrity walks every stage strictly before the current one.
// It never fails; problems are reported as messages.
func ValidateIntegrity(s *domain.Session) IntegrityReport {
	report := IntegrityReport{Valid: true, Errors: []string{}}

	current := s.CurrentStage.Index()
	if current < 0 {
		report.Valid = false
		report.Errors = append(report.Errors, fmt.Sprintf("Unknown stage %q", s.CurrentStage))
		return report
	}

	for _, t := range Transitions {
		if t.From.Index() >= current {
			break
		}
		if !t.Predicate(s.Data) {
			report.Valid = false
			report.Errors = append(report.Errors, StageName(t.From)+" data incomplete")
		}
	}
	return report
}
