package spark

import (
	"strings"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// Handler owns the questions and input handling of the active stage.
// There is one implementation per working stage; Completed has none.
type Handler interface {
	Stage() domain.Stage
	// Enter makes sure the stage slot exists and returns the stage's prompts.
	Enter(s *domain.Session) []domain.AvatarMessage
	// ProcessInput applies one input to the stage slot. Input of the wrong
	// shape for the current phase leaves the slot untouched.
	ProcessInput(s *domain.Session, in domain.UserInput)
	CanTransition(s *domain.Session) bool
	NextStage() domain.Stage
}

// newHandler returns the handler for stage, or nil for Completed and unknown stages.
func newHandler(stage domain.Stage, s *domain.Session) Handler {
	switch stage {
	case domain.StageSituation:
		h := &situationHandler{phase: phaseDescription}
		if s.Data.Situation != nil && filled(s.Data.Situation.Description) {
			h.phase = phaseThoughts
		}
		return h
	case domain.StagePerception:
		return perceptionHandler{}
	case domain.StageAffect:
		return affectHandler{}
	case domain.StageResponse:
		return responseHandler{}
	case domain.StageKeyResult:
		return keyResultHandler{}
	}
	return nil
}

func textValue(in domain.UserInput) (string, bool) {
	if in.Type != domain.InputText {
		return "", false
	}
	v, ok := in.Text()
	if !ok || !filled(v) {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func optionValue(in domain.UserInput) (string, bool) {
	if in.Type != domain.InputOptionSelect {
		return "", false
	}
	v, ok := in.Text()
	return strings.TrimSpace(v), ok && filled(v)
}

// ─── Situation ────────────────────────────────────────────────────────────

type situationPhase int

const (
	phaseDescription situationPhase = iota
	phaseThoughts
)

type situationHandler struct {
	phase situationPhase
}

func (h *situationHandler) Stage() domain.Stage { return domain.StageSituation }

func (h *situationHandler) Enter(s *domain.Session) []domain.AvatarMessage {
	if s.Data.Situation == nil {
		s.Data.Situation = &domain.SituationData{}
	}

	if h.phase == phaseThoughts {
		return []domain.AvatarMessage{
			domain.Speech("Thank you for sharing that. Now, let's explore what's happening in your mind."),
			{Type: domain.MessagePrompt, Content: "What thoughts are running through your mind?"},
			{Type: domain.MessageInput, Content: "What thoughts keep coming up about this situation?", InputType: domain.InputKindTextarea},
		}
	}
	return []domain.AvatarMessage{
		domain.Speech("Let's work through this together, one step at a time. I'm here to help you navigate what's on your mind."),
		{Type: domain.MessagePrompt, Content: "Describe the situation:"},
		{Type: domain.MessageInput, Content: "What situation is weighing on you right now?", InputType: domain.InputKindTextarea},
	}
}

func (h *situationHandler) ProcessInput(s *domain.Session, in domain.UserInput) {
	v, ok := textValue(in)
	if !ok {
		return
	}
	if s.Data.Situation == nil {
		s.Data.Situation = &domain.SituationData{}
	}

	switch h.phase {
	case phaseDescription:
		s.Data.Situation.Description = v
		h.phase = phaseThoughts
	case phaseThoughts:
		s.Data.Situation.Thoughts = v
	}
}

func (h *situationHandler) CanTransition(s *domain.Session) bool {
	return h.phase == phaseThoughts && situationComplete(s.Data)
}

func (h *situationHandler) NextStage() domain.Stage { return domain.StagePerception }

// ─── Perception ───────────────────────────────────────────────────────────

type perceptionHandler struct{}

func (perceptionHandler) Stage() domain.Stage { return domain.StagePerception }

func (perceptionHandler) Enter(s *domain.Session) []domain.AvatarMessage {
	if s.Data.Perception == nil {
		s.Data.Perception = &domain.PerceptionData{}
	}
	return []domain.AvatarMessage{
		domain.Speech("Your thoughts are real, but they're not always true. Let's look at this another way."),
		{Type: domain.MessagePrompt, Content: "Choose a reframe question that resonates with you:"},
		{Type: domain.MessageOptions, Content: "Select a perspective shift:", Options: append([]string(nil), domain.ReframeQuestions...)},
	}
}

func (perceptionHandler) ProcessInput(s *domain.Session, in domain.UserInput) {
	if s.Data.Perception == nil {
		s.Data.Perception = &domain.PerceptionData{}
	}

	if v, ok := optionValue(in); ok {
		if isReframe(v) {
			s.Data.Perception.SelectedReframe = v
		}
		return
	}
	if v, ok := textValue(in); ok {
		s.Data.Perception.UserReflection = v
	}
}

func isReframe(v string) bool {
	for _, q := range domain.ReframeQuestions {
		if q == v {
			return true
		}
	}
	return false
}

func (perceptionHandler) CanTransition(s *domain.Session) bool { return perceptionComplete(s.Data) }

func (perceptionHandler) NextStage() domain.Stage { return domain.StageAffect }

// ─── Affect ───────────────────────────────────────────────────────────────

type affectHandler struct{}

func (affectHandler) Stage() domain.Stage { return domain.StageAffect }

func (affectHandler) Enter(s *domain.Session) []domain.AvatarMessage {
	if s.Data.Affect == nil {
		s.Data.Affect = &domain.AffectData{}
	}

	emotions := make([]string, len(domain.Emotions))
	for i, e := range domain.Emotions {
		emotions[i] = string(e)
	}

	return []domain.AvatarMessage{
		domain.Speech("It's okay to feel whatever you're feeling. Pick what resonates with you right now."),
		{Type: domain.MessagePrompt, Content: "Select your current emotion:"},
		{
			Type:      domain.MessageInput,
			Content:   "How are you feeling?",
			InputType: domain.InputKindEmotionSelector,
			Metadata:  map[string]any{"emotions": emotions},
		},
		{Type: domain.MessagePrompt, Content: "Rate your emotional intensity (1-10):"},
		{
			Type:      domain.MessageInput,
			Content:   "How intense is this feeling?",
			InputType: domain.InputKindIntensitySlider,
			Metadata:  map[string]any{"min": domain.MinIntensity, "max": domain.MaxIntensity},
		},
	}
}

func (affectHandler) ProcessInput(s *domain.Session, in domain.UserInput) {
	if s.Data.Affect == nil {
		s.Data.Affect = &domain.AffectData{}
	}

	switch in.Type {
	case domain.InputEmotionSelect:
		v, ok := in.Text()
		if !ok {
			return
		}
		e := domain.EmotionType(strings.ToLower(strings.TrimSpace(v)))
		if e.Valid() {
			s.Data.Affect.Emotion = e
		}
	case domain.InputIntensity:
		// out-of-range values are kept; CanTransition stays false until fixed
		if n, ok := in.Int(); ok {
			s.Data.Affect.Intensity = n
		}
	}
}

func (affectHandler) CanTransition(s *domain.Session) bool { return affectComplete(s.Data) }

func (affectHandler) NextStage() domain.Stage { return domain.StageResponse }

// ─── Response ─────────────────────────────────────────────────────────────

type responseHandler struct{}

func (responseHandler) Stage() domain.Stage { return domain.StageResponse }

func (responseHandler) Enter(s *domain.Session) []domain.AvatarMessage {
	if s.Data.Response == nil {
		s.Data.Response = &domain.ResponseData{}
	}

	labels := make([]string, len(domain.ActionOptions))
	durations := make(map[string]string, len(domain.ActionOptions))
	for i, a := range domain.ActionOptions {
		labels[i] = a.Label
		durations[a.Label] = a.Duration
	}

	return []domain.AvatarMessage{
		domain.Speech("You've got this. Pick whatever feels doable for you right now, no judgment."),
		{Type: domain.MessagePrompt, Content: "Choose an action to help you regulate:"},
		{
			Type:     domain.MessageOptions,
			Content:  "Select an action:",
			Options:  labels,
			Metadata: map[string]any{"durations": durations},
		},
	}
}

func (responseHandler) ProcessInput(s *domain.Session, in domain.UserInput) {
	if s.Data.Response == nil {
		s.Data.Response = &domain.ResponseData{}
	}

	switch in.Type {
	case domain.InputOptionSelect:
		v, _ := optionValue(in)
		if a, ok := domain.LookupAction(v); ok {
			s.Data.Response.SelectedAction = a.ID
		}
	case domain.InputActionComplete:
		if done, ok := in.Bool(); ok {
			s.Data.Response.ActionCompleted = done
		}
	}
}

func (responseHandler) CanTransition(s *domain.Session) bool { return responseComplete(s.Data) }

func (responseHandler) NextStage() domain.Stage { return domain.StageKeyResult }

// ─── Key Result ───────────────────────────────────────────────────────────

type keyResultHandler struct{}

func (keyResultHandler) Stage() domain.Stage { return domain.StageKeyResult }

func (keyResultHandler) Enter(s *domain.Session) []domain.AvatarMessage {
	if s.Data.KeyResult == nil {
		s.Data.KeyResult = &domain.KeyResultData{}
	}

	labels := make([]string, len(domain.FollowThroughOptions))
	for i, o := range domain.FollowThroughOptions {
		labels[i] = o.Label
	}

	return []domain.AvatarMessage{
		domain.Speech("You made it through. That's something to celebrate. How did it go?"),
		{Type: domain.MessagePrompt, Content: "How did your follow-through go?"},
		{Type: domain.MessageOptions, Content: "Select your progress:", Options: labels},
		{Type: domain.MessagePrompt, Content: "Key Insights"},
		{Type: domain.MessageInput, Content: "What did you learn about yourself or your ADHD?", InputType: domain.InputKindTextarea},
	}
}

func (keyResultHandler) ProcessInput(s *domain.Session, in domain.UserInput) {
	if s.Data.KeyResult == nil {
		s.Data.KeyResult = &domain.KeyResultData{}
	}

	if v, ok := optionValue(in); ok {
		if o, ok := domain.LookupFollowThrough(v); ok {
			s.Data.KeyResult.FollowThrough = o.ID
		}
		return
	}
	if v, ok := textValue(in); ok {
		s.Data.KeyResult.Insights = v
	}
}

func (keyResultHandler) CanTransition(s *domain.Session) bool { return keyResultComplete(s.Data) }

func (keyResultHandler) NextStage() domain.Stage { return domain.StageCompleted }
