package spark

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// Picker chooses a template index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

// SystemPrompt is the coach persona sent ahead of every LLM prompt.
const SystemPrompt = `You are a compassionate and knowledgeable ADHD coach avatar. Your role is to guide users through the SPARK methodology for intentional thinking.

SPARK stands for:
- S: Situation - Understanding the current challenge
- P: Perception - Reframing thoughts and perspectives
- A: Affect - Acknowledging emotions
- R: Response - Taking action
- K: Key Result - Reflecting on progress

Your communication style:
- Warm, encouraging, and non-judgmental
- Concise and clear (ADHD brains appreciate brevity)
- Validating feelings while gently challenging unhelpful thought patterns
- Celebratory of small wins
- Understanding of ADHD-specific challenges (RSD, executive dysfunction, time blindness)

Keep responses under 3 sentences unless detailed guidance is needed.
Never use clinical jargon without explanation.
Always acknowledge effort, not just outcomes.`

// ClosingLine ends every completed session.
const ClosingLine = "You've completed a full SPARK session. Remember, you can come back anytime you need to work through something. Take care of yourself."

// PartialInputReplies reassure the user while a stage is still collecting input.
var PartialInputReplies = []string{
	"Take your time. There's no rush here.",
	"I'm still listening. Share whatever feels right.",
	"You're doing great. Keep going when you're ready.",
}

const (
	keyPhraseMax     = 50
	keyPhraseCut     = 47
	keyPhraseEllipse = "..."
)

// ExtractKeyPhrase returns the first sentence when it fits in 50 characters,
// otherwise the first 47 characters of the whole text plus an ellipsis.
func ExtractKeyPhrase(text string) string {
	first := text
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		first = text[:i]
	}
	if len([]rune(first)) <= keyPhraseMax {
		return strings.TrimSpace(first)
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:keyPhraseCut])) + keyPhraseEllipse
}

func pick(p Picker, pool []string) string {
	return pool[p.IntN(len(pool))]
}

// PartialInputReply picks one of the reassurance lines.
func PartialInputReply(p Picker) string {
	return pick(p, PartialInputReplies)
}

// SituationAcknowledgment picks one of three replies to the user's situation.
func SituationAcknowledgment(d domain.StageData, p Picker) string {
	if d.Situation == nil {
		return ""
	}
	templates := []string{
		fmt.Sprintf(`Thank you for sharing that. Dealing with "%s" while your mind is racing with thoughts like "%s" sounds really challenging.`,
			ExtractKeyPhrase(d.Situation.Description), ExtractKeyPhrase(d.Situation.Thoughts)),
		"I hear you. It takes courage to articulate what you're going through. The situation you're facing and those thoughts are valid, even if they feel overwhelming right now.",
		"That's a lot to carry. The good news is that by putting it into words, you've already taken the first step toward working through it.",
	}
	return pick(p, templates)
}

const reframeFallback = "That's a powerful question to sit with. Take a moment to really consider it."

// PerceptionReframe follows up on the reframe question the user picked.
func PerceptionReframe(d domain.StageData) string {
	if d.Perception == nil || d.Situation == nil {
		return ""
	}
	switch d.Perception.SelectedReframe {
	case domain.ReframeQuestions[0]:
		return fmt.Sprintf(`Great choice. Let's ground ourselves in the present. Looking at "%s", what's the ONE thing you can actually influence today? Not tomorrow's worst-case scenario, just today.`,
			ExtractKeyPhrase(d.Situation.Description))
	case domain.ReframeQuestions[1]:
		return "Love this perspective shift. On your best day, you'd probably see this situation with more clarity and self-compassion. What advice would that version of you give?"
	case domain.ReframeQuestions[2]:
		return "This is such an important question for ADHD brains. We often spend energy on things outside our control. What's one small thing in this situation that IS within your power?"
	case domain.ReframeQuestions[3]:
		return "Ah, the inner critic. It thinks it's protecting you, but often it just amplifies the noise. What's that voice saying, and what would a compassionate friend say instead?"
	}
	return reframeFallback
}

var emotionReplies = map[domain.EmotionType]string{
	domain.EmotionAnxious:     "Anxiety is your brain's alarm system working overtime. It's trying to protect you, even when the threat isn't as big as it feels.",
	domain.EmotionOverwhelmed: "That overwhelming feeling is real; your brain is processing a lot. You don't have to solve everything at once.",
	domain.EmotionFrustrated:  "Frustration often comes when things don't match our expectations. It's okay to feel this way; it means you care.",
	domain.EmotionSad:         "Sadness is a natural response to difficult situations. Allow yourself to feel it without judgment.",
	domain.EmotionAngry:       "Anger is a signal that something matters to you. Let's channel that energy constructively.",
	domain.EmotionConfused:    "Confusion is actually a sign that you're thinking deeply about this. Clarity will come.",
	domain.EmotionHopeless:    "Hopelessness can feel heavy, but remember: feelings aren't facts. This moment isn't forever.",
	domain.EmotionStressed:    "Stress is your body's way of saying 'this matters.' Let's find a way to reduce the pressure.",
}

func intensityComment(intensity int) string {
	switch {
	case intensity >= 8:
		return "With that level of intensity, taking action to regulate is really important right now."
	case intensity >= 5:
		return "That's a moderate intensity, definitely worth addressing before it builds."
	default:
		return "Even at this level, it's great that you're being proactive about it."
	}
}

// AffectValidation normalizes the emotion and comments on its intensity band.
func AffectValidation(d domain.StageData) string {
	if d.Affect == nil {
		return ""
	}
	comment := intensityComment(d.Affect.Intensity)
	if reply, ok := emotionReplies[d.Affect.Emotion]; ok {
		return reply + " " + comment
	}
	return comment
}

var encouragements = map[string]string{
	"Guided breathing exercise":       "Perfect choice. Breathing exercises directly calm your nervous system. I'll guide you through a simple 4-7-8 pattern. Ready when you are.",
	"Go for a 5-minute walk":          "Movement is medicine for the ADHD brain. Even 5 minutes of walking can reset your mental state. I'll be here when you get back.",
	"Do jumping jacks for 30 seconds": "Quick physical movement is amazing for releasing tension and boosting dopamine. 30 seconds is all you need. Let's do this!",
	"Ask someone for help":            "Reaching out takes courage, especially with ADHD. You're not a burden; connection is a strength. Who feels safe to talk to right now?",
}

// ActionEncouragement is keyed by the action's display label.
func ActionEncouragement(label string) string {
	if e, ok := encouragements[label]; ok {
		return e
	}
	return "You've chosen your action. Remember, starting is the hardest part."
}

var followThroughReplies = map[domain.FollowThroughLevel]string{
	domain.FollowThroughCompletedAll:        "You completed everything! That's incredible. Your insight shows real self-awareness.",
	domain.FollowThroughSignificantProgress: "Significant progress is still progress. Celebrate that! What you learned matters more than perfection.",
	domain.FollowThroughStartedNotFinished:  "You started, and that's huge for ADHD. Starting is often the hardest part. Your reflection shows growth.",
	domain.FollowThroughStruggledToBegin:    "Thank you for being honest. Executive dysfunction is real. The fact that you're reflecting on it is meaningful.",
	domain.FollowThroughUnexpectedIssue:     "Life happens, especially with ADHD. Adaptability is a strength. What you learned today still counts.",
}

// SessionSummary celebrates the follow-through and quotes the user's insight back.
func SessionSummary(d domain.StageData) string {
	if d.KeyResult == nil {
		return ""
	}
	quote := fmt.Sprintf(`Your insight, "%s", is something to carry forward.`, ExtractKeyPhrase(d.KeyResult.Insights))
	if reply, ok := followThroughReplies[d.KeyResult.FollowThrough]; ok {
		return reply + " " + quote
	}
	return quote
}

// Acknowledgment is the text spoken when leaving stage.
func Acknowledgment(stage domain.Stage, d domain.StageData, p Picker) string {
	switch stage {
	case domain.StageSituation:
		return SituationAcknowledgment(d, p)
	case domain.StagePerception:
		return PerceptionReframe(d)
	case domain.StageAffect:
		return AffectValidation(d)
	case domain.StageResponse:
		if d.Response == nil || d.Response.SelectedAction == "" {
			return ""
		}
		label := string(d.Response.SelectedAction)
		if a, ok := domain.LookupAction(label); ok {
			label = a.Label
		}
		return ActionEncouragement(label)
	case domain.StageKeyResult:
		return SessionSummary(d)
	}
	return ""
}

var stageInstructions = map[domain.Stage]string{
	domain.StageSituation:  "Acknowledge what the user shared about their situation. Be empathetic and validate their experience. Keep it brief.",
	domain.StagePerception: "Help the user explore the reframe question they selected. Guide them to see their situation from a new angle. Be curious, not prescriptive.",
	domain.StageAffect:     "Validate the emotion they're feeling. Normalize it in the context of ADHD. Encourage them to take the next action.",
	domain.StageResponse:   "Encourage them as they prepare for or complete their chosen action. Be supportive and motivating.",
	domain.StageKeyResult:  "Celebrate their completion of the session. Reflect back their insights. End on an empowering note.",
	domain.StageCompleted:  "Thank them for completing the session. Remind them they can return anytime.",
}

// BuildLLMPrompt renders the persona, the session data and the user's message
// into one prompt. The reply is stored as-is and never parsed.
func BuildLLMPrompt(s *domain.Session, userMessage string) string {
	data, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		data = []byte("{}")
	}

	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "Current SPARK step: %s\n", s.CurrentStage)
	fmt.Fprintf(&b, "Session data so far:\n%s\n", data)
	fmt.Fprintf(&b, "User's latest input: %s\n", userMessage)
	fmt.Fprintf(&b, "\n\nInstruction: %s\n\nRespond as the ADHD coach avatar:", stageInstructions[s.CurrentStage])
	return b.String()
}
