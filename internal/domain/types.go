package domain

type SessionID string
type UserID string

// Stage is one of the ordered phases of a SPARK session.
type Stage string

const (
	StageSituation  Stage = "SITUATION"
	StagePerception Stage = "PERCEPTION"
	StageAffect     Stage = "AFFECT"
	StageResponse   Stage = "RESPONSE"
	StageKeyResult  Stage = "KEY_RESULT"
	StageCompleted  Stage = "COMPLETED"
)

// StageOrder is the fixed, total order a session moves through.
var StageOrder = []Stage{
	StageSituation,
	StagePerception,
	StageAffect,
	StageResponse,
	StageKeyResult,
	StageCompleted,
}

// Index returns the 0-based position of s in StageOrder, or -1.
func (s Stage) Index() int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

type EmotionType string

const (
	EmotionAnxious     EmotionType = "anxious"
	EmotionOverwhelmed EmotionType = "overwhelmed"
	EmotionFrustrated  EmotionType = "frustrated"
	EmotionSad         EmotionType = "sad"
	EmotionAngry       EmotionType = "angry"
	EmotionConfused    EmotionType = "confused"
	EmotionHopeless    EmotionType = "hopeless"
	EmotionStressed    EmotionType = "stressed"
)

var Emotions = []EmotionType{
	EmotionAnxious,
	EmotionOverwhelmed,
	EmotionFrustrated,
	EmotionSad,
	EmotionAngry,
	EmotionConfused,
	EmotionHopeless,
	EmotionStressed,
}

func (e EmotionType) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Intensity bounds for the affect rating (inclusive).
const (
	MinIntensity = 1
	MaxIntensity = 10
)

type ResponseAction string

const (
	ActionBreathingExercise ResponseAction = "breathing_exercise"
	ActionFiveMinWalk       ResponseAction = "five_min_walk"
	ActionJumpingJacks      ResponseAction = "jumping_jacks"
	ActionAskForHelp        ResponseAction = "ask_for_help"
)

// ActionOption describes a regulation action as shown to the user.
type ActionOption struct {
	ID       ResponseAction `json:"id"`
	Label    string         `json:"label"`
	Duration string         `json:"duration"`
}

var ActionOptions = []ActionOption{
	{ID: ActionBreathingExercise, Label: "Guided breathing exercise", Duration: "3 minutes"},
	{ID: ActionFiveMinWalk, Label: "Go for a 5-minute walk", Duration: "5 minutes"},
	{ID: ActionJumpingJacks, Label: "Do jumping jacks for 30 seconds", Duration: "30 seconds"},
	{ID: ActionAskForHelp, Label: "Ask someone for help", Duration: "Variable"},
}

// LookupAction matches either the action id or its label.
func LookupAction(v string) (ActionOption, bool) {
	for _, a := range ActionOptions {
		if string(a.ID) == v || a.Label == v {
			return a, true
		}
	}
	return ActionOption{}, false
}

type FollowThroughLevel string

const (
	FollowThroughCompletedAll        FollowThroughLevel = "completed_all"
	FollowThroughSignificantProgress FollowThroughLevel = "significant_progress"
	FollowThroughStartedNotFinished  FollowThroughLevel = "started_not_finished"
	FollowThroughStruggledToBegin    FollowThroughLevel = "struggled_to_begin"
	FollowThroughUnexpectedIssue     FollowThroughLevel = "unexpected_issue"
)

type FollowThroughOption struct {
	ID    FollowThroughLevel `json:"id"`
	Label string             `json:"label"`
}

var FollowThroughOptions = []FollowThroughOption{
	{ID: FollowThroughCompletedAll, Label: "Completed everything I planned"},
	{ID: FollowThroughSignificantProgress, Label: "Made significant progress"},
	{ID: FollowThroughStartedNotFinished, Label: "Started but didn't finish"},
	{ID: FollowThroughStruggledToBegin, Label: "Struggled to begin"},
	{ID: FollowThroughUnexpectedIssue, Label: "Something unexpected came up"},
}

// LookupFollowThrough matches either the level id or its label.
func LookupFollowThrough(v string) (FollowThroughOption, bool) {
	for _, o := range FollowThroughOptions {
		if string(o.ID) == v || o.Label == v {
			return o, true
		}
	}
	return FollowThroughOption{}, false
}

// ReframeQuestions are the perspective shifts offered during Perception.
var ReframeQuestions = []string{
	"Am I solving today's problem or tomorrow's imaginary one?",
	"What would I think about this on my best day?",
	"Am I focusing on what I can't control?",
	"How is my inner critic trying to 'help' me right now?",
}
