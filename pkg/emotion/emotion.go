// Package emotion provides the session emotion vocabulary, classifier label
// normalization, frequency aggregation, and the HTTP client for the external
// facial emotion classifier service.
package emotion

// Label is an emotion in the session vocabulary.
type Label string

// Session emotion vocabulary.
const (
	Angry     Label = "angry"
	Disgusted Label = "disgusted"
	Fearful   Label = "fearful"
	Happy     Label = "happy"
	Neutral   Label = "neutral"
	Sad       Label = "sad"
	Surprised Label = "surprised"
)

// classifierLabels maps raw classifier output to the session vocabulary.
// The classifier emits the eight labels of its training set; "contempt" has
// no session equivalent and folds into disgusted.
var classifierLabels = map[string]Label{
	"anger":    Angry,
	"contempt": Disgusted,
	"disgust":  Disgusted,
	"fear":     Fearful,
	"happy":    Happy,
	"neutral":  Neutral,
	"sad":      Sad,
	"surprise": Surprised,
}

// Normalize maps a raw classifier label to the session vocabulary.
// Unknown labels pass through unchanged (fail open, not closed).
func Normalize(raw string) Label {
	if label, ok := classifierLabels[raw]; ok {
		return label
	}
	return Label(raw)
}

// tones maps the user's dominant emotion to the tone the assistant should
// take when replying.
var tones = map[Label]string{
	Angry:     "calm",
	Sad:       "empathetic",
	Happy:     "cheerful",
	Fearful:   "reassuring",
	Surprised: "explanatory",
	Disgusted: "understanding",
}

// DefaultTone is used when no emotion-specific tone applies.
const DefaultTone = "friendly"

// Tone returns the assistant tone for the given user emotion.
func Tone(label Label) string {
	if tone, ok := tones[label]; ok {
		return tone
	}
	return DefaultTone
}
