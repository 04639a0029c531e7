package emotion

import "testing"

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		labels []Label
		want   []Ranked
	}{
		{
			name:   "empty window",
			labels: nil,
			want:   nil,
		},
		{
			name:   "single label",
			labels: []Label{Happy},
			want:   []Ranked{{Happy, 100}},
		},
		{
			name:   "two to one split",
			labels: []Label{Angry, Angry, Sad},
			want:   []Ranked{{Angry, 67}, {Sad, 33}},
		},
		{
			name:   "minority observed first still ranks second",
			labels: []Label{Sad, Angry, Angry},
			want:   []Ranked{{Angry, 67}, {Sad, 33}},
		},
		{
			name:   "tie keeps first-seen order",
			labels: []Label{Surprised, Happy, Happy, Surprised},
			want:   []Ranked{{Surprised, 50}, {Happy, 50}},
		},
		{
			name:   "three way",
			labels: []Label{Neutral, Neutral, Neutral, Happy, Happy, Sad},
			want:   []Ranked{{Neutral, 50}, {Happy, 33}, {Sad, 17}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.labels)
			if len(got) != len(tt.want) {
				t.Fatalf("Aggregate() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Aggregate()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAggregatePercentagesSumToHundred(t *testing.T) {
	windows := [][]Label{
		{Happy},
		{Happy, Sad},
		{Angry, Angry, Sad},
		{Neutral, Happy, Sad, Angry, Fearful, Surprised, Disgusted},
		{Happy, Happy, Happy, Sad, Sad, Neutral, Neutral, Neutral, Neutral},
	}

	for _, window := range windows {
		sum := 0
		prev := 101
		for _, r := range Aggregate(window) {
			sum += r.Percentage
			if r.Percentage > prev {
				t.Errorf("window %v: percentages not descending", window)
			}
			prev = r.Percentage
		}
		// Nearest-integer rounding can drift by one per entry.
		if sum < 99 || sum > 101 {
			t.Errorf("window %v: percentages sum to %d, want ~100", window, sum)
		}
	}
}

func TestDominant(t *testing.T) {
	if _, ok := Dominant(nil); ok {
		t.Error("Dominant(nil) should report no result")
	}

	got, ok := Dominant([]Label{Sad, Happy, Happy})
	if !ok || got != Happy {
		t.Errorf("Dominant() = %v, %v, want happy, true", got, ok)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
	}{
		{"anger", Angry},
		{"contempt", Disgusted},
		{"disgust", Disgusted},
		{"fear", Fearful},
		{"happy", Happy},
		{"neutral", Neutral},
		{"sad", Sad},
		{"surprise", Surprised},
		{"bored", Label("bored")}, // unknown labels pass through
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTone(t *testing.T) {
	tests := []struct {
		label Label
		want  string
	}{
		{Angry, "calm"},
		{Sad, "empathetic"},
		{Happy, "cheerful"},
		{Fearful, "reassuring"},
		{Surprised, "explanatory"},
		{Disgusted, "understanding"},
		{Neutral, "friendly"},
		{Label("bored"), "friendly"},
	}

	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			if got := Tone(tt.label); got != tt.want {
				t.Errorf("Tone(%v) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}
