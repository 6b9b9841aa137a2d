package annotation

import (
	"math"
	"strings"

	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"

	"github.com/emotrace/emotrace-backend/pkg/inference"
)

// DefaultEmotion labels media the inference server never analyzed.
const DefaultEmotion = "unknown"

// Annotation holds the normalized emotion analysis for one media object.
//
// Emotions and Times are parallel arrays: exactly one pair per sample,
// times[0] == 0 for images, non-decreasing times for video timelines.
type Annotation struct {
	Emotions []string
	Times    []float64
}

// Default returns the annotation recorded when inference is skipped or fails.
func Default() Annotation {
	return Annotation{
		Emotions: []string{DefaultEmotion},
		Times:    []float64{0},
	}
}

// FromImage normalizes a single-image prediction.
func FromImage(emotion string) Annotation {
	emotion = strings.TrimSpace(emotion)
	if emotion == "" {
		return Default()
	}
	return Annotation{
		Emotions: []string{emotion},
		Times:    []float64{0},
	}
}

// FromTimeline normalizes a video prediction timeline. The server reports
// emotion changes only; offsets are rounded to a tenth of a second. An
// empty timeline degrades to the default annotation.
func FromTimeline(entries []inference.TimelineEntry) Annotation {
	emotions := make([]string, 0, len(entries))
	times := make([]float64, 0, len(entries))
	for _, entry := range entries {
		emotion := strings.TrimSpace(entry.Emotion)
		if emotion == "" {
			continue
		}
		emotions = append(emotions, emotion)
		times = append(times, roundTenth(entry.Timestamp))
	}
	if len(emotions) == 0 {
		return Default()
	}
	return Annotation{Emotions: emotions, Times: times}
}

// Validate checks the parallel-array shape invariants.
func (a Annotation) Validate() error {
	if len(a.Emotions) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "annotation requires at least one emotion")
	}
	if len(a.Emotions) != len(a.Times) {
		return pkgerrors.New(pkgerrors.CodeValidation, "annotation emotions and times must have equal length")
	}
	for i, emotion := range a.Emotions {
		if strings.TrimSpace(emotion) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "annotation contains empty emotion label")
		}
		if a.Times[i] < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "annotation times must be non-negative")
		}
		if i > 0 && a.Times[i] < a.Times[i-1] {
			return pkgerrors.New(pkgerrors.CodeValidation, "annotation times must be non-decreasing")
		}
	}
	return nil
}

// IsDefault reports whether the annotation is the unanalyzed placeholder.
func (a Annotation) IsDefault() bool {
	return len(a.Emotions) == 1 && a.Emotions[0] == DefaultEmotion
}

// Dominant returns the most frequent emotion. Ties break toward the
// emotion encountered first in the sequence.
func (a Annotation) Dominant() string {
	if len(a.Emotions) == 0 {
		return DefaultEmotion
	}

	counts := make(map[string]int, len(a.Emotions))
	order := make([]string, 0, len(a.Emotions))
	for _, emotion := range a.Emotions {
		if _, seen := counts[emotion]; !seen {
			order = append(order, emotion)
		}
		counts[emotion]++
	}

	dominant := order[0]
	for _, emotion := range order[1:] {
		if counts[emotion] > counts[dominant] {
			dominant = emotion
		}
	}
	return dominant
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
