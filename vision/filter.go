package vision

import (
	"strings"

	"github.com/khaledhikmat/crackwatch/model"
)

// Filter keeps the detections that reach threshold and whose label is in
// classes (every label when classes is empty). The result is positive when
// a kept detection carries one of the target labels. Labels compare
// case-insensitively.
func Filter(raw []model.Detection, threshold float64, classes, targets []string) ([]model.Detection, bool) {
	allowed := labelSet(classes)
	wanted := labelSet(targets)

	kept := []model.Detection{}
	positive := false
	for _, d := range raw {
		if d.Confidence < threshold {
			continue
		}
		label := strings.ToLower(d.Label)
		if len(allowed) > 0 && !allowed[label] {
			continue
		}
		kept = append(kept, d)
		if wanted[label] {
			positive = true
		}
	}
	return kept, positive
}

// Best returns the most confident detection.
func Best(detections []model.Detection) (model.Detection, bool) {
	if len(detections) == 0 {
		return model.Detection{}, false
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

func labelSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return set
}
