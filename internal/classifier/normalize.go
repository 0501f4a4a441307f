package classifier

import "encoding/json"

// Prediction is one normalized classifier output entry.
type Prediction struct {
	Label      string
	Confidence float64
	BBox       []float64 // [x, y, w, h], empty when the provider gives none
}

// rawPrediction accepts the field spellings seen across provider shapes.
type rawPrediction struct {
	Label       string    `json:"label"`
	Name        string    `json:"name"`
	PlantName   string    `json:"plant_name"`
	Class       string    `json:"class"`
	Score       *float64  `json:"score"`
	Confidence  *float64  `json:"confidence"`
	Probability *float64  `json:"probability"`
	BBox        []float64 `json:"bbox"`
	BoundingBox []float64 `json:"bounding_box"`
}

func (p rawPrediction) normalize() (Prediction, bool) {
	label := p.Label
	for _, alt := range []string{p.Name, p.PlantName, p.Class} {
		if label == "" {
			label = alt
		}
	}
	if label == "" {
		return Prediction{}, false
	}

	var confidence float64
	switch {
	case p.Score != nil:
		confidence = *p.Score
	case p.Confidence != nil:
		confidence = *p.Confidence
	case p.Probability != nil:
		confidence = *p.Probability
	}
	if confidence < 0 || confidence > 1 {
		return Prediction{}, false
	}

	bbox := p.BBox
	if len(bbox) == 0 {
		bbox = p.BoundingBox
	}
	return Prediction{Label: label, Confidence: confidence, BBox: bbox}, true
}

// Normalize maps every accepted provider response shape into a flat
// prediction list: a top-level array, an object with "predictions" or
// "suggestions", or a single prediction object. Unrecognized shapes yield
// zero predictions rather than a guess.
func Normalize(raw json.RawMessage) []Prediction {
	if len(raw) == 0 {
		return nil
	}

	var list []rawPrediction
	if err := json.Unmarshal(raw, &list); err == nil {
		return collect(list)
	}

	var nested struct {
		Predictions []rawPrediction `json:"predictions"`
		Suggestions []rawPrediction `json:"suggestions"`
		Results     []rawPrediction `json:"results"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		for _, candidates := range [][]rawPrediction{nested.Predictions, nested.Suggestions, nested.Results} {
			if len(candidates) > 0 {
				return collect(candidates)
			}
		}
	}

	var single rawPrediction
	if err := json.Unmarshal(raw, &single); err == nil {
		if p, ok := single.normalize(); ok {
			return []Prediction{p}
		}
	}
	return nil
}

func collect(list []rawPrediction) []Prediction {
	var out []Prediction
	for _, rp := range list {
		if p, ok := rp.normalize(); ok {
			out = append(out, p)
		}
	}
	return out
}
