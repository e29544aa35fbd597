package analysis

import (
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
)

// Scores are the five similarity percentages a Scorer produces
type Scores struct {
	Match   int `json:"matchPercentage"`
	Shape   int `json:"shapeMatch"`
	Slope   int `json:"slopeMatch"`
	Scale   int `json:"scaleMatch"`
	Fluency int `json:"fluencyMatch"`
}

// Validate enforces the closed [0,100] range on every field
func (s Scores) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"match", s.Match},
		{"shape", s.Shape},
		{"slope", s.Slope},
		{"scale", s.Scale},
		{"fluency", s.Fluency},
	}

	for _, f := range fields {
		if f.value < 0 || f.value > 100 {
			return apperrors.NewScorerContractError(f.name, f.value)
		}
	}
	return nil
}

// FeatureVector summarises the ink of a normalized handwriting image
type FeatureVector struct {
	// InkDensity is the share of pixels classified as ink
	InkDensity float64 `json:"inkDensity"`
	// Slope is the tilt in degrees of the least-squares line through the ink
	Slope float64 `json:"slope"`
	// Spread is the robust vertical spread of ink relative to image height
	Spread float64 `json:"spread"`
	// Continuity is the share of ink pixels whose right neighbour is ink
	Continuity float64 `json:"continuity"`
	InkPixels  int     `json:"inkPixels"`
}

// AnalyzeInput is one upload to be scored
type AnalyzeInput struct {
	Image       []byte
	ContentType string
	FontName    string
	// UserID is nil when the caller did not name a user
	UserID *int64
}
