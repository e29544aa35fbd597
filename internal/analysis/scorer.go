package analysis

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
)

// Scorer compares a normalized handwriting image against a font. Every
// returned field must lie in [0,100].
type Scorer interface {
	Score(ctx context.Context, img *image.Gray, font database.Font) (Scores, error)
}

// ScorerFunc adapts a function to the Scorer interface
type ScorerFunc func(ctx context.Context, img *image.Gray, font database.Font) (Scores, error)

// Score calls f
func (f ScorerFunc) Score(ctx context.Context, img *image.Gray, font database.Font) (Scores, error) {
	return f(ctx, img, font)
}

// RandomScorer draws every score uniformly from a fixed plausible range and
// ignores the image.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer creates a RandomScorer; a nil rng is seeded from the clock
func NewRandomScorer(rng *rand.Rand) *RandomScorer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomScorer{rng: rng}
}

// Score implements Scorer
func (s *RandomScorer) Score(ctx context.Context, _ *image.Gray, _ database.Font) (Scores, error) {
	if err := ctx.Err(); err != nil {
		return Scores{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return Scores{
		Match:   s.between(55, 35),
		Shape:   s.between(50, 40),
		Slope:   s.between(45, 45),
		Scale:   s.between(60, 30),
		Fluency: s.between(55, 35),
	}, nil
}

// between returns base + floor(U[0,1) * span)
func (s *RandomScorer) between(base, span int) int {
	return base + int(math.Floor(s.rng.Float64()*float64(span)))
}

// StrokeScorer extracts ink features from the image and compares them with
// the style profile of the font's class.
type StrokeScorer struct {
	profiles *ProfileStore
}

// NewStrokeScorer creates a new stroke scorer
func NewStrokeScorer(profiles *ProfileStore) *StrokeScorer {
	return &StrokeScorer{profiles: profiles}
}

// Score implements Scorer
func (s *StrokeScorer) Score(ctx context.Context, img *image.Gray, font database.Font) (Scores, error) {
	profile, err := s.profiles.LoadProfile(font.ClassName)
	if err != nil {
		return Scores{}, err
	}

	fv, err := ExtractFeatures(ctx, img)
	if err != nil {
		return Scores{}, err
	}

	return CompareFeatures(fv, profile), nil
}

// CompareFeatures scores fv against profile. The composite is the weighted
// mean of the four sub-scores.
func CompareFeatures(fv FeatureVector, profile StyleProfile) Scores {
	t, tol, w := profile.Target, profile.Tolerance, profile.Weights

	scores := Scores{
		Shape:   similarity(fv.InkDensity-t.InkDensity, tol.InkDensity),
		Slope:   similarity(fv.Slope-t.Slope, tol.Slope),
		Scale:   similarity(fv.Spread-t.Spread, tol.Spread),
		Fluency: similarity(fv.Continuity-t.Continuity, tol.Continuity),
	}

	total := w.Shape + w.Slope + w.Scale + w.Fluency
	if total <= 0 {
		w, total = defaultWeights, 1
	}
	composite := (w.Shape*float64(scores.Shape) +
		w.Slope*float64(scores.Slope) +
		w.Scale*float64(scores.Scale) +
		w.Fluency*float64(scores.Fluency)) / total
	scores.Match = int(math.Round(clip(composite, 0, 100)))

	return scores
}
