package database

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken
	ErrConflict = errors.New("conflict")
	// ErrConstraint is returned when a row breaks a range or reference rule
	ErrConstraint = errors.New("constraint violation")
)

// Repository is the storage contract for users, fonts and scoring results.
// Implementations must be safe for concurrent use.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, in NewUser) (*User, error)

	GetAllFonts(ctx context.Context) ([]Font, error)
	GetFontByName(ctx context.Context, name string) (*Font, error)
	CreateFont(ctx context.Context, in NewFont) (*Font, error)

	GetFontResults(ctx context.Context, userID int64) ([]FontResult, error)
	GetFontResultsByFont(ctx context.Context, userID int64, fontName string) ([]FontResult, error)
	GetBestFontResult(ctx context.Context, userID int64, fontName string) (*FontResult, error)
	CreateFontResult(ctx context.Context, in NewFontResult) (*FontResult, error)
	CountFontResults(ctx context.Context) (int, error)

	// Backend names the implementation for health reporting
	Backend() string
	Close() error
}

// bestOf returns the first result with the highest composite score
func bestOf(results []FontResult) (*FontResult, bool) {
	if len(results) == 0 {
		return nil, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.MatchPercentage > best.MatchPercentage {
			best = r
		}
	}
	return &best, true
}

// checkScores enforces the [0,100] range on every score of a result
func checkScores(in NewFontResult) error {
	scores := []struct {
		name  string
		value int
	}{
		{"match_percentage", in.MatchPercentage},
		{"shape_match", in.ShapeMatch},
		{"slope_match", in.SlopeMatch},
		{"scale_match", in.ScaleMatch},
		{"fluency_match", in.FluencyMatch},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 100 {
			return fmt.Errorf("%s %d outside [0,100]: %w", s.name, s.value, ErrConstraint)
		}
	}
	return nil
}
