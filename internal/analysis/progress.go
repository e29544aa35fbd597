package analysis

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
	"github.com/ZanzyTHEbar/scriptmatch/internal/types"
)

// Progress derives per-font best scores from a user's result history
type Progress struct {
	repo database.Repository
}

// NewProgress creates a new progress aggregator
func NewProgress(repo database.Repository) *Progress {
	return &Progress{repo: repo}
}

// GetProgress returns one entry per catalog font, in catalog order. Fonts
// the user never attempted report a best score of 0.
func (p *Progress) GetProgress(ctx context.Context, userID int64) ([]types.ProgressEntry, error) {
	if err := p.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	fonts, err := p.repo.GetAllFonts(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list fonts", err)
	}

	entries := make([]types.ProgressEntry, len(fonts))
	g, gctx := errgroup.WithContext(ctx)
	for i, font := range fonts {
		entries[i].FontName = font.Name
		g.Go(func() error {
			best, err := p.repo.GetBestFontResult(gctx, userID, font.Name)
			switch {
			case errors.Is(err, database.ErrNotFound):
				entries[i].BestScore = 0
			case err != nil:
				return err
			default:
				entries[i].BestScore = best.MatchPercentage
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to load best results", err)
	}

	return entries, nil
}

// GetHistory returns a user's results in insertion order, limited to one
// font when fontName is non-empty.
func (p *Progress) GetHistory(ctx context.Context, userID int64, fontName string) ([]types.HistoryEntry, error) {
	if err := p.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var (
		results []database.FontResult
		err     error
	)
	if fontName == "" {
		results, err = p.repo.GetFontResults(ctx, userID)
	} else {
		if _, ferr := p.repo.GetFontByName(ctx, fontName); ferr != nil {
			if errors.Is(ferr, database.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("Font not found")
			}
			return nil, apperrors.NewPersistenceError("failed to look up font", ferr)
		}
		results, err = p.repo.GetFontResultsByFont(ctx, userID, fontName)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load results", err)
	}

	history := make([]types.HistoryEntry, len(results))
	for i, r := range results {
		history[i] = types.HistoryEntry{
			ID:              r.ID,
			FontName:        r.FontName,
			MatchPercentage: r.MatchPercentage,
			ShapeMatch:      r.ShapeMatch,
			SlopeMatch:      r.SlopeMatch,
			ScaleMatch:      r.ScaleMatch,
			FluencyMatch:    r.FluencyMatch,
			ImageURL:        r.ImageURL,
			CreatedAt:       r.CreatedAt,
		}
	}
	return history, nil
}

func (p *Progress) requireUser(ctx context.Context, userID int64) error {
	if _, err := p.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperrors.NewNotFoundError("User not found")
		}
		return apperrors.NewPersistenceError("failed to look up user", err)
	}
	return nil
}
