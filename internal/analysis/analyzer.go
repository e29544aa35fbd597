package analysis

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
	"github.com/ZanzyTHEbar/scriptmatch/internal/storage"
)

// allowedTypes are the image formats accepted for analysis
var allowedTypes = []string{"image/jpeg", "image/png"}

// Options tune the analysis pipeline
type Options struct {
	MaxImageBytes int64
	MaxImageEdge  int
	// MaxImagePixels bounds width*height of the decoded upload
	MaxImagePixels int
	ScorerTimeout  time.Duration
	DefaultUserID  int64
}

// DefaultOptions returns the production limits
func DefaultOptions() Options {
	return Options{
		MaxImageBytes:  5 << 20,
		MaxImageEdge:   400,
		MaxImagePixels: DefaultMaxPixels,
		ScorerTimeout:  10 * time.Second,
		DefaultUserID:  1,
	}
}

// Analyzer orchestrates validation, preprocessing, scoring and persistence
// of one upload.
type Analyzer struct {
	repo         database.Repository
	preprocessor *Preprocessor
	scorer       Scorer
	images       storage.ImageStore
	opts         Options
	now          func() time.Time
}

// NewAnalyzer creates a new analyzer. images may be nil, in which case
// processed images are not kept.
func NewAnalyzer(repo database.Repository, scorer Scorer, images storage.ImageStore, opts Options) *Analyzer {
	return &Analyzer{
		repo:         repo,
		preprocessor: NewPreprocessor(opts.MaxImageEdge, opts.MaxImagePixels),
		scorer:       scorer,
		images:       images,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Analyze validates in, scores it and records the result. Either a result
// is persisted and returned, or nothing is written and an *AppError is
// returned.
func (a *Analyzer) Analyze(ctx context.Context, in AnalyzeInput) (*database.FontResult, error) {
	font, userID, err := a.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	img, err := a.preprocessor.Process(in.Image)
	if err != nil {
		if errors.Is(err, ErrTooManyPixels) {
			return nil, apperrors.NewUnsupportedMediaError("Image dimensions are too large", err.Error())
		}
		return nil, apperrors.NewUnsupportedMediaError("Image could not be decoded", err.Error())
	}

	scores, err := a.score(ctx, img, *font)
	if err != nil {
		return nil, err
	}

	// Work that outlived its caller is dropped before anything is written
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInternalError("request cancelled before persistence", err)
	}

	return a.persist(ctx, userID, font.Name, scores, img)
}

// validate runs the input checks in order and resolves the font and user
func (a *Analyzer) validate(ctx context.Context, in AnalyzeInput) (*database.Font, int64, error) {
	if len(in.Image) == 0 {
		return nil, 0, apperrors.NewMissingInputError("No image file provided")
	}

	if int64(len(in.Image)) > a.opts.MaxImageBytes {
		return nil, 0, apperrors.NewPayloadTooLargeError(int64(len(in.Image)), a.opts.MaxImageBytes)
	}

	if err := checkContentType(in.Image, in.ContentType); err != nil {
		return nil, 0, err
	}

	if strings.TrimSpace(in.FontName) == "" {
		return nil, 0, apperrors.NewMissingInputError("Font name is required")
	}

	// names match exactly; surrounding spaces are not stripped
	font, err := a.repo.GetFontByName(ctx, in.FontName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, 0, apperrors.NewNotFoundError("Font not found")
		}
		return nil, 0, apperrors.NewPersistenceError("failed to look up font", err)
	}

	userID := a.opts.DefaultUserID
	if in.UserID != nil {
		userID = *in.UserID
		if _, err := a.repo.GetUser(ctx, userID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, 0, apperrors.NewNotFoundError("User not found")
			}
			return nil, 0, apperrors.NewPersistenceError("failed to look up user", err)
		}
	}

	return font, userID, nil
}

// checkContentType sniffs the payload. A declared type, when present and
// specific, must also be on the allow-list.
func checkContentType(data []byte, declared string) error {
	detected := mimetype.Detect(data)
	allowed := false
	for _, t := range allowedTypes {
		if detected.Is(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewUnsupportedMediaError("Only JPEG and PNG images are accepted", detected.String())
	}

	if declared == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return apperrors.NewUnsupportedMediaError("Only JPEG and PNG images are accepted", declared)
	}
	switch mediaType {
	case "image/jpeg", "image/jpg", "image/png", "application/octet-stream":
		return nil
	default:
		return apperrors.NewUnsupportedMediaError("Only JPEG and PNG images are accepted", mediaType)
	}
}

type scoreOutcome struct {
	scores Scores
	err    error
}

// score runs the scorer under the configured deadline and checks its output
func (a *Analyzer) score(ctx context.Context, img *image.Gray, font database.Font) (Scores, error) {
	scoreCtx, cancel := context.WithTimeout(ctx, a.opts.ScorerTimeout)
	defer cancel()

	done := make(chan scoreOutcome, 1)
	go func() {
		s, err := a.scorer.Score(scoreCtx, img, font)
		done <- scoreOutcome{scores: s, err: err}
	}()

	var out scoreOutcome
	select {
	case out = <-done:
	case <-scoreCtx.Done():
		out.err = scoreCtx.Err()
	}

	if out.err != nil {
		if ctx.Err() != nil {
			return Scores{}, apperrors.NewInternalError("request cancelled during scoring", ctx.Err())
		}
		if errors.Is(out.err, context.DeadlineExceeded) {
			return Scores{}, apperrors.NewScorerTimeoutError(a.opts.ScorerTimeout, out.err)
		}
		var appErr *apperrors.AppError
		if errors.As(out.err, &appErr) {
			return Scores{}, appErr
		}
		return Scores{}, apperrors.NewInternalError("scorer failed", out.err)
	}

	if err := out.scores.Validate(); err != nil {
		return Scores{}, err
	}
	return out.scores, nil
}

// persist stores the processed image, then the result row. If the row
// cannot be written the image is removed again.
func (a *Analyzer) persist(ctx context.Context, userID int64, fontName string, scores Scores, img *image.Gray) (*database.FontResult, error) {
	now := a.now()

	var key, imageURL string
	if a.images != nil {
		encoded, err := EncodePNG(img)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode processed image", err)
		}
		key = storage.NewResultKey(now)
		imageURL, err = a.images.Put(ctx, key, "image/png", encoded)
		if err != nil {
			return nil, apperrors.NewPersistenceError("failed to store processed image", err)
		}
	}

	result, err := a.repo.CreateFontResult(ctx, database.NewFontResult{
		UserID:          userID,
		FontName:        fontName,
		MatchPercentage: scores.Match,
		ShapeMatch:      scores.Shape,
		SlopeMatch:      scores.Slope,
		ScaleMatch:      scores.Scale,
		FluencyMatch:    scores.Fluency,
		ImageURL:        imageURL,
		CreatedAt:       now,
	})
	if err != nil {
		if key != "" {
			a.discardImage(ctx, key)
		}
		return nil, apperrors.NewPersistenceError("failed to record font result", err)
	}

	return result, nil
}

func (a *Analyzer) discardImage(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.images.Delete(cleanupCtx, key); err != nil {
		slog.Warn("Failed to remove orphaned image", "key", key, "error", err)
	}
}
