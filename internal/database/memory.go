package database

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepository keeps all rows in process memory. Each entity class has
// its own lock so writers of one class never block another.
type MemoryRepository struct {
	userMu    sync.RWMutex
	users     map[int64]*User
	usernames map[string]int64
	nextUser  int64

	fontMu    sync.RWMutex
	fonts     map[int64]*Font
	fontNames map[string]int64
	fontOrder []int64
	nextFont  int64

	resultMu    sync.RWMutex
	results     map[int64]*FontResult
	resultOrder []int64
	nextResult  int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[int64]*User),
		usernames:  make(map[string]int64),
		nextUser:   1,
		fonts:      make(map[int64]*Font),
		fontNames:  make(map[string]int64),
		nextFont:   1,
		results:    make(map[int64]*FontResult),
		nextResult: 1,
	}
}

// Backend names the implementation
func (r *MemoryRepository) Backend() string { return "memory" }

// Close is a no-op
func (r *MemoryRepository) Close() error { return nil }

// GetUser looks a user up by id
func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.userMu.RLock()
	defer r.userMu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByUsername looks a user up by exact username
func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.userMu.RLock()
	defer r.userMu.RUnlock()

	id, ok := r.usernames[username]
	if !ok {
		return nil, ErrNotFound
	}
	u := *r.users[id]
	return &u, nil
}

// CreateUser assigns the next id and stores the user
func (r *MemoryRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.userMu.Lock()
	defer r.userMu.Unlock()

	if _, taken := r.usernames[in.Username]; taken {
		return nil, fmt.Errorf("create user %q: %w", in.Username, ErrConflict)
	}

	user := &User{
		ID:           r.nextUser,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.nextUser++
	r.users[user.ID] = user
	r.usernames[user.Username] = user.ID

	u := *user
	return &u, nil
}

// GetAllFonts returns the catalog in insertion order
func (r *MemoryRepository) GetAllFonts(ctx context.Context) ([]Font, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.fontMu.RLock()
	defer r.fontMu.RUnlock()

	fonts := make([]Font, 0, len(r.fontOrder))
	for _, id := range r.fontOrder {
		fonts = append(fonts, *r.fonts[id])
	}
	return fonts, nil
}

// GetFontByName looks a font up by exact, case-sensitive name
func (r *MemoryRepository) GetFontByName(ctx context.Context, name string) (*Font, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.fontMu.RLock()
	defer r.fontMu.RUnlock()

	id, ok := r.fontNames[name]
	if !ok {
		return nil, ErrNotFound
	}
	f := *r.fonts[id]
	return &f, nil
}

// CreateFont assigns the next id and stores the font
func (r *MemoryRepository) CreateFont(ctx context.Context, in NewFont) (*Font, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if _, taken := r.fontNames[in.Name]; taken {
		return nil, fmt.Errorf("create font %q: %w", in.Name, ErrConflict)
	}

	font := &Font{
		ID:          r.nextFont,
		Name:        in.Name,
		ClassName:   in.ClassName,
		SampleTitle: in.SampleTitle,
		SampleText:  in.SampleText,
		ImagePath:   in.ImagePath,
	}
	r.nextFont++
	r.fonts[font.ID] = font
	r.fontNames[font.Name] = font.ID
	r.fontOrder = append(r.fontOrder, font.ID)

	f := *font
	return &f, nil
}

// GetFontResults returns a user's results in insertion order
func (r *MemoryRepository) GetFontResults(ctx context.Context, userID int64) ([]FontResult, error) {
	return r.filterResults(ctx, func(fr *FontResult) bool {
		return fr.UserID == userID
	})
}

// GetFontResultsByFont returns a user's results for one font in insertion order
func (r *MemoryRepository) GetFontResultsByFont(ctx context.Context, userID int64, fontName string) ([]FontResult, error) {
	return r.filterResults(ctx, func(fr *FontResult) bool {
		return fr.UserID == userID && fr.FontName == fontName
	})
}

// GetBestFontResult returns the highest composite result, earliest on ties
func (r *MemoryRepository) GetBestFontResult(ctx context.Context, userID int64, fontName string) (*FontResult, error) {
	results, err := r.GetFontResultsByFont(ctx, userID, fontName)
	if err != nil {
		return nil, err
	}

	best, ok := bestOf(results)
	if !ok {
		return nil, ErrNotFound
	}
	return best, nil
}

// CreateFontResult assigns the next id and appends the result. Scores must
// lie in [0,100] and the user and font must exist, as in the SQL schema.
func (r *MemoryRepository) CreateFontResult(ctx context.Context, in NewFontResult) (*FontResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkScores(in); err != nil {
		return nil, fmt.Errorf("create font result: %w", err)
	}

	// users and fonts are never deleted, so the checks stay valid once made
	r.userMu.RLock()
	_, userOK := r.users[in.UserID]
	r.userMu.RUnlock()
	if !userOK {
		return nil, fmt.Errorf("create font result: user %d: %w", in.UserID, ErrConstraint)
	}

	r.fontMu.RLock()
	_, fontOK := r.fontNames[in.FontName]
	r.fontMu.RUnlock()
	if !fontOK {
		return nil, fmt.Errorf("create font result: font %q: %w", in.FontName, ErrConstraint)
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	r.resultMu.Lock()
	defer r.resultMu.Unlock()

	result := &FontResult{
		ID:              r.nextResult,
		UserID:          in.UserID,
		FontName:        in.FontName,
		MatchPercentage: in.MatchPercentage,
		ShapeMatch:      in.ShapeMatch,
		SlopeMatch:      in.SlopeMatch,
		ScaleMatch:      in.ScaleMatch,
		FluencyMatch:    in.FluencyMatch,
		ImageURL:        in.ImageURL,
		CreatedAt:       createdAt,
	}
	r.nextResult++
	r.results[result.ID] = result
	r.resultOrder = append(r.resultOrder, result.ID)

	fr := *result
	return &fr, nil
}

// CountFontResults returns the total number of stored results
func (r *MemoryRepository) CountFontResults(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.resultMu.RLock()
	defer r.resultMu.RUnlock()

	return len(r.resultOrder), nil
}

func (r *MemoryRepository) filterResults(ctx context.Context, keep func(*FontResult) bool) ([]FontResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.resultMu.RLock()
	defer r.resultMu.RUnlock()

	out := []FontResult{}
	for _, id := range r.resultOrder {
		if fr := r.results[id]; keep(fr) {
			out = append(out, *fr)
		}
	}
	return out, nil
}
