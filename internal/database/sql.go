package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const fontResultColumns = `id, user_id, font_name, match_percentage, shape_match, slope_match,
	scale_match, fluency_match, image_url, created_at`

// SQLRepository stores everything in a relational database through sqlx
type SQLRepository struct {
	db *DB
}

// NewSQLRepository creates a repository backed by db
func NewSQLRepository(db *DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Backend reports the SQL dialect in use
func (r *SQLRepository) Backend() string {
	return "sql/" + string(r.db.Dialect())
}

// GetStats reports the connection pool for the metrics endpoint
func (r *SQLRepository) GetStats() map[string]interface{} {
	stats := r.db.GetPoolStats()
	stats["dialect"] = string(r.db.Dialect())
	return stats
}

// Close closes the underlying connection pool
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// GetUser looks a user up by id
func (r *SQLRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, wrapQueryErr("get user", err)
	}
	return &user, nil
}

// GetUserByUsername looks a user up by exact username
func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`), username)
	if err != nil {
		return nil, wrapQueryErr("get user by username", err)
	}
	return &user, nil
}

// CreateUser inserts a user; a taken username yields ErrConflict
func (r *SQLRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	user := &User{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := r.db.QueryRowxContext(ctx, r.db.Rebind(
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
		user.Username, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return nil, wrapWriteErr("create user", err)
	}
	return user, nil
}

// GetAllFonts returns the catalog in insertion order
func (r *SQLRepository) GetAllFonts(ctx context.Context) ([]Font, error) {
	fonts := []Font{}
	err := r.db.SelectContext(ctx, &fonts,
		`SELECT id, name, class_name, sample_title, sample_text, image_path FROM fonts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list fonts: %w", err)
	}
	return fonts, nil
}

// GetFontByName looks a font up by exact, case-sensitive name
func (r *SQLRepository) GetFontByName(ctx context.Context, name string) (*Font, error) {
	var font Font
	err := r.db.GetContext(ctx, &font, r.db.Rebind(
		`SELECT id, name, class_name, sample_title, sample_text, image_path FROM fonts WHERE name = ?`), name)
	if err != nil {
		return nil, wrapQueryErr("get font", err)
	}
	return &font, nil
}

// CreateFont inserts a catalog entry; a taken name yields ErrConflict
func (r *SQLRepository) CreateFont(ctx context.Context, in NewFont) (*Font, error) {
	font := &Font{
		Name:        in.Name,
		ClassName:   in.ClassName,
		SampleTitle: in.SampleTitle,
		SampleText:  in.SampleText,
		ImagePath:   in.ImagePath,
	}

	err := r.db.QueryRowxContext(ctx, r.db.Rebind(
		`INSERT INTO fonts (name, class_name, sample_title, sample_text, image_path)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		font.Name, font.ClassName, font.SampleTitle, font.SampleText, font.ImagePath).Scan(&font.ID)
	if err != nil {
		return nil, wrapWriteErr("create font", err)
	}
	return font, nil
}

// GetFontResults returns a user's results in insertion order
func (r *SQLRepository) GetFontResults(ctx context.Context, userID int64) ([]FontResult, error) {
	results := []FontResult{}
	err := r.db.SelectContext(ctx, &results, r.db.Rebind(
		`SELECT `+fontResultColumns+` FROM font_results WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list font results: %w", err)
	}
	return results, nil
}

// GetFontResultsByFont returns a user's results for one font in insertion order
func (r *SQLRepository) GetFontResultsByFont(ctx context.Context, userID int64, fontName string) ([]FontResult, error) {
	results := []FontResult{}
	err := r.db.SelectContext(ctx, &results, r.db.Rebind(
		`SELECT `+fontResultColumns+` FROM font_results WHERE user_id = ? AND font_name = ? ORDER BY id`),
		userID, fontName)
	if err != nil {
		return nil, fmt.Errorf("list font results by font: %w", err)
	}
	return results, nil
}

// GetBestFontResult returns the highest composite result, earliest on ties
func (r *SQLRepository) GetBestFontResult(ctx context.Context, userID int64, fontName string) (*FontResult, error) {
	var result FontResult
	err := r.db.GetContext(ctx, &result, r.db.Rebind(
		`SELECT `+fontResultColumns+` FROM font_results
		 WHERE user_id = ? AND font_name = ?
		 ORDER BY match_percentage DESC, id ASC LIMIT 1`), userID, fontName)
	if err != nil {
		return nil, wrapQueryErr("get best font result", err)
	}
	return &result, nil
}

// CreateFontResult appends a scored attempt
func (r *SQLRepository) CreateFontResult(ctx context.Context, in NewFontResult) (*FontResult, error) {
	if err := checkScores(in); err != nil {
		return nil, fmt.Errorf("create font result: %w", err)
	}

	result := &FontResult{
		UserID:          in.UserID,
		FontName:        in.FontName,
		MatchPercentage: in.MatchPercentage,
		ShapeMatch:      in.ShapeMatch,
		SlopeMatch:      in.SlopeMatch,
		ScaleMatch:      in.ScaleMatch,
		FluencyMatch:    in.FluencyMatch,
		ImageURL:        in.ImageURL,
		CreatedAt:       in.CreatedAt,
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, r.db.Rebind(
		`INSERT INTO font_results (user_id, font_name, match_percentage, shape_match, slope_match,
			scale_match, fluency_match, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		result.UserID, result.FontName, result.MatchPercentage, result.ShapeMatch, result.SlopeMatch,
		result.ScaleMatch, result.FluencyMatch, result.ImageURL, result.CreatedAt).Scan(&result.ID)
	if err != nil {
		return nil, wrapWriteErr("create font result", err)
	}
	return result, nil
}

// CountFontResults returns the total number of stored results
func (r *SQLRepository) CountFontResults(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM font_results`); err != nil {
		return 0, fmt.Errorf("count font results: %w", err)
	}
	return n, nil
}

func wrapQueryErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapWriteErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrConstraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isConstraintViolation matches foreign key and check failures
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" || pgErr.Code == "23514"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}
