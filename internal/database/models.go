package database

import (
	"time"
)

// User is an account that owns scoring results
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Font is one entry of the handwriting style catalog
type Font struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	ClassName   string `json:"className" db:"class_name"`
	SampleTitle string `json:"sampleTitle" db:"sample_title"`
	SampleText  string `json:"sampleText" db:"sample_text"`
	ImagePath   string `json:"imagePath" db:"image_path"`
}

// FontResult is one scored attempt. Records are append-only.
type FontResult struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"userId" db:"user_id"`
	FontName        string    `json:"fontName" db:"font_name"`
	MatchPercentage int       `json:"matchPercentage" db:"match_percentage"`
	ShapeMatch      int       `json:"shapeMatch" db:"shape_match"`
	SlopeMatch      int       `json:"slopeMatch" db:"slope_match"`
	ScaleMatch      int       `json:"scaleMatch" db:"scale_match"`
	FluencyMatch    int       `json:"fluencyMatch" db:"fluency_match"`
	ImageURL        string    `json:"imageUrl" db:"image_url"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// NewUser holds the fields needed to create a user
type NewUser struct {
	Username     string
	PasswordHash string
}

// NewFont holds the fields needed to create a font
type NewFont struct {
	Name        string
	ClassName   string
	SampleTitle string
	SampleText  string
	ImagePath   string
}

// NewFontResult holds the fields needed to record a scored attempt
type NewFontResult struct {
	UserID          int64
	FontName        string
	MatchPercentage int
	ShapeMatch      int
	SlopeMatch      int
	ScaleMatch      int
	FluencyMatch    int
	ImageURL        string
	CreatedAt       time.Time
}
