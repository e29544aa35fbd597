package types

import "time"

// AnalyzeResponse is returned by POST /api/analyze
type AnalyzeResponse struct {
	MatchPercentage int `json:"matchPercentage"`
	ShapeMatch      int `json:"shapeMatch"`
	SlopeMatch      int `json:"slopeMatch"`
	ScaleMatch      int `json:"scaleMatch"`
	FluencyMatch    int `json:"fluencyMatch"`
}

// ProgressEntry is the best composite score a user reached for one font
type ProgressEntry struct {
	FontName  string `json:"fontName"`
	BestScore int    `json:"bestScore"`
}

// HistoryEntry is one past attempt as listed by the results endpoint
type HistoryEntry struct {
	ID              int64     `json:"id"`
	FontName        string    `json:"fontName"`
	MatchPercentage int       `json:"matchPercentage"`
	ShapeMatch      int       `json:"shapeMatch"`
	SlopeMatch      int       `json:"slopeMatch"`
	ScaleMatch      int       `json:"scaleMatch"`
	FluencyMatch    int       `json:"fluencyMatch"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CredentialsRequest is the body of the register and login endpoints
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token issued on login
type LoginResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// RegisterResponse describes a newly created account
type RegisterResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Repository  string `json:"repository"`
	ResultCount int    `json:"resultCount"`
	Scorer      string `json:"scorer"`
	Redis       string `json:"redis,omitempty"`
}
