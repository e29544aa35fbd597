package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/scriptmatch/internal/analysis"
	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
	"github.com/ZanzyTHEbar/scriptmatch/internal/security"
	"github.com/ZanzyTHEbar/scriptmatch/internal/types"
)

// Messages reported for internal failures of each endpoint
const (
	msgFetchFonts    = "Failed to fetch fonts"
	msgAnalyze       = "Failed to analyze image"
	msgFetchProgress = "Failed to fetch progress"
	msgFetchResults  = "Failed to fetch results"
	msgRegister      = "Failed to register user"
	msgLogin         = "Failed to log in"
)

// redisPingTimeout bounds the Redis check inside /health
const redisPingTimeout = 2 * time.Second

// HealthChecker is an optional dependency reported by /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// multipartOverhead is the body allowance on top of the image limit for
// form fields and part headers
const multipartOverhead = 64 << 10

// Handler serves the HTTP API
type Handler struct {
	repo       database.Repository
	analyzer   *analysis.Analyzer
	progress   *analysis.Progress
	users      *database.UserService
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger
	redis      HealthChecker
	scorerName string
	maxImage   int64
}

// Deps are the collaborators a Handler needs
type Deps struct {
	Repo          database.Repository
	Analyzer      *analysis.Analyzer
	Progress      *analysis.Progress
	Users         *database.UserService
	Metrics       *monitoring.Metrics
	Logger        *monitoring.Logger
	ScorerName    string
	MaxImageBytes int64
	// Redis is pinged by /health when set
	Redis HealthChecker
}

// New creates a Handler
func New(d Deps) *Handler {
	return &Handler{
		repo:       d.Repo,
		analyzer:   d.Analyzer,
		progress:   d.Progress,
		users:      d.Users,
		metrics:    d.Metrics,
		logger:     d.Logger,
		redis:      d.Redis,
		scorerName: d.ScorerName,
		maxImage:   d.MaxImageBytes,
	}
}

// GetFonts godoc
// @Summary      List practice fonts
// @Tags         fonts
// @Produce      json
// @Success      200  {array}   database.Font
// @Failure      500  {object}  map[string]string
// @Router       /api/fonts [get]
func (h *Handler) GetFonts(c *gin.Context) {
	fonts, err := h.repo.GetAllFonts(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, apperrors.NewPersistenceError("failed to list fonts", err), msgFetchFonts)
		return
	}
	c.JSON(http.StatusOK, fonts)
}

// Analyze godoc
// @Summary      Score a handwriting sample against a font
// @Tags         analysis
// @Accept       multipart/form-data
// @Produce      json
// @Param        image     formData  file    true   "JPEG or PNG photo, at most 5 MiB"
// @Param        fontName  formData  string  true   "Font name from /api/fonts"
// @Param        userId    formData  int     false  "User id, defaults to the session or default user"
// @Success      200  {object}  types.AnalyzeResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      413  {object}  map[string]string
// @Failure      415  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImage+multipartOverhead)

	in, err := h.readAnalyzeInput(c)
	if err != nil {
		h.metrics.IncrementAnalysisFailure()
		apperrors.Respond(c, err, msgAnalyze)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), in)
	if err != nil {
		h.metrics.IncrementAnalysisFailure()
		if apperrors.Is(err, apperrors.CategoryScorerTimeout) || apperrors.Is(err, apperrors.CategoryScorerContract) {
			h.metrics.IncrementScorerFailure()
		}
		apperrors.Respond(c, err, msgAnalyze)
		return
	}

	h.metrics.IncrementAnalysis()
	h.logger.AnalysisLogger(result.FontName, result.UserID, len(in.Image), result.MatchPercentage, time.Since(start))

	c.JSON(http.StatusOK, types.AnalyzeResponse{
		MatchPercentage: result.MatchPercentage,
		ShapeMatch:      result.ShapeMatch,
		SlopeMatch:      result.SlopeMatch,
		ScaleMatch:      result.ScaleMatch,
		FluencyMatch:    result.FluencyMatch,
	})
}

// readAnalyzeInput extracts the upload and form fields. A missing image is
// passed on empty so the analyzer reports it in order.
func (h *Handler) readAnalyzeInput(c *gin.Context) (analysis.AnalyzeInput, error) {
	var in analysis.AnalyzeInput

	file, header, err := c.Request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		// one byte past the limit is enough for the analyzer to reject it
		in.Image, err = io.ReadAll(io.LimitReader(file, h.maxImage+1))
		if err != nil {
			return in, apperrors.ToAppError(err)
		}
		in.ContentType = header.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile):
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return in, apperrors.NewPayloadTooLargeError(maxBytesErr.Limit+1, h.maxImage)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return in, apperrors.NewValidationError("Request must be multipart/form-data", err.Error())
		}
		return in, apperrors.NewValidationError("Malformed upload", err.Error())
	}

	in.FontName = c.PostForm("fontName")

	if raw := strings.TrimSpace(c.PostForm("userId")); raw != "" {
		id, err := parseUserID(raw)
		if err != nil {
			return in, err
		}
		in.UserID = &id
	} else if id, ok := security.SessionUser(c); ok {
		in.UserID = &id
	}

	return in, nil
}

// GetProgress godoc
// @Summary      Best score per font for a user
// @Tags         progress
// @Produce      json
// @Param        userId  path  int  true  "User id"
// @Success      200  {array}   types.ProgressEntry
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/user/{userId}/progress [get]
func (h *Handler) GetProgress(c *gin.Context) {
	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		apperrors.Respond(c, err, msgFetchProgress)
		return
	}

	entries, err := h.progress.GetProgress(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err, msgFetchProgress)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetResults godoc
// @Summary      A user's past attempts
// @Tags         progress
// @Produce      json
// @Param        userId    path   int     true   "User id"
// @Param        fontName  query  string  false  "Only results for this font"
// @Success      200  {array}   types.HistoryEntry
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/user/{userId}/results [get]
func (h *Handler) GetResults(c *gin.Context) {
	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		apperrors.Respond(c, err, msgFetchResults)
		return
	}

	history, err := h.progress.GetHistory(c.Request.Context(), userID, strings.TrimSpace(c.Query("fontName")))
	if err != nil {
		apperrors.Respond(c, err, msgFetchResults)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Register godoc
// @Summary      Create an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body  types.CredentialsRequest  true  "Credentials"
// @Success      201  {object}  types.RegisterResponse
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req types.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid JSON body", err.Error()), msgRegister)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperrors.Respond(c, err, msgRegister)
		return
	}

	c.JSON(http.StatusCreated, types.RegisterResponse{UserID: user.ID, Username: user.Username})
}

// Login godoc
// @Summary      Exchange credentials for a session token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body  types.CredentialsRequest  true  "Credentials"
// @Success      200  {object}  types.LoginResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req types.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid JSON body", err.Error()), msgLogin)
		return
	}

	user, token, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperrors.Respond(c, err, msgLogin)
		return
	}

	c.JSON(http.StatusOK, types.LoginResponse{UserID: user.ID, Username: user.Username, Token: token})
}

// Health godoc
// @Summary      Liveness, repository and Redis check
// @Tags         ops
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.HealthResponse
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := types.HealthResponse{
		Status:     "ok",
		Repository: h.repo.Backend(),
		Scorer:     h.scorerName,
	}

	count, err := h.repo.CountFontResults(c.Request.Context())
	if err != nil {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.ResultCount = count

	// the limiter falls back to memory without Redis, so a failed ping
	// degrades the report but keeps the service in rotation
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), redisPingTimeout)
		defer cancel()

		resp.Redis = "ok"
		if err := h.redis.HealthCheck(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			resp.Redis = "unavailable"
			resp.Status = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.NewValidationError("Invalid user ID", raw)
	}
	return id, nil
}
