package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/scriptmatch/internal/analysis"
	"github.com/ZanzyTHEbar/scriptmatch/internal/auth"
	"github.com/ZanzyTHEbar/scriptmatch/internal/cache"
	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
	"github.com/ZanzyTHEbar/scriptmatch/internal/ratelimit"
	"github.com/ZanzyTHEbar/scriptmatch/internal/security"
	"github.com/ZanzyTHEbar/scriptmatch/internal/storage"
	"github.com/ZanzyTHEbar/scriptmatch/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fastArgon = auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type serverOptions struct {
	wrap   func(*database.MemoryRepository) database.Repository
	scorer analysis.Scorer
	opts   analysis.Options
	limit  int
	redis  HealthChecker
}

type testServer struct {
	router  *gin.Engine
	repo    *database.MemoryRepository
	metrics *monitoring.Metrics
}

func newTestServer(t *testing.T, configure ...func(*serverOptions)) *testServer {
	t.Helper()

	so := serverOptions{
		scorer: analysis.NewRandomScorer(rand.New(rand.NewSource(1))),
		opts:   analysis.DefaultOptions(),
	}
	for _, fn := range configure {
		fn(&so)
	}

	mem := database.NewMemoryRepository()
	require.NoError(t, database.Seed(context.Background(), mem, database.DefaultUser{
		ID: 1, Username: "default", Password: "default-password",
	}))

	var repo database.Repository = mem
	if so.wrap != nil {
		repo = so.wrap(mem)
	}

	uploads := t.TempDir()
	images, err := storage.NewDiskStore(uploads)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLoggerTo(io.Discard, slog.LevelError)
	users := database.NewUserService(repo, auth.NewTokenIssuer("test-secret", time.Hour)).WithParams(fastArgon)

	h := New(Deps{
		Repo:          repo,
		Analyzer:      analysis.NewAnalyzer(repo, so.scorer, images, so.opts),
		Progress:      analysis.NewProgress(repo),
		Users:         users,
		Metrics:       metrics,
		Logger:        logger,
		ScorerName:    "random",
		MaxImageBytes: so.opts.MaxImageBytes,
		Redis:         so.redis,
	})

	fontCache := cache.NewCache(time.Minute)
	t.Cleanup(fontCache.Stop)

	stats := map[string]monitoring.StatsSource{}
	var limiter *ratelimit.RateLimiter
	if so.limit > 0 {
		limiter = ratelimit.NewRateLimiter(nil, ratelimit.Config{AnalyzePerMin: so.limit, CleanupInterval: time.Hour}, metrics)
		t.Cleanup(limiter.Close)
		stats["rate_limiter"] = limiter
	}

	router := NewRouter(RouterConfig{
		Handler:    h,
		Limiter:    limiter,
		FontCache:  fontCache,
		Metrics:    metrics,
		Logger:     logger,
		Stats:      stats,
		Security:   security.DefaultSecurityConfig(),
		Sessions:   users,
		UploadsDir: uploads,
	})

	return &testServer{router: router, repo: mem, metrics: metrics}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.0.2.1:4000"
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) postJSON(path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) resultCount(t *testing.T) int {
	t.Helper()
	n, err := s.repo.CountFontResults(context.Background())
	require.NoError(t, err)
	return n
}

type upload struct {
	image       []byte
	contentType string
	fields      map[string]string
	token       string
}

func analyzeRequest(t *testing.T, u upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if u.image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="sample.jpg"`)
		ct := u.contentType
		if ct == "" {
			ct = "image/jpeg"
		}
		header.Set("Content-Type", ct)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(u.image)
		require.NoError(t, err)
	}
	for k, v := range u.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	return req
}

// sampleJPEG draws a small line of dark strokes on paper
func sampleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			c := color.RGBA{R: 240, G: 236, B: 228, A: 255}
			if y == 30+(x/9)%4 && x > 8 && x < 112 {
				c = color.RGBA{R: 25, G: 25, B: 50, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}))
	return buf.Bytes()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestGetFonts(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/api/fonts")
	require.Equal(t, http.StatusOK, w.Code)

	var fonts []database.Font
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fonts))
	require.Len(t, fonts, 5)
	for i, want := range database.Catalog {
		assert.Equal(t, want.Name, fonts[i].Name)
		assert.Equal(t, want.ClassName, fonts[i].ClassName)
		assert.Equal(t, want.ImagePath, fonts[i].ImagePath)
	}

	again := s.get("/api/fonts")
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, w.Body.String(), again.Body.String())

	// every sample image resolves
	for _, f := range fonts {
		assert.Equal(t, http.StatusOK, s.get(f.ImagePath).Code, f.ImagePath)
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	s := newTestServer(t)
	img := sampleJPEG(t)
	require.Less(t, len(img), 5<<10)

	w := s.do(analyzeRequest(t, upload{image: img, fields: map[string]string{"fontName": "Pacifico"}}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Len(t, raw, 5)
	for _, key := range []string{"matchPercentage", "shapeMatch", "slopeMatch", "scaleMatch", "fluencyMatch"} {
		v, ok := raw[key]
		require.True(t, ok, key)
		assert.True(t, v >= 0 && v <= 100, "%s=%d", key, v)
	}

	p := s.get("/api/user/1/progress")
	require.Equal(t, http.StatusOK, p.Code)
	var progress []types.ProgressEntry
	require.NoError(t, json.Unmarshal(p.Body.Bytes(), &progress))
	require.Len(t, progress, 5)
	for _, e := range progress {
		if e.FontName == "Pacifico" {
			assert.Equal(t, raw["matchPercentage"], e.BestScore)
		} else {
			assert.Zero(t, e.BestScore, e.FontName)
		}
	}

	r := s.get("/api/user/1/results?fontName=Pacifico")
	require.Equal(t, http.StatusOK, r.Code)
	var history []types.HistoryEntry
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.True(t, strings.HasPrefix(history[0].ImageURL, storage.URLPrefix+"/results/"))

	stored := s.get(history[0].ImageURL)
	assert.Equal(t, http.StatusOK, stored.Code)
	assert.Equal(t, "image/png", stored.Header().Get("Content-Type"))

	assert.Equal(t, int64(1), s.metrics.AnalysisCount)
}

func TestAnalyzeRejections(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

	tests := []struct {
		name           string
		upload         func(t *testing.T) upload
		expectedStatus int
		message        string
	}{
		{
			name:           "no image",
			upload:         func(t *testing.T) upload { return upload{fields: map[string]string{"fontName": "Pacifico"}} },
			expectedStatus: http.StatusBadRequest,
			message:        "No image file provided",
		},
		{
			name:           "no font name",
			upload:         func(t *testing.T) upload { return upload{image: sampleJPEG(t)} },
			expectedStatus: http.StatusBadRequest,
			message:        "Font name is required",
		},
		{
			name: "unknown font",
			upload: func(t *testing.T) upload {
				return upload{image: sampleJPEG(t), fields: map[string]string{"fontName": "Comic Sans"}}
			},
			expectedStatus: http.StatusNotFound,
			message:        "Font not found",
		},
		{
			name: "gif",
			upload: func(t *testing.T) upload {
				return upload{image: gif, contentType: "image/gif", fields: map[string]string{"fontName": "Pacifico"}}
			},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "image over limit",
			upload: func(t *testing.T) upload {
				return upload{image: make([]byte, 5<<20+1), fields: map[string]string{"fontName": "Pacifico"}}
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "body over limit",
			upload: func(t *testing.T) upload {
				return upload{image: make([]byte, 6<<20), fields: map[string]string{"fontName": "Pacifico"}}
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "non numeric user id",
			upload: func(t *testing.T) upload {
				return upload{image: sampleJPEG(t), fields: map[string]string{"fontName": "Pacifico", "userId": "abc"}}
			},
			expectedStatus: http.StatusBadRequest,
			message:        "Invalid user ID",
		},
		{
			name: "unknown user",
			upload: func(t *testing.T) upload {
				return upload{image: sampleJPEG(t), fields: map[string]string{"fontName": "Pacifico", "userId": "99"}}
			},
			expectedStatus: http.StatusNotFound,
			message:        "User not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(analyzeRequest(t, tt.upload(t)))

			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			body := decodeError(t, w)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
			assert.Zero(t, s.resultCount(t))
			assert.Equal(t, int64(1), s.metrics.AnalysisFailures)
		})
	}
}

func TestAnalyzeNotMultipart(t *testing.T) {
	s := newTestServer(t)
	w := s.postJSON("/api/analyze", map[string]string{"fontName": "Pacifico"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, s.resultCount(t))
}

func TestAnalyzeInternalFailureIsGeneric(t *testing.T) {
	s := newTestServer(t, func(o *serverOptions) {
		o.opts.ScorerTimeout = 10 * time.Millisecond
		o.scorer = analysis.ScorerFunc(func(ctx context.Context, _ *image.Gray, _ database.Font) (analysis.Scores, error) {
			<-ctx.Done()
			return analysis.Scores{}, ctx.Err()
		})
	})

	w := s.do(analyzeRequest(t, upload{image: sampleJPEG(t), fields: map[string]string{"fontName": "Caveat"}}))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, "Failed to analyze image", body["message"])
	assert.NotContains(t, w.Body.String(), "scorer did not finish")
	assert.Zero(t, s.resultCount(t))
	assert.Equal(t, int64(1), s.metrics.ScorerFailures)
}

func TestAnalyzeWithSession(t *testing.T) {
	s := newTestServer(t)

	reg := s.postJSON("/api/register", types.CredentialsRequest{Username: "ayse", Password: "kalem123"})
	require.Equal(t, http.StatusCreated, reg.Code, reg.Body.String())
	var registered types.RegisterResponse
	require.NoError(t, json.Unmarshal(reg.Body.Bytes(), &registered))
	assert.Equal(t, int64(2), registered.UserID)

	login := s.postJSON("/api/login", types.CredentialsRequest{Username: "ayse", Password: "kalem123"})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	var session types.LoginResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	w := s.do(analyzeRequest(t, upload{
		image:  sampleJPEG(t),
		fields: map[string]string{"fontName": "Indie Flower"},
		token:  session.Token,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	mine, err := s.repo.GetFontResults(context.Background(), registered.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	defaults, err := s.repo.GetFontResults(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, defaults)

	bad := s.do(analyzeRequest(t, upload{
		image:  sampleJPEG(t),
		fields: map[string]string{"fontName": "Indie Flower"},
		token:  "not-a-token",
	}))
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestRegisterAndLoginErrors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		s.postJSON("/api/register", types.CredentialsRequest{Username: "mehmet", Password: "pw"}).Code)

	tests := []struct {
		name           string
		path           string
		body           types.CredentialsRequest
		expectedStatus int
	}{
		{"duplicate username", "/api/register", types.CredentialsRequest{Username: "mehmet", Password: "other"}, http.StatusConflict},
		{"missing password", "/api/register", types.CredentialsRequest{Username: "zeynep"}, http.StatusBadRequest},
		{"wrong password", "/api/login", types.CredentialsRequest{Username: "mehmet", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", "/api/login", types.CredentialsRequest{Username: "ghost", Password: "pw"}, http.StatusUnauthorized},
		{"seeded default user", "/api/login", types.CredentialsRequest{Username: "default", Password: "default-password"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postJSON(tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("username=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnsupportedMediaType, s.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestGetProgressErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		message        string
	}{
		{"non numeric", "/api/user/abc/progress", http.StatusBadRequest, "Invalid user ID"},
		{"zero", "/api/user/0/progress", http.StatusBadRequest, "Invalid user ID"},
		{"unknown", "/api/user/404/progress", http.StatusNotFound, "User not found"},
		{"results unknown font", "/api/user/1/results?fontName=Wingdings", http.StatusNotFound, "Font not found"},
		{"results invalid user", "/api/user/x/results", http.StatusBadRequest, "Invalid user ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.get(tt.path)
			require.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w)["message"])
		})
	}
}

// brokenRepo fails the read paths behind fonts and progress
type brokenRepo struct {
	*database.MemoryRepository
}

var errDiskGone = errors.New("database disk image is malformed")

func (b brokenRepo) GetAllFonts(ctx context.Context) ([]database.Font, error) {
	return nil, errDiskGone
}

func (b brokenRepo) CountFontResults(ctx context.Context) (int, error) {
	return 0, errDiskGone
}

func TestRepositoryFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t, func(o *serverOptions) {
		o.wrap = func(m *database.MemoryRepository) database.Repository { return brokenRepo{m} }
	})

	fonts := s.get("/api/fonts")
	require.Equal(t, http.StatusInternalServerError, fonts.Code)
	assert.Equal(t, "Failed to fetch fonts", decodeError(t, fonts)["message"])
	assert.NotContains(t, fonts.Body.String(), "malformed")

	progress := s.get("/api/user/1/progress")
	require.Equal(t, http.StatusInternalServerError, progress.Code)
	assert.Equal(t, "Failed to fetch progress", decodeError(t, progress)["message"])

	health := s.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, health.Code)
}

func TestAnalyzeRateLimited(t *testing.T) {
	s := newTestServer(t, func(o *serverOptions) { o.limit = 1 })
	img := sampleJPEG(t)

	first := s.do(analyzeRequest(t, upload{image: img, fields: map[string]string{"fontName": "Caveat"}}))
	require.Equal(t, http.StatusOK, first.Code)

	second := s.do(analyzeRequest(t, upload{image: img, fields: map[string]string{"fontName": "Caveat"}}))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, 1, s.resultCount(t))
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	health := s.get("/health")
	require.Equal(t, http.StatusOK, health.Code)
	var h types.HealthResponse
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &h))
	assert.Equal(t, types.HealthResponse{Status: "ok", Repository: "memory", Scorer: "random"}, h)

	metrics := s.get("/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "total_requests")

	doc := s.get("/swagger/doc.json")
	require.Equal(t, http.StatusOK, doc.Code)
	assert.Contains(t, doc.Body.String(), "/api/analyze")

	missing := s.get("/api/nothing")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "not_found", decodeError(t, missing)["category"])

	assert.NotEmpty(t, health.Header().Get(monitoring.RequestIDHeader))
	assert.Equal(t, "nosniff", health.Header().Get("X-Content-Type-Options"))
}

type fakeRedis struct{ err error }

func (f fakeRedis) HealthCheck(ctx context.Context) error { return f.err }

func TestHealthReportsRedis(t *testing.T) {
	tests := []struct {
		name       string
		redis      HealthChecker
		wantStatus string
		wantRedis  string
	}{
		{"not configured", nil, "ok", ""},
		{"reachable", fakeRedis{}, "ok", "ok"},
		{"unreachable", fakeRedis{err: errors.New("dial tcp: connection refused")}, "degraded", "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(o *serverOptions) { o.redis = tt.redis })

			w := s.get("/health")
			require.Equal(t, http.StatusOK, w.Code)

			var h types.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
			assert.Equal(t, tt.wantStatus, h.Status)
			assert.Equal(t, tt.wantRedis, h.Redis)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestMetricsIncludesRateLimiter(t *testing.T) {
	s := newTestServer(t, func(o *serverOptions) { o.limit = 5 })

	w := s.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "rate_limiter")
	limiter := body["rate_limiter"].(map[string]interface{})
	assert.EqualValues(t, 5, limiter["analyze_per_min"])
	assert.Equal(t, false, limiter["redis_enabled"])
}
