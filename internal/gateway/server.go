// Package gateway is the analysis gateway: it accepts snapshots from capture
// agents, runs an analyzer, and forwards the verdict to the review store on
// the developer's behalf with the service credential.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Prathameshworks247/AGILITY/internal/apierr"
	"github.com/Prathameshworks247/AGILITY/internal/delivery"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/session"
)

const (
	defaultForwardTimeout  = 15 * time.Second
	DefaultAnalysisTimeout = 90 * time.Second
)

// Forwarder posts the finished review to the store. *delivery.Client
// satisfies it.
type Forwarder interface {
	SendInto(ctx context.Context, endpoint string, payload any, credential string, out any) (delivery.Ack, error)
}

type Config struct {
	Analyzer Analyzer
	// ReviewsURL is the store's review creation endpoint, for example
	// http://127.0.0.1:8080/v0/reviews.
	ReviewsURL    string
	ServiceSecret string
	// JWTSecret, when set, requires callers to present a valid session.
	JWTSecret      string
	Forwarder      Forwarder
	ForwardTimeout time.Duration
	// AnalysisTimeout bounds one analysis. Analysis and forward outlive the
	// inbound request.
	AnalysisTimeout time.Duration
	BasePath       string
	Logger         *slog.Logger
	Now            func() time.Time
}

// SnapshotRequest mirrors domain.Snapshot with every field optional so that
// missing values get a 400 from the handler.
type SnapshotRequest struct {
	_           struct{}       `json:"-" additionalProperties:"true"`
	TaskID      string         `json:"taskId,omitempty"`
	DeveloperID string         `json:"developerId,omitempty"`
	LanguageID  string         `json:"languageId,omitempty"`
	FilePath    string         `json:"filePath,omitempty"`
	Content     string         `json:"content,omitempty"`
	Diff        *string        `json:"diff,omitempty"`
	Branch      *string        `json:"branch,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Source      string         `json:"source,omitempty"`
	SentAt      string         `json:"sentAt,omitempty"`
}

func (r SnapshotRequest) snapshot() domain.Snapshot {
	return domain.Snapshot{
		TaskID:      strings.TrimSpace(r.TaskID),
		DeveloperID: strings.TrimSpace(r.DeveloperID),
		LanguageID:  r.LanguageID,
		FilePath:    r.FilePath,
		Content:     r.Content,
		Diff:        r.Diff,
		Branch:      r.Branch,
		Metadata:    r.Metadata,
		Source:      r.Source,
		SentAt:      r.SentAt,
	}
}

// Ack is returned to the capture agent.
type Ack struct {
	AcknowledgementID string         `json:"acknowledgementId"`
	ReceivedAt        string         `json:"receivedAt"`
	Message           string         `json:"message"`
	Status            domain.Verdict `json:"status"`
	Summary           string         `json:"summary"`
	Stored            bool           `json:"stored"`
	ReviewID          string         `json:"reviewId,omitempty"`
}

type reviewCreate struct {
	TaskID      string          `json:"taskId"`
	Status      domain.Verdict  `json:"status"`
	Summary     string          `json:"summary"`
	Findings    domain.Findings `json:"findings"`
	DeveloperID string          `json:"developerId"`
}

type sessionKey struct{}

type gateway struct {
	cfg Config
}

// New returns the gateway HTTP handler.
func New(cfg Config) (http.Handler, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if strings.TrimSpace(cfg.ReviewsURL) == "" {
		return nil, errors.New("reviews url is required")
	}
	if cfg.Forwarder == nil {
		cfg.Forwarder = delivery.New("analysis-gateway", defaultForwardTimeout)
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = defaultForwardTimeout
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	apierr.Install()

	g := &gateway{cfg: cfg}
	router := chi.NewRouter()
	router.Use(g.sessionMiddleware(basePath))
	hcfg := huma.DefaultConfig("AGILITY Analysis Gateway", "0.1.0")
	hcfg.DocsPath = ""
	hcfg.OpenAPIPath = path.Join(basePath, "openapi")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	huma.Register(group, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok", "analyzer": cfg.Analyzer.Name()}}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "submit-snapshot",
		Method:      http.MethodPost,
		Path:        "/snapshots",
		Summary:     "Analyze a snapshot and record the review",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body SnapshotRequest `json:"body"`
	}) (*struct {
		Body Ack `json:"body"`
	}, error) {
		ack, err := g.handleSnapshot(ctx, input.Body.snapshot())
		if err != nil {
			return nil, err
		}
		return &struct {
			Body Ack `json:"body"`
		}{Body: ack}, nil
	})

	return router, nil
}

func (g *gateway) sessionMiddleware(basePath string) func(http.Handler) http.Handler {
	health := path.Join(basePath, "health")
	openapi := path.Join(basePath, "openapi")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			secret := strings.TrimSpace(g.cfg.JWTSecret)
			if secret == "" || req.URL.Path == health || strings.HasPrefix(req.URL.Path, openapi) {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := session.BearerToken(req.Header.Get("Authorization"))
			if !ok {
				apierr.Write(w, apierr.New(http.StatusUnauthorized, "authentication required"))
				return
			}
			claims, err := session.Parse(token, secret)
			if err != nil {
				apierr.Write(w, apierr.New(http.StatusUnauthorized, "invalid session"))
				return
			}
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), sessionKey{}, claims.Subject)))
		})
	}
}

func sessionUser(ctx context.Context) string {
	s, _ := ctx.Value(sessionKey{}).(string)
	return s
}

func (g *gateway) handleSnapshot(ctx context.Context, snap domain.Snapshot) (Ack, error) {
	if snap.TaskID == "" {
		return Ack{}, apierr.New(http.StatusBadRequest, "taskId is required")
	}
	if snap.Content == "" {
		return Ack{}, apierr.New(http.StatusBadRequest, "content is required")
	}
	logger := g.cfg.Logger.With("task_id", snap.TaskID, "path", snap.FilePath, "source", snap.Source)
	receivedAt := g.cfg.Now().UTC()

	// The capture agent may hang up before the answer is ready; analysis and
	// the store write still run to completion.
	detached := context.WithoutCancel(ctx)
	actx, cancelAnalysis := context.WithTimeout(detached, g.cfg.AnalysisTimeout)
	defer cancelAnalysis()
	analysis, err := g.cfg.Analyzer.Analyze(actx, snap)
	if err != nil {
		logger.Error("analysis failed", "analyzer", g.cfg.Analyzer.Name(), "error", err)
		return Ack{}, apierr.New(http.StatusBadGateway, "analysis failed")
	}
	ack := Ack{
		AcknowledgementID: uuid.NewString(),
		ReceivedAt:        receivedAt.Format(time.RFC3339Nano),
		Status:            analysis.Status,
		Summary:           analysis.Summary,
	}

	developer := snap.DeveloperID
	if developer == "" {
		developer = sessionUser(ctx)
	}
	if developer == "" {
		logger.Error("review not stored", "reason", "no developer id on snapshot or session")
		ack.Message = "analysis complete; review not stored"
		return ack, nil
	}

	fctx, cancel := context.WithTimeout(detached, g.cfg.ForwardTimeout)
	defer cancel()
	var stored domain.Review
	_, err = g.cfg.Forwarder.SendInto(fctx, g.cfg.ReviewsURL, reviewCreate{
		TaskID:      snap.TaskID,
		Status:      analysis.Status,
		Summary:     analysis.Summary,
		Findings:    analysis.Findings,
		DeveloperID: developer,
	}, delivery.Bearer(g.cfg.ServiceSecret), &stored)
	if err != nil {
		attrs := []any{"developer_id", developer, "error", err}
		var de *delivery.DeliveryError
		if errors.As(err, &de) {
			attrs = append(attrs, "status", de.StatusCode)
		}
		logger.Error("review forward failed", attrs...)
		ack.Message = "analysis complete; review not stored"
		return ack, nil
	}
	logger.Info("review forwarded", "developer_id", developer, "review_id", stored.ID, "status", analysis.Status)
	ack.Stored = true
	ack.ReviewID = stored.ID
	ack.Message = "analysis complete; review stored"
	return ack, nil
}
