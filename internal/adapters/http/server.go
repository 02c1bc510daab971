package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

// Server exposes the registry over JSON/HTTP.
type Server struct {
	registry ports.Registry
	log      *zap.Logger
}

func New(registry ports.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{registry: registry, log: log}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.getHealthz)
	r.Route("/v1/reports", func(r chi.Router) {
		r.Get("/", s.getReports)
		r.Post("/", s.postReport)
		r.Post("/badge", s.postBadge)
		r.Post("/badged", s.postBadgedReport)
		r.Get("/{address}", s.getReport)
		r.Get("/{address}/badge.json", s.getBadgeDocument)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	var body StoreReportRequest
	if !s.decode(w, r, &body) {
		return
	}
	reporter, err := domain.ParseAddress(body.Reporter)
	if err != nil {
		s.badRequest(w, "reporter", err)
		return
	}
	report, err := s.registry.StoreReport(r.Context(), reporter, body.RepositoryID, body.ReportLocation)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ToReport(report))
}

func (s *Server) postBadge(w http.ResponseWriter, r *http.Request) {
	var body IssueBadgeRequest
	if !s.decode(w, r, &body) {
		return
	}
	reporter, err := domain.ParseAddress(body.Reporter)
	if err != nil {
		s.badRequest(w, "reporter", err)
		return
	}
	report, badge, err := s.registry.IssueBadge(r.Context(), reporter, body.RepositoryID, body.spec())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BadgedReport{Report: ToReport(report), Badge: ToBadge(badge)})
}

func (s *Server) postBadgedReport(w http.ResponseWriter, r *http.Request) {
	var body StoreBadgedReportRequest
	if !s.decode(w, r, &body) {
		return
	}
	reporter, err := domain.ParseAddress(body.Reporter)
	if err != nil {
		s.badRequest(w, "reporter", err)
		return
	}
	report, badge, err := s.registry.StoreReportAndIssueBadge(r.Context(), reporter, body.RepositoryID, body.ReportLocation, body.spec())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BadgedReport{Report: ToReport(report), Badge: ToBadge(badge)})
}

// getReports returns one report when repository_id is given and every report
// of the reporter otherwise.
func (s *Server) getReports(w http.ResponseWriter, r *http.Request) {
	var (
		reporterParam string
		repositoryID  *string
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "reporter", q, &reporterParam); err != nil {
		s.badRequest(w, "reporter", err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "repository_id", q, &repositoryID); err != nil {
		s.badRequest(w, "repository_id", err)
		return
	}
	reporter, err := domain.ParseAddress(reporterParam)
	if err != nil {
		s.badRequest(w, "reporter", err)
		return
	}

	if repositoryID == nil {
		reports, err := s.registry.ListReports(r.Context(), reporter)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out := ReportList{Reports: make([]Report, 0, len(reports))}
		for _, rep := range reports {
			out.Reports = append(out.Reports, ToReport(rep))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	report, found, err := s.registry.GetReport(r.Context(), reporter, *repositoryID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, string(domain.KindNotFound), "no report for this reporter and repository")
		return
	}
	writeJSON(w, http.StatusOK, ToReport(report))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	report, found, err := s.registry.GetReportAt(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, string(domain.KindNotFound), "no report at this address")
		return
	}
	writeJSON(w, http.StatusOK, ToReport(report))
}

func (s *Server) getBadgeDocument(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	doc, err := s.registry.BadgeDocument(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) addressParam(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "address", chi.URLParam(r, "address"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		s.badRequest(w, "address", err)
		return domain.Address{}, false
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		s.badRequest(w, "address", err)
		return domain.Address{}, false
	}
	return addr, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errMissingBody
		}
		s.badRequest(w, "body", err)
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, field string, err error) {
	writeError(w, http.StatusBadRequest, string(domain.KindInvalidArgument), field+": "+err.Error())
}

// fail maps the error kind to a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	writeError(w, status, string(kind), err.Error())
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindCapacityExceeded:
		return http.StatusRequestEntityTooLarge
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: msg})
}

var errMissingBody = errors.New("missing body")
