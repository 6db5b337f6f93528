// Package server exposes the mutation engine over HTTP: a chi router with
// client IP extraction, request logging, CORS and bearer-token auth, JSON
// request bodies carrying global IDs and responses mirroring the mutation
// result unions.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/gid"
	internalhttp "github.com/domainsec/tracker/internal/http"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/loaders"
	"github.com/domainsec/tracker/internal/mutations"
	"github.com/domainsec/tracker/internal/store"
)

// Server wires the mutation service behind the HTTP surface.
type Server struct {
	svc      *mutations.Service
	loaders  *loaders.Loaders
	verifier *auth.Verifier
	catalog  *i18n.Catalog
	registry *prometheus.Registry
	logger   zerolog.Logger
	origins  []string
}

// New creates a server. origins lists the allowed CORS origins; empty means
// same-origin only.
func New(svc *mutations.Service, l *loaders.Loaders, verifier *auth.Verifier,
	catalog *i18n.Catalog, registry *prometheus.Registry, logger zerolog.Logger,
	origins []string) *Server {
	return &Server{
		svc:      svc,
		loaders:  l,
		verifier: verifier,
		catalog:  catalog,
		registry: registry,
		logger:   logger,
		origins:  origins,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(internalhttp.ClientIPMiddleware())
	r.Use(internalhttp.RequestLogger(s.logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	// Health check endpoint for load balancer
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(pr chi.Router) {
		pr.Use(s.authenticate)
		pr.Post("/v1/mutations/remove-domain", s.handleRemoveDomain)
		pr.Post("/v1/mutations/remove-user", s.handleRemoveUser)
	})

	return r
}

// apiError is one entry of the top-level errors array used for auth and
// infrastructure failures. Business outcomes never appear here; they travel
// inside the mutation's result union.
type apiError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response body")
	}
}

func (s *Server) writeErrors(w http.ResponseWriter, status int, errs ...apiError) {
	s.writeJSON(w, status, errorResponse{Errors: errs})
}

// authenticate resolves the bearer token to a user and stores the user in the
// request context. Requests without a valid token never reach the handlers.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := s.catalog.For(i18n.LangEnglish)

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.writeErrors(w, http.StatusUnauthorized, apiError{
				Code:        http.StatusUnauthorized,
				Description: loc.T("auth.required"),
			})
			return
		}

		userKey, err := s.verifier.Verify(token)
		if err != nil {
			s.writeErrors(w, http.StatusUnauthorized, apiError{
				Code:        http.StatusUnauthorized,
				Description: loc.T("auth.required"),
			})
			return
		}

		user, err := s.loaders.Users.Load(r.Context(), userKey)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				s.writeErrors(w, http.StatusUnauthorized, apiError{
					Code:        http.StatusUnauthorized,
					Description: loc.T("auth.required"),
				})
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Database error while loading authenticated user")
			s.writeErrors(w, http.StatusInternalServerError, apiError{
				Code:        http.StatusInternalServerError,
				Description: loc.T("auth.try_again"),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// mutationError maps errors escaping the orchestrators onto the errors array.
func (s *Server) mutationError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		s.writeErrors(w, authErr.Code, apiError{Code: authErr.Code, Description: authErr.Description})
		return
	}
	// Generic infrastructure errors carry a sanitized localized message; any
	// other escape is a bug but gets the same treatment.
	s.writeErrors(w, http.StatusInternalServerError, apiError{
		Code:        http.StatusInternalServerError,
		Description: err.Error(),
	})
}

// decodeID decodes one global ID field and checks its entity type.
func decodeID(value, entityType string) (id gid.ID, err error) {
	id, err = gid.Parse(value)
	if err != nil {
		return gid.ID{}, err
	}
	if _, err := id.KeyFor(entityType); err != nil {
		return gid.ID{}, err
	}
	return id, nil
}

type removeDomainRequest struct {
	DomainID string `json:"domainId"`
	OrgID    string `json:"orgId"`
}

func (s *Server) handleRemoveDomain(w http.ResponseWriter, r *http.Request) {
	var req removeDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid request body.",
		})
		return
	}

	domainID, err := decodeID(req.DomainID, gid.TypeDomain)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid domain id.",
		})
		return
	}
	orgID, err := decodeID(req.OrgID, gid.TypeOrganization)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid organization id.",
		})
		return
	}

	resp, err := s.svc.RemoveDomain(r.Context(), domainID.Key, orgID.Key)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type removeUserRequest struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	var req removeUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid request body.",
		})
		return
	}

	userID, err := decodeID(req.UserID, gid.TypeUser)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid user id.",
		})
		return
	}
	orgID, err := decodeID(req.OrgID, gid.TypeOrganization)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, apiError{
			Code:        http.StatusBadRequest,
			Description: "Invalid organization id.",
		})
		return
	}

	resp, err := s.svc.RemoveUserFromOrg(r.Context(), userID.Key, orgID.Key)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
