// Package server exposes the read side of the pipeline plus the
// promote gate over HTTP, so reviewers can approve drafts remotely.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"labline/internal/engine"
	"labline/internal/knowledge"
	"labline/internal/registry"
	"labline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"period H1_2022: invalid transition pending -> complete"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope for every endpoint.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the labline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Labline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerPeriods(group, cfg.Engine)
	registerRuns(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, registry.ErrUnknownPeriod), errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyComplete):
		return newAPIError(http.StatusConflict, "already_complete", err.Error(), nil)
	case errors.Is(err, knowledge.ErrNoDraft):
		return newAPIError(http.StatusConflict, "no_draft", err.Error(), nil)
	}
	var transition *registry.InvalidTransitionError
	if errors.As(err, &transition) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"from": string(transition.From),
			"to":   string(transition.To),
		})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPeriods(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-periods",
		Method:      http.MethodGet,
		Path:        "/periods",
		Summary:     "List periods",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PeriodResponse `json:"body"`
	}, error) {
		periods, err := e.Periods(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PeriodResponse `json:"body"`
		}{Body: mapPeriods(periods)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-period",
		Method:      http.MethodGet,
		Path:        "/periods/{name}",
		Summary:     "Get period",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body PeriodResponse `json:"body"`
	}, error) {
		p, err := e.GetPeriod(ctx, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PeriodResponse `json:"body"`
		}{Body: periodResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "promote-period",
		Method:      http.MethodPost,
		Path:        "/periods/{name}/promote",
		Summary:     "Approve a drafted period summary",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body PeriodResponse `json:"body"`
	}, error) {
		p, err := e.Promote(ctx, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PeriodResponse `json:"body"`
		}{Body: periodResponse(p)}, nil
	})
}

func registerRuns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List pipeline runs",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []RunResponse `json:"body"`
	}, error) {
		runs, err := e.Repo.ListRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []RunResponse `json:"body"`
		}{Body: mapRuns(runs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get run with failures",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunDetailResponse `json:"body"`
	}, error) {
		run, err := e.Repo.GetRun(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		failures, err := e.Repo.ListRunFailures(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunDetailResponse `json:"body"`
		}{Body: RunDetailResponse{
			Run:      runResponse(run),
			Failures: mapFailures(failures),
		}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		evts, err := e.Repo.LatestEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(evts)}, nil
	})
}
