// Package server exposes the mission engine over HTTP. Errors leave the
// engine as sentinel values and are mapped to one JSON envelope here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
	"ogmissions/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
	// Metrics enables the /metrics endpoint when true.
	Metrics bool
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"user 7 is not an admin"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the missions API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
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
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("OG Missions API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerLeaderboard(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerKarma(group, cfg.Engine)
	registerEstimate(group, cfg.Engine)
	registerJournal(group, cfg.Engine)
	registerPending(group, cfg.Engine)
	registerAppeals(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics {
		router.Handle("/metrics", promhttp.Handler())
	}

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
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrForbidden):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidArgument):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>OG Missions API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
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

type profileBody struct {
	User          domain.User         `json:"user"`
	NextRank      string              `json:"next_rank,omitempty"`
	NextRankNeeds int                 `json:"next_rank_needs,omitempty"`
	Active        []domain.Mission    `json:"active_missions"`
	History       []domain.KarmaEntry `json:"karma_history"`
}

func registerMe(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Profile of the authenticated user",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body profileBody `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		body, err := buildProfile(ctx, e, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body profileBody `json:"body"`
		}{Body: body}, nil
	})
}

func buildProfile(ctx context.Context, e *engine.Engine, userID int64) (profileBody, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return profileBody{}, err
	}
	active, err := e.ListActive(ctx, userID)
	if err != nil {
		return profileBody{}, err
	}
	history, err := e.Repo.KarmaHistory(ctx, userID, 10)
	if err != nil {
		return profileBody{}, err
	}
	body := profileBody{User: u, Active: active, History: history}
	if needs, name, ok := e.Config.RankTable().NextThreshold(u.Karma); ok {
		body.NextRank = name
		body.NextRankNeeds = needs
	}
	return body, nil
}

func registerUsers(api huma.API, e *engine.Engine) {
	type upsertUserInput struct {
		Body struct {
			ID     int64  `json:"id" minimum:"1"`
			Handle string `json:"handle" minLength:"1"`
			Name   string `json:"name,omitempty"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "user-upsert",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Register or update a user",
	}, func(ctx context.Context, input *upsertUserInput) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// users may register themselves, admins may register anyone
		if input.Body.ID != callerID {
			ok, err := e.Repo.IsAdmin(ctx, callerID)
			if err != nil {
				return nil, handleError(err)
			}
			if !ok {
				return nil, newAPIError(http.StatusForbidden, "forbidden", "only admins may register other users", nil)
			}
		}
		name := input.Body.Name
		if name == "" {
			name = input.Body.Handle
		}
		if err := e.Repo.UpsertUser(ctx, input.Body.ID, input.Body.Handle, name, e.Config.RankTable().Base()); err != nil {
			return nil, handleError(err)
		}
		u, err := e.Repo.GetUser(ctx, input.Body.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	type listUsersInput struct {
		Page    int    `query:"page" default:"1" minimum:"1"`
		Pattern string `query:"pattern"`
	}
	type listUsersBody struct {
		Users []repo.UserStats `json:"users"`
		Total int              `json:"total"`
		Page  int              `json:"page"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "user-list",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users with active mission counts",
	}, func(ctx context.Context, input *listUsersInput) (*struct {
		Body listUsersBody `json:"body"`
	}, error) {
		users, total, err := e.Repo.ListUsersWithStats(ctx, input.Page, e.Config.Missions.UserPageSize, input.Pattern)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body listUsersBody `json:"body"`
		}{Body: listUsersBody{Users: users, Total: total, Page: input.Page}}, nil
	})

	type userPath struct {
		UserID int64 `path:"user_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "user-get",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Profile of a user",
	}, func(ctx context.Context, input *userPath) (*struct {
		Body profileBody `json:"body"`
	}, error) {
		body, err := buildProfile(ctx, e, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body profileBody `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-deactivate",
		Method:      http.MethodDelete,
		Path:        "/users/{user_id}",
		Summary:     "Deactivate a user",
	}, func(ctx context.Context, input *userPath) (*struct{}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if err := e.Repo.SetActive(ctx, input.UserID, false); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	type setAdminInput struct {
		UserID int64 `path:"user_id"`
		Body   struct {
			IsAdmin bool `json:"is_admin"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "user-set-admin",
		Method:      http.MethodPut,
		Path:        "/users/{user_id}/admin",
		Summary:     "Grant or revoke admin rights",
	}, func(ctx context.Context, input *setAdminInput) (*struct{}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if err := e.Repo.SetAdmin(ctx, input.UserID, input.Body.IsAdmin); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLeaderboard(api huma.API, e *engine.Engine) {
	type leaderboardBody struct {
		Top    []domain.User `json:"top"`
		Bottom *domain.User  `json:"bottom,omitempty"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Karma leaderboard",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body leaderboardBody `json:"body"`
	}, error) {
		top, bottom, err := e.Repo.Leaderboard(ctx, 10)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body leaderboardBody `json:"body"`
		}{Body: leaderboardBody{Top: top, Bottom: bottom}}, nil
	})
}

func registerMissions(api huma.API, e *engine.Engine) {
	type createMissionInput struct {
		Body struct {
			Title       string  `json:"title" minLength:"1"`
			Description string  `json:"description,omitempty"`
			AssigneeIDs []int64 `json:"assignee_ids" minItems:"1"`
			DeadlineTs  *int64  `json:"deadline_ts,omitempty"`
			Deadline    string  `json:"deadline,omitempty" doc:"Free-text or DD.MM[.YYYY] deadline, used when deadline_ts is absent"`
			Difficulty  int     `json:"difficulty,omitempty" minimum:"0" maximum:"5" doc:"0 lets the estimator decide"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-create",
		Method:      http.MethodPost,
		Path:        "/missions",
		Summary:     "Create a mission",
	}, func(ctx context.Context, input *createMissionInput) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deadline := input.Body.DeadlineTs
		if deadline == nil && input.Body.Deadline != "" {
			deadline = e.Clock.ParseDate(input.Body.Deadline)
			if deadline == nil {
				deadline = e.Clock.ParseDeadline(input.Body.Deadline)
			}
			if deadline == nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "unparseable deadline", nil)
			}
		}
		m, err := e.CreateMission(ctx, engine.MissionCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			AuthorID:    callerID,
			AssigneeIDs: input.Body.AssigneeIDs,
			DeadlineTs:  deadline,
			Difficulty:  input.Body.Difficulty,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})

	type createFromTextInput struct {
		Body struct {
			Text        string  `json:"text" minLength:"1"`
			AssigneeIDs []int64 `json:"assignee_ids" minItems:"1"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-create-text",
		Method:      http.MethodPost,
		Path:        "/missions/text",
		Summary:     "Create a mission from free text",
		Description: "Runs the validity gate and the difficulty estimator. A rejected text costs the author karma and records an appeal.",
	}, func(ctx context.Context, input *createFromTextInput) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMissionFromText(ctx, callerID, input.Body.Text, input.Body.AssigneeIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})

	type listMissionsInput struct {
		Page int `query:"page" default:"1" minimum:"1"`
	}
	type missionsPageBody struct {
		Missions []domain.Mission `json:"missions"`
		Total    int              `json:"total"`
		Page     int              `json:"page"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-list",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List missions, newest first",
	}, func(ctx context.Context, input *listMissionsInput) (*struct {
		Body missionsPageBody `json:"body"`
	}, error) {
		missions, total, err := e.ListPage(ctx, input.Page)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body missionsPageBody `json:"body"`
		}{Body: missionsPageBody{Missions: missions, Total: total, Page: input.Page}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mission-active",
		Method:      http.MethodGet,
		Path:        "/missions/active",
		Summary:     "Active missions of the authenticated user",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Mission `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		missions, err := e.ListActive(ctx, callerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Mission `json:"body"`
		}{Body: missions}, nil
	})

	type missionPath struct {
		MissionID int64 `path:"mission_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-get",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}",
		Summary:     "Mission with its assignments",
	}, func(ctx context.Context, input *missionPath) (*struct {
		Body engine.MissionSummary `json:"body"`
	}, error) {
		s, err := e.Summary(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.MissionSummary `json:"body"`
		}{Body: s}, nil
	})

	type transitionInput struct {
		MissionID int64 `path:"mission_id"`
		Body      struct {
			Event       string         `json:"event" enum:"accept,decline,report,approve,rework,postpone,cancel,cancel_admin,overdue"`
			Days        int            `json:"days,omitempty" minimum:"0" maximum:"3"`
			Report      map[string]any `json:"report,omitempty"`
			WithPenalty bool           `json:"with_penalty,omitempty"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-transition",
		Method:      http.MethodPost,
		Path:        "/missions/{mission_id}/transitions",
		Summary:     "Apply a lifecycle event",
	}, func(ctx context.Context, input *transitionInput) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Transition(ctx, input.MissionID, input.Body.Event, callerID, engine.TransitionParams{
			Days:        input.Body.Days,
			Report:      input.Body.Report,
			WithPenalty: input.Body.WithPenalty,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})
}

func registerKarma(api huma.API, e *engine.Engine) {
	type adjustInput struct {
		Body struct {
			UserID int64  `json:"user_id" minimum:"1"`
			Delta  int    `json:"delta"`
			Reason string `json:"reason,omitempty"`
		} `json:"body"`
	}
	type balanceBody struct {
		UserID  int64  `json:"user_id"`
		Balance int    `json:"balance"`
		Rank    string `json:"rank"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "karma-adjust",
		Method:      http.MethodPost,
		Path:        "/karma/adjust",
		Summary:     "Manually adjust a user's karma",
	}, func(ctx context.Context, input *adjustInput) (*struct {
		Body balanceBody `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		balance, err := e.AdjustKarma(ctx, callerID, input.Body.UserID, input.Body.Delta, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body balanceBody `json:"body"`
		}{Body: balanceBody{
			UserID:  input.Body.UserID,
			Balance: balance,
			Rank:    e.Config.RankTable().For(balance),
		}}, nil
	})

	type historyInput struct {
		UserID int64 `path:"user_id"`
		Limit  int   `query:"limit" default:"20" minimum:"1" maximum:"100"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "karma-history",
		Method:      http.MethodGet,
		Path:        "/karma/history/{user_id}",
		Summary:     "Recent karma ledger entries of a user",
	}, func(ctx context.Context, input *historyInput) (*struct {
		Body []domain.KarmaEntry `json:"body"`
	}, error) {
		entries, err := e.Repo.KarmaHistory(ctx, input.UserID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.KarmaEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "karma-reset",
		Method:      http.MethodPost,
		Path:        "/karma/reset",
		Summary:     "Reset every karma balance to zero",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ResetKarma(ctx, callerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEstimate(api huma.API, e *engine.Engine) {
	type estimateInput struct {
		Body struct {
			Text     string `json:"text" minLength:"1"`
			DueToday bool   `json:"due_today,omitempty"`
		} `json:"body"`
	}
	type estimateBody struct {
		Category     string `json:"category"`
		Difficulty   int    `json:"difficulty"`
		Label        string `json:"label"`
		BaseReward   int    `json:"base_reward"`
		UrgencyBonus int    `json:"urgency_bonus"`
		TotalReward  int    `json:"total_reward"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "estimate",
		Method:      http.MethodPost,
		Path:        "/estimate",
		Summary:     "Dry-run the difficulty estimator",
	}, func(ctx context.Context, input *estimateInput) (*struct {
		Body estimateBody `json:"body"`
	}, error) {
		if v := e.Estimator.Check(input.Body.Text); !v.Valid {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", v.Violation, nil)
		}
		est := e.Estimator.Estimate(input.Body.Text, input.Body.DueToday)
		return &struct {
			Body estimateBody `json:"body"`
		}{Body: estimateBody{
			Category:     est.Category,
			Difficulty:   est.Difficulty,
			Label:        est.Label,
			BaseReward:   est.BaseReward,
			UrgencyBonus: est.UrgencyBonus,
			TotalReward:  est.TotalReward,
		}}, nil
	})
}

func registerJournal(api huma.API, e *engine.Engine) {
	type journalInput struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"200"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "journal",
		Method:      http.MethodGet,
		Path:        "/journal",
		Summary:     "Recent audit events",
	}, func(ctx context.Context, input *journalInput) (*struct {
		Body []repo.JournalEntry `json:"body"`
	}, error) {
		entries, err := e.Repo.RecentEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []repo.JournalEntry `json:"body"`
		}{Body: entries}, nil
	})

	type missionJournalInput struct {
		MissionID int64 `path:"mission_id"`
		Limit     int   `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "mission-journal",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}/journal",
		Summary:     "Audit events of one mission, oldest first",
	}, func(ctx context.Context, input *missionJournalInput) (*struct {
		Body []repo.JournalEntry `json:"body"`
	}, error) {
		if _, err := e.Repo.GetMission(ctx, input.MissionID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.MissionEvents(ctx, input.MissionID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []repo.JournalEntry `json:"body"`
		}{Body: entries}, nil
	})
}

// registerPending exposes the two-step free-text flows: a client first marks
// what the user's next message means, then delivers that message.
func registerPending(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "pending-get",
		Method:      http.MethodGet,
		Path:        "/pending",
		Summary:     "Awaited input of the authenticated user",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.PendingAction `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.PendingFor(ctx, callerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PendingAction `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-cancel",
		Method:      http.MethodDelete,
		Path:        "/pending",
		Summary:     "Drop the awaited input",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.CancelPending(ctx, callerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	type awaitReportInput struct {
		Body struct {
			MissionID int64 `json:"mission_id" minimum:"1"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "pending-await-report",
		Method:      http.MethodPost,
		Path:        "/pending/report",
		Summary:     "Expect the next text as a mission report",
	}, func(ctx context.Context, input *awaitReportInput) (*struct{}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AwaitReportText(ctx, input.Body.MissionID, callerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-await-task",
		Method:      http.MethodPost,
		Path:        "/pending/task",
		Summary:     "Expect the next text as a new self-assigned mission",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AwaitTaskText(ctx, callerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-await-appeal",
		Method:      http.MethodPost,
		Path:        "/pending/appeal",
		Summary:     "Expect the next text as the plea on the open appeal",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AwaitAppealText(ctx, callerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	type submitTextInput struct {
		Body struct {
			Text string `json:"text" minLength:"1"`
		} `json:"body"`
	}
	type submitTextBody struct {
		Mission *domain.Mission `json:"mission,omitempty"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "pending-submit-text",
		Method:      http.MethodPost,
		Path:        "/pending/text",
		Summary:     "Deliver the awaited free text",
	}, func(ctx context.Context, input *submitTextInput) (*struct {
		Body submitTextBody `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SubmitText(ctx, callerID, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		body := submitTextBody{}
		if m.ID != 0 {
			body.Mission = &m
		}
		return &struct {
			Body submitTextBody `json:"body"`
		}{Body: body}, nil
	})
}

func registerAppeals(api huma.API, e *engine.Engine) {
	type listAppealsInput struct {
		Status string `query:"status" enum:"open,approved,rejected,"`
		Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "appeal-list",
		Method:      http.MethodGet,
		Path:        "/appeals",
		Summary:     "List appeals",
	}, func(ctx context.Context, input *listAppealsInput) (*struct {
		Body []domain.Appeal `json:"body"`
	}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		appeals, err := e.Repo.ListAppeals(ctx, input.Status, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Appeal `json:"body"`
		}{Body: appeals}, nil
	})

	type resolveInput struct {
		AppealID int64 `path:"appeal_id"`
		Body     struct {
			Approve bool `json:"approve"`
		} `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "appeal-resolve",
		Method:      http.MethodPost,
		Path:        "/appeals/{appeal_id}/resolve",
		Summary:     "Resolve an appeal",
		Description: "Approving refunds the penalty that was charged with the appeal.",
	}, func(ctx context.Context, input *resolveInput) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ResolveAppeal(ctx, input.AppealID, callerID, input.Body.Approve)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})
}

func registerAPIKeys(api huma.API, e *engine.Engine) {
	type createKeyInput struct {
		Body struct {
			UserID int64  `json:"user_id" minimum:"1"`
			Name   string `json:"name,omitempty"`
		} `json:"body"`
	}
	type createdKeyBody struct {
		ID  string `json:"id"`
		Key string `json:"key" doc:"Plaintext key, shown only once"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "apikey-create",
		Method:      http.MethodPost,
		Path:        "/apikeys",
		Summary:     "Issue an API key",
	}, func(ctx context.Context, input *createKeyInput) (*struct {
		Body createdKeyBody `json:"body"`
	}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		id, key, err := e.IssueAPIKey(ctx, input.Body.UserID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body createdKeyBody `json:"body"`
		}{Body: createdKeyBody{ID: id, Key: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apikey-list",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		keys, err := e.Repo.ListAPIKeys(ctx, 0)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: keys}, nil
	})

	type keyPath struct {
		KeyID string `path:"key_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "apikey-delete",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{key_id}",
		Summary:     "Revoke an API key",
	}, func(ctx context.Context, input *keyPath) (*struct{}, error) {
		if err := requireAdmin(ctx, e); err != nil {
			return nil, err
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func requireAdmin(ctx context.Context, e *engine.Engine) huma.StatusError {
	callerID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return authErr
	}
	ok, err := e.Repo.IsAdmin(ctx, callerID)
	if err != nil {
		return handleError(err)
	}
	if !ok {
		return newAPIError(http.StatusForbidden, "forbidden", fmt.Sprintf("user %d is not an admin", callerID), nil)
	}
	return nil
}
