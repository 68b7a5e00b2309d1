package ogmsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal OG Missions HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Mission represents the API mission model (partial).
type Mission struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	AuthorID        int64  `json:"author_id"`
	Difficulty      int    `json:"difficulty"`
	DifficultyLabel string `json:"difficulty_label"`
	Status          string `json:"status"`
	DeadlineTs      *int64 `json:"deadline_ts,omitempty"`
	ReminderStage   string `json:"reminder_stage,omitempty"`
	ExtensionCount  int    `json:"extension_count"`
	CreatedAt       int64  `json:"created_at"`
	ClosedAt        *int64 `json:"closed_at,omitempty"`
}

// Assignment links a mission to one assignee.
type Assignment struct {
	ID         int64   `json:"id"`
	MissionID  int64   `json:"mission_id"`
	AssigneeID int64   `json:"assignee_id"`
	Status     string  `json:"status"`
	ReportJSON *string `json:"report_json,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	DoneAt     *int64  `json:"done_at,omitempty"`
}

// MissionSummary pairs a mission with its assignments.
type MissionSummary struct {
	Mission     Mission      `json:"mission"`
	Assignments []Assignment `json:"assignments"`
}

// User represents the API user model (partial).
type User struct {
	ID      int64  `json:"id"`
	Handle  string `json:"handle"`
	Name    string `json:"name"`
	Karma   int    `json:"karma"`
	Rank    string `json:"rank"`
	IsAdmin bool   `json:"is_admin"`
}

// Profile is a user with rank progress, active missions and recent karma.
type Profile struct {
	User          User         `json:"user"`
	NextRank      string       `json:"next_rank,omitempty"`
	NextRankNeeds int          `json:"next_rank_needs,omitempty"`
	Active        []Mission    `json:"active_missions"`
	History       []KarmaEntry `json:"karma_history"`
}

// KarmaEntry is one ledger line.
type KarmaEntry struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}

// Estimate is the dry-run output of the difficulty estimator.
type Estimate struct {
	Category     string `json:"category"`
	Difficulty   int    `json:"difficulty"`
	Label        string `json:"label"`
	BaseReward   int    `json:"base_reward"`
	UrgencyBonus int    `json:"urgency_bonus"`
	TotalReward  int    `json:"total_reward"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// CreateMission creates a mission for the given assignees. A zero difficulty
// lets the server-side estimator decide.
func (c *Client) CreateMission(ctx context.Context, title, description string, assigneeIDs []int64, deadline string, difficulty int) (Mission, error) {
	body := map[string]any{
		"title":        title,
		"description":  description,
		"assignee_ids": assigneeIDs,
	}
	if deadline != "" {
		body["deadline"] = deadline
	}
	if difficulty > 0 {
		body["difficulty"] = difficulty
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, "v0/missions", body, &resp)
	return resp, err
}

// CreateMissionFromText creates a mission from free text, running the
// server-side validity gate and estimator.
func (c *Client) CreateMissionFromText(ctx context.Context, text string, assigneeIDs []int64) (Mission, error) {
	body := map[string]any{
		"text":         text,
		"assignee_ids": assigneeIDs,
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, "v0/missions/text", body, &resp)
	return resp, err
}

// Mission fetches a mission with its assignments.
func (c *Client) Mission(ctx context.Context, id int64) (MissionSummary, error) {
	var resp MissionSummary
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/missions/%d", id), nil, &resp)
	return resp, err
}

// ActiveMissions returns the caller's missions still in flight.
func (c *Client) ActiveMissions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "v0/missions/active", nil, &resp)
	return resp, err
}

// MissionsPage wraps the paginated mission listing.
type MissionsPage struct {
	Missions []Mission `json:"missions"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
}

// Missions returns one page of missions, newest first.
func (c *Client) Missions(ctx context.Context, page int) (MissionsPage, error) {
	endpoint := "v0/missions"
	if page > 0 {
		endpoint = fmt.Sprintf("%s?page=%d", endpoint, page)
	}
	var resp MissionsPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TransitionOptions carries the optional parameters of a lifecycle event.
type TransitionOptions struct {
	Days        int            `json:"days,omitempty"`
	Report      map[string]any `json:"report,omitempty"`
	WithPenalty bool           `json:"with_penalty,omitempty"`
}

// Transition applies a lifecycle event to a mission. Valid events are
// accept, decline, report, approve, rework, postpone, cancel, cancel_admin
// and overdue.
func (c *Client) Transition(ctx context.Context, missionID int64, event string, opts TransitionOptions) (Mission, error) {
	body := map[string]any{"event": event}
	if opts.Days > 0 {
		body["days"] = opts.Days
	}
	if opts.Report != nil {
		body["report"] = opts.Report
	}
	if opts.WithPenalty {
		body["with_penalty"] = true
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/missions/%d/transitions", missionID), body, &resp)
	return resp, err
}

// Accept is shorthand for the accept transition.
func (c *Client) Accept(ctx context.Context, missionID int64) (Mission, error) {
	return c.Transition(ctx, missionID, "accept", TransitionOptions{})
}

// SubmitReport is shorthand for the report transition.
func (c *Client) SubmitReport(ctx context.Context, missionID int64, report map[string]any) (Mission, error) {
	return c.Transition(ctx, missionID, "report", TransitionOptions{Report: report})
}

// Postpone moves the deadline by 1..3 days.
func (c *Client) Postpone(ctx context.Context, missionID int64, days int) (Mission, error) {
	return c.Transition(ctx, missionID, "postpone", TransitionOptions{Days: days})
}

// KarmaHistory returns recent ledger entries for a user.
func (c *Client) KarmaHistory(ctx context.Context, userID int64, limit int) ([]KarmaEntry, error) {
	endpoint := fmt.Sprintf("v0/karma/history/%d", userID)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []KarmaEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Estimate dry-runs the difficulty estimator without creating anything.
func (c *Client) Estimate(ctx context.Context, text string, dueToday bool) (Estimate, error) {
	body := map[string]any{
		"text":      text,
		"due_today": dueToday,
	}
	var resp Estimate
	err := c.do(ctx, http.MethodPost, "v0/estimate", body, &resp)
	return resp, err
}

// Leaderboard returns the top users plus the bottom one.
func (c *Client) Leaderboard(ctx context.Context) (top []User, bottom *User, err error) {
	var resp struct {
		Top    []User `json:"top"`
		Bottom *User  `json:"bottom"`
	}
	err = c.do(ctx, http.MethodGet, "v0/leaderboard", nil, &resp)
	return resp.Top, resp.Bottom, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
