package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
)

func newAPITestRouter(api *API) *gin.Engine {
	router := newTestRouter(&stubHTMLRender{})
	router.POST("/api/auth/token", api.IssueToken)
	group := router.Group("/api", api.APIScopeRequired())
	group.GET("/habits", api.ListHabits)
	group.POST("/habits", api.CreateHabit)
	group.GET("/habits/:id", api.GetHabit)
	group.DELETE("/habits/:id", api.DeleteHabit)
	group.POST("/habits/:id/toggle", api.ToggleHabitAPI)
	group.GET("/habits/:id/logs", api.ListHabitLogs)
	group.GET("/habits/:id/stats", api.HabitStats)
	return router
}

func doJSON(router *gin.Engine, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, target, &payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func registerAndIssueToken(t *testing.T, api *API, router *gin.Engine, username string) string {
	t.Helper()
	if _, err := api.accounts.Register(service.RegisterInput{
		Username:        username,
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	rr := doJSON(router, http.MethodPost, "/api/auth/token", "", map[string]string{
		"username": username,
		"password": "s3cret-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected token, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("invalid token response: %s", rr.Body.String())
	}
	return body.Token
}

func TestAPIRequiresAuthentication(t *testing.T) {
	gdb := setupHandlerTestDB(t)
	api := newTestAPI(gdb, false)
	router := newAPITestRouter(api)

	if rr := doJSON(router, http.MethodGet, "/api/habits", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodGet, "/api/habits", "garbage", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}

	rr := doJSON(router, http.MethodPost, "/api/auth/token", "", map[string]string{"username": "nobody", "password": "whatever1"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rr.Code)
	}
}

func TestAPIHabitLifecycle(t *testing.T) {
	gdb := setupHandlerTestDB(t)
	api := newTestAPI(gdb, false)
	router := newAPITestRouter(api)
	token := registerAndIssueToken(t, api, router, "alice")

	rr := doJSON(router, http.MethodPost, "/api/habits", token, map[string]string{"name": "Reading"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created habitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.Name != "Reading" || created.Anonymous {
		t.Fatalf("unexpected habit: %+v", created)
	}

	if rr := doJSON(router, http.MethodPost, "/api/habits", token, map[string]string{"name": " reading "}); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodPost, "/api/habits", token, map[string]string{"name": "  "}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rr.Code)
	}

	toggle := fmt.Sprintf("/api/habits/%d/toggle", created.ID)
	for _, date := range []string{"2024-05-06", "2024-05-07"} {
		if rr := doJSON(router, http.MethodPost, toggle, token, map[string]string{"date": date}); rr.Code != http.StatusOK {
			t.Fatalf("toggle %s: expected 200, got %d", date, rr.Code)
		}
	}

	// 不带 body 时默认为今天
	rr = doJSON(router, http.MethodPost, toggle, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for default date, got %d", rr.Code)
	}
	var toggled struct {
		Date   string `json:"date"`
		Done   bool   `json:"done"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("invalid toggle response: %v", err)
	}
	if toggled.Date != "2024-05-08" || !toggled.Done || toggled.Result != "created" {
		t.Fatalf("unexpected toggle response: %+v", toggled)
	}

	if rr := doJSON(router, http.MethodPost, toggle, token, map[string]string{"date": "2024-05-09"}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for future date, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodPost, toggle, token, map[string]string{"date": "05/08/2024"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rr.Code)
	}

	rr = doJSON(router, http.MethodGet, fmt.Sprintf("/api/habits/%d/logs", created.ID), token, nil)
	var logs struct {
		Dates []string `json:"dates"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &logs); err != nil {
		t.Fatalf("invalid logs response: %v", err)
	}
	if len(logs.Dates) != 3 || logs.Dates[0] != "2024-05-08" || logs.Dates[2] != "2024-05-06" {
		t.Fatalf("unexpected logs: %v", logs.Dates)
	}

	rr = doJSON(router, http.MethodGet, fmt.Sprintf("/api/habits/%d/stats", created.ID), token, nil)
	var summary struct {
		CurrentStreak     int     `json:"current_streak"`
		LongestStreak     int     `json:"longest_streak"`
		TotalCompletions  int     `json:"total_completions"`
		WeeklyConsistency float64 `json:"weekly_consistency"`
		Today             string  `json:"today"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid stats response: %v", err)
	}
	if summary.CurrentStreak != 3 || summary.LongestStreak != 3 || summary.TotalCompletions != 3 ||
		summary.WeeklyConsistency != 100 || summary.Today != "2024-05-08" {
		t.Fatalf("unexpected stats: %+v", summary)
	}

	if rr := doJSON(router, http.MethodDelete, fmt.Sprintf("/api/habits/%d", created.ID), token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodGet, fmt.Sprintf("/api/habits/%d", created.ID), token, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestAPIHidesOtherUsersHabits(t *testing.T) {
	gdb := setupHandlerTestDB(t)
	api := newTestAPI(gdb, true)
	router := newAPITestRouter(api)
	aliceToken := registerAndIssueToken(t, api, router, "alice")
	bobToken := registerAndIssueToken(t, api, router, "bob")

	rr := doJSON(router, http.MethodPost, "/api/habits", aliceToken, map[string]string{"name": "Reading"})
	var created habitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}

	for _, target := range []string{
		fmt.Sprintf("/api/habits/%d", created.ID),
		fmt.Sprintf("/api/habits/%d/logs", created.ID),
		fmt.Sprintf("/api/habits/%d/stats", created.ID),
	} {
		if rr := doJSON(router, http.MethodGet, target, bobToken, nil); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 for foreign habit, got %d", target, rr.Code)
		}
	}

	// 匿名分区与个人分区互不可见，同名习惯可以共存
	rr = doJSON(router, http.MethodGet, "/api/habits", "", nil)
	var listed struct {
		Habits []habitResponse `json:"habits"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if len(listed.Habits) != 0 {
		t.Fatalf("expected empty anonymous list, got %+v", listed.Habits)
	}
	if rr := doJSON(router, http.MethodPost, "/api/habits", "", map[string]string{"name": "Reading"}); rr.Code != http.StatusCreated {
		t.Fatalf("expected anonymous create to succeed, got %d", rr.Code)
	}

	habits, err := api.habits.List(db.Anonymous())
	if err != nil || len(habits) != 1 || habits[0].UserID != nil {
		t.Fatalf("unexpected anonymous habits: %+v %v", habits, err)
	}
}
