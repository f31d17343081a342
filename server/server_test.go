package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Luismorlan/birdnest/notification"
	"github.com/Luismorlan/birdnest/utils"
	"github.com/Luismorlan/birdnest/utils/dotenv"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	server := NewServer(db, notification.NewService(db, nil))
	router := gin.New()
	server.RegisterRoutes(router)
	return router
}

// do issues a request as userId, the way the JWT middleware would stamp it.
func do(t *testing.T, router *gin.Engine, method string, path string, userId string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userId != "" {
		req.Header.Set("sub", userId)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &parsed))
	return parsed
}

func registerUser(t *testing.T, router *gin.Engine, id string, username string) {
	t.Helper()
	recorder := do(t, router, http.MethodPost, "/users", id, map[string]string{
		"id":       id,
		"username": username,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
}

func TestCreateUserIsIdempotentOnId(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "user_a", "alice")

	recorder := do(t, router, http.MethodPost, "/users", "user_a", map[string]string{
		"id":       "user_a",
		"username": "someone-else",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "alice", decode(t, recorder)["username"])

	recorder = do(t, router, http.MethodPost, "/users", "", map[string]string{"id": "user_b"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestFollowFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "user_a", "alice")
	registerUser(t, router, "user_b", "bob")

	recorder := do(t, router, http.MethodPost, "/follow", "user_a", map[string]interface{}{
		"target_id":    "user_b",
		"is_following": false,
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decode(t, recorder)
	require.Equal(t, true, body["new_status"])
	require.Equal(t, float64(1), body["follower_count"])

	recorder = do(t, router, http.MethodGet, "/users/user_b/follow_status", "user_a", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, true, decode(t, recorder)["is_following"])

	// The target got exactly one follow notification.
	recorder = do(t, router, http.MethodGet, "/notifications/unread_count", "user_b", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, float64(1), decode(t, recorder)["unread_count"])

	// Self follow and unknown target map to 400 and 404.
	recorder = do(t, router, http.MethodPost, "/follow", "user_a", map[string]interface{}{
		"target_id": "user_a",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	recorder = do(t, router, http.MethodPost, "/follow", "user_a", map[string]interface{}{
		"target_id": "ghost",
	})
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestPostInteractionFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "user_a", "alice")
	registerUser(t, router, "user_b", "bob")

	recorder := do(t, router, http.MethodPost, "/posts", "user_a", map[string]interface{}{
		"content":  "First sighting of the season",
		"hashtags": []string{"spring"},
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	postId := decode(t, recorder)["id"].(string)

	require.Equal(t, http.StatusNoContent,
		do(t, router, http.MethodPost, "/posts/"+postId+"/like", "user_b", nil).Code)
	// Duplicate like is a conflict, the counter does not move.
	require.Equal(t, http.StatusConflict,
		do(t, router, http.MethodPost, "/posts/"+postId+"/like", "user_b", nil).Code)
	// No identity at all is unauthorized.
	require.Equal(t, http.StatusUnauthorized,
		do(t, router, http.MethodPost, "/posts/"+postId+"/save", "", nil).Code)

	recorder = do(t, router, http.MethodGet, "/posts/"+postId, "user_b", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, float64(1), decode(t, recorder)["like_count"])

	require.Equal(t, http.StatusNoContent,
		do(t, router, http.MethodPost, "/posts/"+postId+"/share", "user_b", map[string]string{"share_type": "repost"}).Code)
	require.Equal(t, http.StatusNotFound,
		do(t, router, http.MethodPost, "/posts/no-such-post/like", "user_b", nil).Code)
}

func TestHistoryFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "user_a", "alice")

	payload := map[string]interface{}{
		"subject":   map[string]interface{}{"bird_name": "Blue Jay", "family": "Corvidae"},
		"view_kind": "search",
	}
	recorder := do(t, router, http.MethodPost, "/history", "user_a", payload)
	require.Equal(t, http.StatusCreated, recorder.Code)
	recorder = do(t, router, http.MethodPost, "/history", "user_a", payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = do(t, router, http.MethodGet, "/history", "user_a", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	entries := decode(t, recorder)["history"].([]interface{})
	require.Len(t, entries, 1)

	recorder = do(t, router, http.MethodGet, "/history/stats", "user_a", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, float64(1), decode(t, recorder)["total_birds"])

	require.Equal(t, http.StatusNoContent,
		do(t, router, http.MethodDelete, "/history/blue-jay", "user_a", nil).Code)
	recorder = do(t, router, http.MethodDelete, "/history", "user_a", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, float64(0), decode(t, recorder)["deleted_count"])
}
