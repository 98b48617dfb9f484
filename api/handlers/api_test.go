package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/consulthub/consulthub-api/auth"
	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/config"
	"github.com/consulthub/consulthub-api/databases"
	"github.com/consulthub/consulthub-api/databases/mocks"
	"github.com/consulthub/consulthub-api/models"
)

const testSecret = "handlers-secret"

var a App

type profiles map[string]models.Profile

func (p profiles) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	profile, ok := p[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// setupApp wires a running gateway behind the router, the same way Initialize
// does minus the stores
func setupApp(t *testing.T) {
	t.Helper()
	verifier := auth.NewTokenVerifier(testSecret)
	authn := auth.NewAuthenticator(verifier, profiles{"u1": {ID: "u1", Name: "Alice"}})
	gateway := chat.NewGateway(authn, databases.NoopPresence{}, chat.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go gateway.Run(ctx)
	t.Cleanup(cancel)

	a = App{
		Config: config.Config{
			ChatPath:       "/api/chat",
			RequestTimeout: 5 * time.Second,
			JWTSecret:      testSecret,
		},
		Gateway:  gateway,
		Presence: databases.NoopPresence{},
		Verifier: verifier,
	}
	a.Router = a.New()
}

func executeRequest(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func checkResponseCode(t *testing.T, expected, actual int) {
	if expected != actual {
		t.Errorf("Expected response code %d. Got %d\n", expected, actual)
	}
}

func authorized(t *testing.T, method, path string) *http.Request {
	t.Helper()
	token, err := auth.IssueToken(testSecret, "u1", time.Hour)
	require.NoError(t, err)
	req, _ := http.NewRequest(method, path, nil)
	req.Header.Add("Authorization", "Bearer "+token)
	return req
}

func TestUnknownRoute(t *testing.T) {
	setupApp(t)
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	setupApp(t)
	req, _ := http.NewRequest("GET", "/health", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusOK, response.Code)

	if !strings.Contains(response.Body.String(), "alive") {
		t.Errorf("Expected 'alive' in the reponse. Got '%s'", response.Body.String())
	}
	assert.Empty(t, response.Header().Get("X-Request-ID"))
}

func TestHealthCheckPingsDatabase(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		code    int
		body    string
	}{
		{name: "up", code: http.StatusOK, body: `{"alive": true, "database": "up"}`},
		{name: "down", pingErr: errors.New("server selection timeout"), code: http.StatusServiceUnavailable, body: `{"alive": true, "database": "down"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupApp(t)
			client := &mocks.ClientHelper{}
			client.On("Ping", mock.Anything).Return(tt.pingErr)
			db := &mocks.DatabaseHelper{}
			db.On("Client").Return(client)
			a.dbHelper = db

			req, _ := http.NewRequest("GET", "/health", nil)
			response := executeRequest(req)

			checkResponseCode(t, tt.code, response.Code)
			assert.JSONEq(t, tt.body, response.Body.String())
			client.AssertExpectations(t)
		})
	}
}

func TestApp_ChatStatsUnauthorized(t *testing.T) {
	setupApp(t)
	req, _ := http.NewRequest("GET", "/api/v1/chat/stats", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusUnauthorized, response.Code)
	assert.NotEmpty(t, response.Header().Get("X-Request-ID"))
}

func TestApp_ChatStatsInvalidToken(t *testing.T) {
	setupApp(t)
	req, _ := http.NewRequest("GET", "/api/v1/chat/stats", nil)
	req.Header.Add("Authorization", "Bearer asdfasdf")
	response := executeRequest(req)

	checkResponseCode(t, http.StatusUnauthorized, response.Code)

	var m map[string]string
	json.Unmarshal(response.Body.Bytes(), &m)
	assert.Equal(t, "unauthorized", m["error"])
}

func TestApp_ChatStats(t *testing.T) {
	setupApp(t)
	response := executeRequest(authorized(t, "GET", "/api/v1/chat/stats"))

	checkResponseCode(t, http.StatusOK, response.Code)
	var stats models.ChatStats
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &stats))
	assert.Equal(t, models.ChatStats{}, stats)
}

func TestApp_ConsultationRoom(t *testing.T) {
	setupApp(t)
	response := executeRequest(authorized(t, "GET", "/api/v1/chat/consultations/42/room"))

	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"consultationId": "42", "roomId": "consultation_42"}`, response.Body.String())
}

func TestApp_RoomMembersEmpty(t *testing.T) {
	setupApp(t)
	response := executeRequest(authorized(t, "GET", "/api/v1/chat/rooms/consultation_42/members"))

	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"roomId": "consultation_42", "members": []}`, response.Body.String())
}

func TestApp_PresenceOffline(t *testing.T) {
	setupApp(t)
	response := executeRequest(authorized(t, "GET", "/api/v1/chat/presence/u1"))

	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"userId": "u1", "online": false}`, response.Body.String())
}

func TestApp_ChatRouteRequiresUpgrade(t *testing.T) {
	setupApp(t)
	req, _ := http.NewRequest("GET", "/api/chat", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusBadRequest, response.Code)
}

func TestApp_ChatOverRouter(t *testing.T) {
	setupApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	token, err := auth.IssueToken(testSecret, "u1", time.Hour)
	require.NoError(t, err)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat?token=" + url.QueryEscape("Bearer "+token)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	ev, err := chat.DecodeOutbound(frame)
	require.NoError(t, err)
	assert.Equal(t, chat.Authenticated{UserID: "u1", Profile: models.Profile{ID: "u1", Name: "Alice"}}, ev)

	join, err := chat.Encode(chat.JoinRoom{RoomID: "consultation_7"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, join))

	assert.Eventually(t, func() bool {
		response := executeRequest(authorized(t, "GET", "/api/v1/chat/rooms/consultation_7/members"))
		return strings.Contains(response.Body.String(), `"u1"`)
	}, 2*time.Second, 10*time.Millisecond)

	response := executeRequest(authorized(t, "GET", "/api/v1/chat/presence/u1"))
	var presence models.PresenceResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &presence))
	assert.True(t, presence.Online)
	assert.NotEmpty(t, presence.ConnectionID)
}
