package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/support_desk/internal/events"
	"github.com/Skotchmaster/support_desk/internal/handlers"
	"github.com/Skotchmaster/support_desk/internal/hash"
	"github.com/Skotchmaster/support_desk/internal/middleware"
	"github.com/Skotchmaster/support_desk/internal/models"
	"github.com/Skotchmaster/support_desk/internal/realtime"
	"github.com/Skotchmaster/support_desk/internal/repo"
	"github.com/Skotchmaster/support_desk/internal/service"
	"github.com/Skotchmaster/support_desk/internal/tokens"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every in-memory connection is its own database, so pin the pool to one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Ticket{}, &models.Message{}, &models.RevokedToken{}))

	engine, err := tokens.NewEngine([]byte("test-secret"), "HS256")
	require.NoError(t, err)

	r := &repo.GormRepo{DB: db}
	authSvc := &service.AuthService{
		Repo:       r,
		Tokens:     engine,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
	ticketSvc := &service.TicketService{Repo: r, Strategy: service.StrategyRoundRobin}
	producer := events.NewProducer(nil)
	hub := realtime.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := echo.New()
	e.Validator = handlers.NewValidator()

	Register(e, &Deps{
		AuthHandler:   &handlers.AuthHandler{Svc: authSvc, Producer: producer},
		TicketHandler: &handlers.TicketHandler{Svc: ticketSvc, Producer: producer},
		ChatHandler: &handlers.ChatHandler{
			Auth:    authSvc,
			Tickets: ticketSvc,
			Hub:     hub,
		},
		Auth: middleware.NewAuth(authSvc),
	})

	return &testEnv{T: t, E: e, DB: db}
}

func (env *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) signupAndLogin(email, password string) service.TokenPair {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": "Integration Test Person",
	})
	require.Equal(env.T, http.StatusCreated, rec.Code, rec.Body.String())

	return env.login(email, password)
}

func (env *testEnv) login(email, password string) service.TokenPair {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	var pair service.TokenPair
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(env.T, pair.AccessToken)
	require.NotEmpty(env.T, pair.RefreshToken)
	return pair
}

// seedCSR creates an active CSR directly in the database and logs them in.
func (env *testEnv) seedCSR(email string) (models.User, service.TokenPair) {
	env.T.Helper()

	hashed, err := hash.HashPassword("csr-password")
	require.NoError(env.T, err)
	csr := models.User{
		Email:        email,
		FullName:     "Seeded Support Agent",
		PasswordHash: hashed,
		Role:         models.RoleCSR,
		IsActive:     true,
	}
	require.NoError(env.T, env.DB.Create(&csr).Error)

	return csr, env.login(email, "csr-password")
}

func (env *testEnv) createTicket(token, title string) models.Ticket {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/v1/user/tickets", token, map[string]string{
		"title":       title,
		"description": "Something is broken",
		"category":    "general",
		"type":        "issue",
	})
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	var ticket models.Ticket
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

func TestSignupLoginAndDuplicate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "password123",
		"full_name": "Alice Integration Tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	dup := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "password123",
		"full_name": "Alice Integration Tester",
	})
	require.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Contains(t, dup.Body.String(), "User already registered")

	short := env.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     "bob@example.com",
		"password":  "short",
		"full_name": "Bob Integration Tester",
	})
	require.Equal(t, http.StatusBadRequest, short.Code)

	env.login("alice@example.com", "password123")

	wrong := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Contains(t, wrong.Body.String(), "Invalid credentials")
}

func TestRefreshRotationAndLogout(t *testing.T) {
	env := newTestEnv(t)
	pair := env.signupAndLogin("carol@example.com", "password123")

	rec := env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var next service.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.NotEmpty(t, next.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the rotated-out refresh token is dead
	replay := env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, replay.Code)

	// access tokens never work on the refresh path
	access := env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": next.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, access.Code)

	logout := env.do(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": next.RefreshToken,
	})
	require.Equal(t, http.StatusOK, logout.Code)
	assert.Contains(t, logout.Body.String(), "Successfully logged out")

	// logging out twice with the same token succeeds quietly
	again := env.do(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": next.RefreshToken,
	})
	require.Equal(t, http.StatusOK, again.Code)

	dead := env.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": next.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, dead.Code)

	garbage := env.do(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": "not-a-jwt",
	})
	require.Equal(t, http.StatusBadRequest, garbage.Code)
	assert.Contains(t, garbage.Body.String(), "Invalid refresh token format")

	// logout only kills the refresh token; the access token still authenticates
	list := env.do(http.MethodGet, "/api/v1/user/tickets", next.AccessToken, nil)
	require.Equal(t, http.StatusOK, list.Code)
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	env := newTestEnv(t)

	missing := env.do(http.MethodGet, "/api/v1/user/tickets", "", nil)
	require.Equal(t, http.StatusUnauthorized, missing.Code)

	garbage := env.do(http.MethodGet, "/api/v1/user/tickets", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, garbage.Code)

	pair := env.signupAndLogin("dave@example.com", "password123")
	forbidden := env.do(http.MethodGet, "/api/v1/csr/tickets", pair.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestUserTicketEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signupAndLogin("alice@example.com", "password123")
	bob := env.signupAndLogin("bob@example.com", "password123")

	ticket := env.createTicket(alice.AccessToken, "Printer on fire")
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Nil(t, ticket.Priority)
	assert.Nil(t, ticket.AssignedToID)

	list := env.do(http.MethodGet, "/api/v1/user/tickets", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var mine []models.Ticket
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, ticket.ID, mine[0].ID)

	empty := env.do(http.MethodGet, "/api/v1/user/tickets", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, empty.Code)
	var theirs []models.Ticket
	require.NoError(t, json.Unmarshal(empty.Body.Bytes(), &theirs))
	assert.Empty(t, theirs)

	own := env.do(http.MethodGet, "/api/v1/user/tickets/"+ticket.ID.String(), alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, own.Code)

	// another user's ticket reads as not found, not forbidden
	hidden := env.do(http.MethodGet, "/api/v1/user/tickets/"+ticket.ID.String(), bob.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, hidden.Code)
	assert.Contains(t, hidden.Body.String(), "Ticket not found")

	bad := env.do(http.MethodGet, "/api/v1/user/tickets/not-a-uuid", alice.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCSRTicketEndpoints(t *testing.T) {
	env := newTestEnv(t)
	csr, csrPair := env.seedCSR("agent@example.com")
	alice := env.signupAndLogin("alice@example.com", "password123")

	ticket := env.createTicket(alice.AccessToken, "Needs attention")
	require.NotNil(t, ticket.AssignedToID)
	assert.Equal(t, csr.ID, *ticket.AssignedToID)

	list := env.do(http.MethodGet, "/api/v1/csr/tickets", csrPair.AccessToken, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var all []models.Ticket
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &all))
	require.Len(t, all, 1)

	unassigned := env.do(http.MethodGet, "/api/v1/csr/tickets?unassigned=true", csrPair.AccessToken, nil)
	require.Equal(t, http.StatusOK, unassigned.Code)
	var none []models.Ticket
	require.NoError(t, json.Unmarshal(unassigned.Body.Bytes(), &none))
	assert.Empty(t, none)

	assign := env.do(http.MethodPost, "/api/v1/csr/tickets/"+ticket.ID.String()+"/assign", csrPair.AccessToken, map[string]any{
		"assignee_id": csr.ID,
		"priority":    "high",
	})
	require.Equal(t, http.StatusOK, assign.Code, assign.Body.String())
	var assigned models.Ticket
	require.NoError(t, json.Unmarshal(assign.Body.Bytes(), &assigned))
	require.NotNil(t, assigned.Priority)
	assert.Equal(t, models.PriorityHigh, *assigned.Priority)

	missing := env.do(http.MethodPost, "/api/v1/csr/tickets/"+uuid.NewString()+"/assign", csrPair.AccessToken, map[string]any{
		"assignee_id": csr.ID,
	})
	require.Equal(t, http.StatusNotFound, missing.Code)

	badStatus := env.do(http.MethodPatch, "/api/v1/csr/tickets/"+ticket.ID.String(), csrPair.AccessToken, map[string]string{
		"status": "escalated",
	})
	require.Equal(t, http.StatusBadRequest, badStatus.Code)

	resolved := env.do(http.MethodPatch, "/api/v1/csr/tickets/"+ticket.ID.String(), csrPair.AccessToken, map[string]string{
		"status": models.StatusResolved,
	})
	require.Equal(t, http.StatusOK, resolved.Code)
	var updated models.Ticket
	require.NoError(t, json.Unmarshal(resolved.Body.Bytes(), &updated))
	assert.Equal(t, models.StatusResolved, updated.Status)
}

type chatFrame struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func dialChat(t *testing.T, base string, ticketID uuid.UUID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := fmt.Sprintf("%s/ws/tickets/%s?token=%s", strings.Replace(base, "http", "ws", 1), ticketID, token)
	return websocket.DefaultDialer.Dial(url, nil)
}

func readFrame(t *testing.T, conn *websocket.Conn) chatFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame chatFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestChatWebSocket(t *testing.T) {
	env := newTestEnv(t)
	csr, csrPair := env.seedCSR("agent@example.com")
	owner := env.signupAndLogin("owner@example.com", "password123")
	stranger := env.signupAndLogin("stranger@example.com", "password123")

	ticket := env.createTicket(owner.AccessToken, "Chat about this")
	require.NotNil(t, ticket.AssignedToID)
	require.Equal(t, csr.ID, *ticket.AssignedToID)

	srv := httptest.NewServer(env.E)
	defer srv.Close()

	// refused before any message exchange
	_, resp, err := dialChat(t, srv.URL, ticket.ID, stranger.AccessToken)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dialChat(t, srv.URL, ticket.ID, "garbage")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dialChat(t, srv.URL, uuid.New(), owner.AccessToken)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ownerConn, _, err := dialChat(t, srv.URL, ticket.ID, owner.AccessToken)
	require.NoError(t, err)
	defer ownerConn.Close()

	csrConn, _, err := dialChat(t, srv.URL, ticket.ID, csrPair.AccessToken)
	require.NoError(t, err)
	defer csrConn.Close()

	require.NoError(t, ownerConn.WriteJSON(map[string]any{
		"ticket_id": ticket.ID,
		"content":   "hello, anyone there?",
	}))

	// both peers receive the frame, the sender included
	for _, conn := range []*websocket.Conn{ownerConn, csrConn} {
		frame := readFrame(t, conn)
		assert.Equal(t, ticket.ID, frame.TicketID)
		assert.Equal(t, "hello, anyone there?", frame.Content)
		assert.False(t, frame.Timestamp.IsZero())
	}

	require.NoError(t, csrConn.WriteJSON(map[string]any{
		"ticket_id": ticket.ID,
		"content":   "yes, looking into it",
	}))

	reply := readFrame(t, ownerConn)
	assert.Equal(t, csr.ID, reply.SenderID)
	assert.Equal(t, "yes, looking into it", reply.Content)

	csrEcho := readFrame(t, csrConn)
	assert.Equal(t, "yes, looking into it", csrEcho.Content)

	// a frame addressed to a different ticket is dropped, never persisted
	require.NoError(t, ownerConn.WriteJSON(map[string]any{
		"ticket_id": uuid.New(),
		"content":   "wrong room",
	}))
	require.NoError(t, ownerConn.WriteJSON(map[string]any{
		"ticket_id": ticket.ID,
		"content":   "back on topic",
	}))

	follow := readFrame(t, csrConn)
	assert.Equal(t, "back on topic", follow.Content)

	// persisted alongside the broadcast
	var stored []models.Message
	require.NoError(t, env.DB.Where("ticket_id = ?", ticket.ID).Order("created_at ASC").Find(&stored).Error)
	require.Len(t, stored, 3)
	assert.Equal(t, "hello, anyone there?", stored[0].Content)
	assert.Equal(t, csr.ID, stored[1].SenderID)
	assert.Equal(t, "back on topic", stored[2].Content)

	var wrong int64
	require.NoError(t, env.DB.Model(&models.Message{}).Where("content = ?", "wrong room").Count(&wrong).Error)
	assert.Zero(t, wrong)
}
