package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/auth"
	"github.com/chatterbox-im/chatterbox-server/internal/config"
	"github.com/chatterbox-im/chatterbox-server/internal/core"
	"github.com/chatterbox-im/chatterbox-server/internal/store"
	"github.com/chatterbox-im/chatterbox-server/internal/store/sqlite"
)

type testEnv struct {
	store   store.Store
	auth    *auth.Service
	hub     *core.Hub
	handler stdhttp.Handler
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.HandshakeTimeout = time.Second
	cfg.IdleTimeout = 5 * time.Second
	cfg.PingInterval = time.Second
	return cfg
}

// newTestEnv builds a full server over an in-memory store with the hub
// running until test cleanup.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	disabledLogger := zerolog.New(nil)
	hub := core.NewHub(st, &disabledLogger, false)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, cfg, &disabledLogger)

	return &testEnv{
		store:   st,
		auth:    authService,
		hub:     hub,
		handler: server.Handler,
	}
}

// registerUser creates a user through the auth service and returns a token.
func (env *testEnv) registerUser(t *testing.T, username string) string {
	t.Helper()

	token, err := env.auth.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token
}

// doJSON performs a request against the handler and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	env.handler.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", resp.Body.String(), err)
	}
}
