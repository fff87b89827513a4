package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/rpggio/stockcount/internal/filelog"
	"github.com/rpggio/stockcount/internal/mcp"
	"github.com/rpggio/stockcount/internal/sqlite"
	"github.com/rpggio/stockcount/internal/transport"
	"github.com/stretchr/testify/require"
)

// Now is the fixed clock of every test server.
var Now = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Manager  *lifecycle.Manager
	Audit    *audit.Service
	AuditDir *filelog.Dir
	UserID   string
}

// Facility is the seed used by New.
func Facility() *count.Facility {
	return &count.Facility{
		ID:   "main",
		Name: "Main kitchen",
		Locations: []count.Location{
			{ID: "DRY-1", Name: "Dry store", Zone: "ambient"},
			{ID: "FREEZER-A", Name: "Freezer A", Zone: "frozen"},
			{ID: "COOLER", Name: "Walk-in cooler", Zone: "chilled"},
		},
	}
}

// New starts an HTTP JSON-RPC server backed by in-memory SQLite and a
// temporary audit directory. Calls are made as userID.
func New(t *testing.T, userID string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	dir, err := filelog.New(t.TempDir(), "audit-")
	require.NoError(t, err)
	clock := func() time.Time { return Now }
	auditSvc, err := audit.NewService(dir, 1, nil, audit.WithClock(clock))
	require.NoError(t, err)

	manager := lifecycle.NewManager(
		sqlite.NewDocumentRepository(db),
		rules.New(rules.WithClock(clock)),
		auditSvc,
		nil,
		lifecycle.WithClock(clock),
	)
	_, err = manager.Bootstrap(context.Background(), Facility())
	require.NoError(t, err)

	handler := mcp.NewHandler(manager, auditSvc)
	server := httptest.NewServer(transport.NewServer(handler, "anonymous", nil))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Manager:  manager,
		Audit:    auditSvc,
		AuditDir: dir,
		UserID:   userID,
	}

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

// Call sends one JSON-RPC request and decodes the result into out when the
// call succeeds. The JSON-RPC error, if any, is returned.
func (ts *TestServer) Call(t *testing.T, method string, params any, out any) *transport.Error {
	t.Helper()

	payload := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(transport.HeaderUserID, ts.UserID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Result json.RawMessage  `json:"result"`
		Error  *transport.Error `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Result, out))
	}
	return nil
}
