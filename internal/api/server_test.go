package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/engine"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/persistence"
)

const adminKey = "secret"

type fixture struct {
	sim *engine.Simulation
	srv *Server
	ts  *httptest.Server
}

func newFixture(t *testing.T, tune func(*Server)) *fixture {
	t.Helper()
	sim := engine.NewSimulation(engine.Options{
		Live:     config.NewLive(config.Default()),
		Interval: 100 * time.Millisecond,
		Seed:     3,
	})
	t.Cleanup(sim.Close)
	srv := &Server{Sim: sim, Eng: engine.NewEngine(100 * time.Millisecond), AdminKey: adminKey}
	if tune != nil {
		tune(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.limiter.Close)
	return &fixture{sim: sim, srv: srv, ts: ts}
}

func (f *fixture) do(t *testing.T, method, path, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatusIsPublic(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SpawnNPC(geom.V(4, 0, 0), 0)
	f.sim.Step(1, 0.1)

	resp := f.do(t, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[map[string]any](t, resp)
	assert.EqualValues(t, 1, status["tick"])
	assert.EqualValues(t, 1, status["actors"])
	assert.Equal(t, false, status["transfers_locked"])
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/input/primary", "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/input/primary", "nope", "").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/v1/input/primary", adminKey, "").StatusCode)

	closed := newFixture(t, func(s *Server) { s.AdminKey = "" })
	assert.Equal(t, http.StatusForbidden, closed.do(t, http.MethodPost, "/api/v1/speed", "", `{"speed":2}`).StatusCode)
}

func TestPrimaryIsQueuedAndRateLimited(t *testing.T) {
	f := newFixture(t, func(s *Server) { s.InputRate = 2 })
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/input/primary", adminKey, "").StatusCode)
	}
	limited := f.do(t, http.MethodPost, "/api/v1/input/primary", adminKey, "")
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))

	assert.Zero(t, f.sim.Stats.TransfersDropped, "nothing runs until the next tick")
	f.sim.Step(1, 0.1)
	assert.Equal(t, 2, f.sim.Stats.TransfersDropped, "no target in range")
}

func TestConfigPatch(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodPost, "/api/v1/config", adminKey, `{"transfer":{"amount":0.3,"return_fraction":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[config.Tunables](t, resp)
	assert.InDelta(t, 0.3, got.Transfer.Amount, 1e-12)
	assert.InDelta(t, 1, got.Transfer.ReturnFraction, 1e-12)

	bad := f.do(t, http.MethodPost, "/api/v1/config", adminKey, `{"transfer":`)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	invalid := f.do(t, http.MethodPost, "/api/v1/config", adminKey, `{"detection_range":-5,"report_every_ticks":0}`)
	assert.Equal(t, http.StatusBadRequest, invalid.StatusCode)

	cur := decode[config.Tunables](t, f.do(t, http.MethodGet, "/api/v1/config", "", ""))
	assert.InDelta(t, 0.3, cur.Transfer.Amount, 1e-12)
}

func TestBroadcastAndFullness(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 2; i++ {
		f.sim.SpawnNPC(geom.V(40, 0, float64(i)*5), 0)
	}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/broadcast/dance", adminKey, "").StatusCode)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/broadcast/block", adminKey, "").StatusCode)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/player/fullness", adminKey, `{"fullness":2}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/player/fullness", adminKey, `{}`).StatusCode)
	assert.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPost, "/api/v1/player/fullness", adminKey, `{"fullness":-0.5,"instant":true}`).StatusCode)

	f.sim.Step(1, 0.1)
	assert.InDelta(t, -0.5, f.sim.Player.Gauge().Current(), 1e-12)

	npcs := decode[[]engine.ActorView](t, f.do(t, http.MethodGet, "/api/v1/npcs?state=block", "", ""))
	assert.Len(t, npcs, 2)

	detail := f.do(t, http.MethodGet, "/api/v1/npc/"+npcs[0].ID, "", "")
	assert.Equal(t, http.StatusOK, detail.StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/npc/ghost", "", "").StatusCode)
}

func TestSpeed(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/speed", adminKey, `{"speed":-1}`).StatusCode)
	got := decode[map[string]float64](t, f.do(t, http.MethodPost, "/api/v1/speed", adminKey, `{"speed":4}`))
	assert.InDelta(t, 4, got["speed"], 1e-12)
	assert.InDelta(t, 4, f.srv.Eng.Speed(), 1e-12)
}

func TestTransfersAndSnapshotWithDB(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := newFixture(t, func(s *Server) { s.DB = db })
	require.NoError(t, db.RecordTransfer(persistence.TransferRecord{ID: "t-1", Tick: 3, Kind: "standard", Outcome: "completed"}))

	body := decode[map[string]json.RawMessage](t, f.do(t, http.MethodGet, "/api/v1/transfers", "", ""))
	assert.Contains(t, body, "active")
	assert.Contains(t, string(body["recent"]), "t-1")

	f.sim.Step(7, 0.1)
	resp := f.do(t, http.MethodPost, "/api/v1/snapshot", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, db.HasState())
}

func TestStreamPushesSnapshots(t *testing.T) {
	f := newFixture(t, func(s *Server) { s.StreamEvery = 5 * time.Millisecond })
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(msg, &snap))
	assert.Equal(t, engine.PlayerID, snap.Player.ID)
}
