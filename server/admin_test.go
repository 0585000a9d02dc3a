package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlePlayersListsRegistry(t *testing.T) {
	sm := newTestManager(t, Options{})
	a, fa := attachFake(t, sm)
	fa.next(t)
	fa.next(t)

	rec := httptest.NewRecorder()
	sm.HandlePlayers(rec, httptest.NewRequest(http.MethodGet, "/players", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []playerView
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != uint64(a.ID()) || out[0].Key != string(a.Key()) {
		t.Fatalf("unexpected players payload %+v", out)
	}
}

func TestHandlePlayersEncodesNonFinite(t *testing.T) {
	sm := newTestManager(t, Options{})
	a, fa := attachFake(t, sm)
	fa.next(t)
	fa.next(t)
	if _, err := sm.Registry().UpdatePosition(a.Key(), float32(math.NaN()), 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec := httptest.NewRecorder()
	sm.HandlePlayers(rec, httptest.NewRequest(http.MethodGet, "/players", nil))
	var out []playerView
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if len(out) != 1 || !math.IsNaN(float64(out[0].X)) || out[0].Y != 1 {
		t.Fatalf("unexpected players payload %+v", out)
	}
}

func TestHandleMetrics(t *testing.T) {
	sm := newTestManager(t, Options{})
	_, fa := attachFake(t, sm)
	fa.next(t)

	rec := httptest.NewRecorder()
	sm.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var out map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["players"] != 1 || out["connections_accepted"] != 1 || out["broadcast_targets"] != 1 {
		t.Fatalf("unexpected metrics %+v", out)
	}
}

func TestHandleAdminSpawn(t *testing.T) {
	spawn, err := NewRandomSpawn(100, 100, 10)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	sm := newTestManager(t, Options{Spawn: spawn})

	rec := httptest.NewRecorder()
	sm.HandleAdminSpawn(rec, httptest.NewRequest(http.MethodPost, "/admin/spawn", strings.NewReader(`{"width":320}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d: %s", rec.Code, rec.Body.String())
	}
	if w, h := spawn.Area(); w != 320 || h != 100 {
		t.Fatalf("area = %vx%v, want 320x100", w, h)
	}

	rec = httptest.NewRecorder()
	sm.HandleAdminSpawn(rec, httptest.NewRequest(http.MethodGet, "/admin/spawn", nil))
	var got map[string]float32
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["width"] != 320 || got["height"] != 100 {
		t.Fatalf("unexpected spawn config %+v", got)
	}

	rec = httptest.NewRecorder()
	sm.HandleAdminSpawn(rec, httptest.NewRequest(http.MethodPost, "/admin/spawn", strings.NewReader(`{"height":-1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative height, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	sm.HandleAdminSpawn(rec, httptest.NewRequest(http.MethodDelete, "/admin/spawn", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleAdminSpawnFixedPolicy(t *testing.T) {
	sm := newTestManager(t, Options{})
	rec := httptest.NewRecorder()
	sm.HandleAdminSpawn(rec, httptest.NewRequest(http.MethodGet, "/admin/spawn", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for fixed spawn, got %d", rec.Code)
	}
}
