package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	c, rec := newCtx(http.MethodGet, "/readyz", "")
	if err := Ready(map[string]ReadyCheck{"mysql": ok, "mongo": ok})(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("all up: status = %d", rec.Code)
	}

	c, rec = newCtx(http.MethodGet, "/readyz", "")
	if err := Ready(map[string]ReadyCheck{"mysql": ok, "redis": down})(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("redis down: status = %d", rec.Code)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["mysql"] != "ok" || body.Checks["redis"] != "connection refused" {
		t.Fatalf("checks = %v", body.Checks)
	}
}
