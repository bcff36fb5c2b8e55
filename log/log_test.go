package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	prev := L()
	defer Set(prev)

	if err := Init("verbose", "json"); err == nil {
		t.Error("Init accepted an unknown level")
	}
	if err := Init("warn", "console"); err != nil {
		t.Fatal(err)
	}
	if L().Core().Enabled(zap.InfoLevel) {
		t.Error("info enabled at warn level")
	}
}

func TestFields(t *testing.T) {
	prev := L()
	defer Set(prev)

	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	Info("VectorDriver:got files", zap.Int("cnt", 2))
	Debug("dbg")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if e := entries[0]; e.Message != "VectorDriver:got files" || e.ContextMap()["cnt"] != int64(2) {
		t.Errorf("entry = %+v", e)
	}
}
