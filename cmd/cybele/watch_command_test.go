package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cybele/internal/snapshot"
	"cybele/internal/store"
)

func TestWatchModelRendersChannels(t *testing.T) {
	st := store.New(t.TempDir(), nil)
	if _, err := st.Publish(1, snapshot.Summary{Name: "/var/log/app.log", Lines: 4200, Tail: []string{"boot", "ready"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	model := newWatchModel(st, 50*time.Millisecond)
	if !strings.Contains(model.View(), "no snapshots yet") {
		t.Fatalf("expected empty view before first refresh, got %q", model.View())
	}

	msg := model.Init()()
	updated, next := model.Update(msg)
	if next == nil {
		t.Fatal("expected a tick to be scheduled after data arrives")
	}
	view := updated.View()
	for _, want := range []string{"ch01", "/var/log/app.log", "4,200 lines", "ready"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestWatchModelQuits(t *testing.T) {
	model := newWatchModel(store.New(t.TempDir(), nil), time.Second)
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1234: "1,234", 1234567: "1,234,567"}
	for n, want := range tests {
		if got := formatCount(n); got != want {
			t.Fatalf("formatCount(%d) = %q, want %q", n, got, want)
		}
	}
}
