package main

import (
	"context"
	"testing"
	"time"

	"github.com/tailored-agentic-units/statebox/store"
)

func TestDemoMutators(t *testing.T) {
	tests := []struct {
		name    string
		subtree string
		action  string
		param   any
		check   func(t *testing.T, st store.SubtreeState)
	}{
		{
			name:    "add",
			subtree: "counter",
			action:  "add",
			param:   float64(3),
			check: func(t *testing.T, st store.SubtreeState) {
				if st["value"] != 3 {
					t.Errorf("counter.value = %v, want 3", st["value"])
				}
			},
		},
		{
			name:    "fetch known user",
			subtree: "user",
			action:  "fetchUser",
			param:   float64(2),
			check: func(t *testing.T, st store.SubtreeState) {
				if u, ok := st["user"].(user); !ok || u.Name != "Grace Hopper" {
					t.Errorf("user.user = %v", st["user"])
				}
				if st["loading"] != false {
					t.Errorf("user.loading = %v, want false", st["loading"])
				}
			},
		},
		{
			name:    "fetch unknown user",
			subtree: "user",
			action:  "fetchUser",
			param:   float64(9),
			check: func(t *testing.T, st store.SubtreeState) {
				if st["error"] != "user 9 not found" {
					t.Errorf("user.error = %v", st["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.New(&store.Config{Observers: []string{"noop"}}, demoMutators())
			if err != nil {
				t.Fatalf("store.New failed: %v", err)
			}

			done := make(chan struct{})
			if err := s.Dispatch(tt.subtree, tt.action, tt.param, func() { close(done) }); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			select {
			case <-done:
			case <-ctx.Done():
				t.Fatal("chain did not complete")
			}

			tt.check(t, s.Snapshot()[tt.subtree])
		})
	}
}
