// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package monitor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/presencewatch/internal/models"
)

type stubMonitor struct {
	kind Kind
}

func (m *stubMonitor) Kind() Kind                   { return m.kind }
func (m *stubMonitor) Init(context.Context) error   { return nil }
func (m *stubMonitor) Update(context.Context) error { return nil }
func (m *stubMonitor) Reconfigure(cfg any) bool     { return false }
func (m *stubMonitor) BuildActivity(models.ActivityDescriptor, models.Presence) *models.ActivityDescriptor {
	return nil
}

func stubFactory(scope Scope, cfg Config) (Monitor, error) {
	return &stubMonitor{kind: cfg.Kind}, nil
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSplatoon3Fest, stubFactory)
	r.Register(KindSplatoon3Versus, stubFactory)
	r.Register(KindSplatoon3Coop, stubFactory)
	return r
}

func TestRegistry(t *testing.T) {
	r := testRegistry()

	want := []Kind{KindSplatoon3Fest, KindSplatoon3Versus, KindSplatoon3Coop}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}

	r.Register(KindSplatoon3Fest, stubFactory)
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("re-registering changed order: %v", got)
	}

	m, err := r.New(Scope{EntityID: "e1"}, Config{Kind: KindSplatoon3Coop})
	if err != nil || m.Kind() != KindSplatoon3Coop {
		t.Errorf("New() = %v, %v", m, err)
	}

	if _, err := r.New(Scope{}, Config{Kind: "splatoon2.versus"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("New(unknown) error = %v, want ErrUnknownKind", err)
	}

	failing := NewRegistry()
	failing.Register(KindSplatoon3Versus, func(Scope, Config) (Monitor, error) {
		return nil, errors.New("no source")
	})
	if _, err := failing.New(Scope{EntityID: "e1"}, Config{Kind: KindSplatoon3Versus}); err == nil {
		t.Error("New() should wrap factory errors")
	}
}

func TestSet(t *testing.T) {
	s := NewSet(testRegistry())

	for _, k := range []Kind{KindSplatoon3Coop, KindSplatoon3Versus, KindSplatoon3Fest} {
		if err := s.Add(&stubMonitor{kind: k}); err != nil {
			t.Fatalf("Add(%s) error = %v", k, err)
		}
	}
	if err := s.Add(&stubMonitor{kind: KindSplatoon3Coop}); !errors.Is(err, ErrDuplicateKind) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateKind", err)
	}

	want := []Kind{KindSplatoon3Fest, KindSplatoon3Versus, KindSplatoon3Coop}
	if got := s.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want registry order %v", got, want)
	}

	if m, ok := s.Get(KindSplatoon3Versus); !ok || m.Kind() != KindSplatoon3Versus {
		t.Errorf("Get(versus) = %v, %v", m, ok)
	}

	if _, ok := s.Remove(KindSplatoon3Versus); !ok {
		t.Error("Remove(versus) reported missing")
	}
	if _, ok := s.Get(KindSplatoon3Versus); ok {
		t.Error("versus still present after Remove")
	}
	if _, ok := s.Remove(KindSplatoon3Versus); ok {
		t.Error("second Remove reported present")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestConfig_Equality(t *testing.T) {
	base := Config{Kind: KindSplatoon3Versus, Enabled: true, Interval: time.Minute, Locale: "en-US"}

	tests := []struct {
		name       string
		other      Config
		equal      bool
		equivalent bool
	}{
		{"identical", base, true, true},
		{"interval only", Config{Kind: KindSplatoon3Versus, Enabled: true, Interval: 2 * time.Minute, Locale: "en-US"}, false, true},
		{"locale", Config{Kind: KindSplatoon3Versus, Enabled: true, Interval: time.Minute, Locale: "ja-JP"}, false, false},
		{"disabled", Config{Kind: KindSplatoon3Versus, Interval: time.Minute, Locale: "en-US"}, false, false},
		{"kind", Config{Kind: KindSplatoon3Coop, Enabled: true, Interval: time.Minute, Locale: "en-US"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.equal {
				t.Errorf("Equal() = %v, want %v", got, tt.equal)
			}
			if got := base.Equivalent(tt.other); got != tt.equivalent {
				t.Errorf("Equivalent() = %v, want %v", got, tt.equivalent)
			}
		})
	}
}
