// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sequence

import (
	"testing"
	"time"
)

// =============================================================================
// SEQUENCE VALUE TESTS
// =============================================================================

func TestNew_HasStableClientID(t *testing.T) {
	s := New("m")

	if s.ClientID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ClientID should be minted at construction")
	}
	if s.Persisted() {
		t.Error("fresh sequence should not be persisted")
	}
	if !s.IsLeaf {
		t.Error("fresh sequence should be a leaf")
	}
}

func TestWithServerID_FirstAssignment(t *testing.T) {
	s := New("m").WithServerID(10)

	if s.ServerID != 10 {
		t.Errorf("ServerID = %d, want 10", s.ServerID)
	}
	if len(s.Ancestors) != 0 {
		t.Errorf("Ancestors = %v, want empty (no prior identity)", s.Ancestors)
	}
}

func TestWithServerID_ReplacementPrependsAncestor(t *testing.T) {
	s := New("m").WithServerID(10).WithServerID(20).WithServerID(30)

	if s.ServerID != 30 {
		t.Errorf("ServerID = %d, want 30", s.ServerID)
	}
	if len(s.Ancestors) != 2 || s.Ancestors[0] != 20 || s.Ancestors[1] != 10 {
		t.Errorf("Ancestors = %v, want [20 10]", s.Ancestors)
	}
	if !s.IsLeaf {
		t.Error("re-identified sequence should be the current leaf")
	}
}

func TestWithServerID_PreservesClientIDAndMessages(t *testing.T) {
	s := New("m").Append(Stored{ID: 1, Role: RoleUser, Content: "hi"})
	id := s.ClientID

	renamed := s.WithServerID(99)

	if renamed.ClientID != id {
		t.Error("ClientID must never change")
	}
	if len(renamed.Messages) != 1 {
		t.Errorf("Messages = %d, want 1", len(renamed.Messages))
	}
}

func TestReplacementOps_DoNotMutateReceiver(t *testing.T) {
	base := New("m").WithServerID(1).Append(Stored{ID: 1, Role: RoleUser, Content: "a"})

	_ = base.WithServerID(2)
	_ = base.Append(Stored{ID: 2, Role: RoleAssistant, Content: "b"})
	_ = base.Insert(0, Temporary{Role: RoleNoData})
	_ = base.WithDescription("changed").WithPinned(true).WithLeaf(false)

	if base.ServerID != 1 || len(base.Messages) != 1 || len(base.Ancestors) != 0 {
		t.Errorf("receiver mutated: %+v", base)
	}
	if base.HumanDesc != "" || base.Pinned || !base.IsLeaf {
		t.Errorf("receiver flags mutated: %+v", base)
	}
}

func TestInsert_ClampsIndex(t *testing.T) {
	s := New("m").Append(Stored{ID: 1}, Stored{ID: 2})

	front := s.Insert(-5, Legacy{Content: "x"})
	back := s.Insert(99, Legacy{Content: "y"})

	if _, ok := front.Messages[0].(Legacy); !ok {
		t.Error("negative index should insert at front")
	}
	if _, ok := back.Messages[2].(Legacy); !ok {
		t.Error("oversized index should append")
	}
}

// =============================================================================
// MESSAGE SUM TYPE TESTS
// =============================================================================

func TestMessageAccessors_AllVariants(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		msg  Message
		role string
	}{
		{"stored", Stored{ID: 7, Role: RoleAssistant, Content: "s", CreatedAt: at}, RoleAssistant},
		{"temporary", Temporary{Origin: OriginNoData, Role: RoleNoData, Content: "t", CreatedAt: at}, RoleNoData},
		{"legacy", Legacy{Role: RoleUser, Content: "l", CreatedAt: at}, RoleUser},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if RoleOf(tc.msg) != tc.role {
				t.Errorf("RoleOf = %q, want %q", RoleOf(tc.msg), tc.role)
			}
			if ContentOf(tc.msg) == "" {
				t.Error("ContentOf should not be empty")
			}
			if !TimeOf(tc.msg).Equal(at) {
				t.Errorf("TimeOf = %v, want %v", TimeOf(tc.msg), at)
			}
		})
	}
}

func TestIsLocal(t *testing.T) {
	if !IsLocal(Temporary{}) {
		t.Error("Temporary should be local")
	}
	if IsLocal(Stored{}) || IsLocal(Legacy{}) {
		t.Error("Stored/Legacy should not be local")
	}
}

func TestTempOrigin_String(t *testing.T) {
	origins := []TempOrigin{
		OriginServerError, OriginPartialResponse, OriginPromptEcho,
		OriginNoData, OriginInterrupted,
	}
	seen := map[string]bool{}
	for _, o := range origins {
		s := o.String()
		if s == "unknown" || seen[s] {
			t.Errorf("origin %d has bad string %q", o, s)
		}
		seen[s] = true
	}
}
