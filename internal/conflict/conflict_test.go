package conflict

import "testing"

func strPtr(s string) *string { return &s }

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		owner       *string
		ownerName   string
		actor       string
		mode        OwnerCheck
		wantAllowed bool
	}{
		{
			name:        "unowned deal auto-claims",
			owner:       nil,
			actor:       "alice",
			mode:        StandardCheck,
			wantAllowed: true,
		},
		{
			name:        "empty owner id treated as unowned",
			owner:       strPtr(""),
			actor:       "alice",
			mode:        StandardCheck,
			wantAllowed: true,
		},
		{
			name:        "actor owns the deal",
			owner:       strPtr("alice"),
			actor:       "alice",
			mode:        StandardCheck,
			wantAllowed: true,
		},
		{
			name:        "different owner blocks",
			owner:       strPtr("bob"),
			ownerName:   "Bob",
			actor:       "alice",
			mode:        StandardCheck,
			wantAllowed: false,
		},
		{
			name:        "admin override skips the check",
			owner:       strPtr("bob"),
			ownerName:   "Bob",
			actor:       "alice",
			mode:        AdminOverride,
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.owner, tt.ownerName, tt.actor, tt.mode)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCheckBlockedCarriesOwnerInfo(t *testing.T) {
	got := Check(strPtr("bob"), "Bob", "alice", StandardCheck)

	if got.Allowed {
		t.Fatal("expected blocked decision")
	}
	if got.Owner.OwnerID != "bob" {
		t.Errorf("OwnerID = %q, want %q", got.Owner.OwnerID, "bob")
	}
	if got.Owner.OwnerName != "Bob" {
		t.Errorf("OwnerName = %q, want %q", got.Owner.OwnerName, "Bob")
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := Check(strPtr("bob"), "Bob", "alice", StandardCheck)
		if got.Allowed {
			t.Fatal("decision changed between identical calls")
		}
	}
}

func TestOwnerCheckString(t *testing.T) {
	if StandardCheck.String() != "standard" {
		t.Errorf("StandardCheck.String() = %q", StandardCheck.String())
	}
	if AdminOverride.String() != "admin_override" {
		t.Errorf("AdminOverride.String() = %q", AdminOverride.String())
	}
}
