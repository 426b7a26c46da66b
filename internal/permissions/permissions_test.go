package permissions

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/charmverse/governance/pkg/response"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEveryLevelIsNonEmptySubsetOfUniverse(t *testing.T) {
	for _, m := range []*Mapping{Bounty, Page, Space} {
		universe := m.Universe()
		for _, level := range m.Levels() {
			ops, err := m.Operations(level)
			if err != nil {
				t.Fatalf("%s/%s: Operations() error = %v", m.Resource(), level, err)
			}
			if len(ops) == 0 {
				t.Errorf("%s/%s: operation set is empty", m.Resource(), level)
			}
			if !ops.SubsetOf(universe) {
				t.Errorf("%s/%s: %v is not a subset of %v", m.Resource(), level, ops.Slice(), universe.Slice())
			}
		}
	}
}

func TestBountyViewerCannotMutate(t *testing.T) {
	for _, op := range []Operation{BountyEdit, BountyDelete, BountyApproveApplications} {
		if Bounty.Allows(BountyViewer, op) {
			t.Errorf("viewer should not be allowed %q", op)
		}
	}
	if !Bounty.Allows(BountyViewer, BountyView) {
		t.Error("viewer should be allowed to view")
	}
}

func TestBountyLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected []Operation
	}{
		{BountyCreator, []Operation{"approve_applications", "delete", "edit", "grant_permissions", "lock", "mark_paid", "review", "view"}},
		{BountyReviewer, []Operation{"approve_applications", "mark_paid", "review", "view"}},
		{BountySubmitter, []Operation{"view", "work"}},
		{BountyViewer, []Operation{"view"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			ops, err := Bounty.Operations(tt.level)
			if err != nil {
				t.Fatalf("Operations() error = %v", err)
			}
			got := ops.Slice()
			if len(got) != len(tt.expected) {
				t.Fatalf("Operations(%s) = %v, expected %v", tt.level, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Operations(%s)[%d] = %q, expected %q", tt.level, i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestOperations_UnknownLevel(t *testing.T) {
	_, err := Bounty.Operations("owner")
	if !errors.Is(err, response.ErrInvalidInput) {
		t.Errorf("Operations(owner) error = %v, expected invalid input", err)
	}
	if Bounty.Allows("owner", BountyView) {
		t.Error("unknown level should allow nothing")
	}
}

func TestOperations_ReturnsCopy(t *testing.T) {
	ops, _ := Bounty.Operations(BountyViewer)
	ops[BountyDelete] = struct{}{}

	if Bounty.Allows(BountyViewer, BountyDelete) {
		t.Error("mutating a returned set must not change the table")
	}
}

func TestForResource(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"bounty", false},
		{"page", false},
		{"space", false},
		{"forum", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ForResource(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForResource(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && m.Resource() != tt.name {
				t.Errorf("Resource() = %q, expected %q", m.Resource(), tt.name)
			}
		})
	}
}

func TestSpaceOperations(t *testing.T) {
	member := SpaceOperations(false)
	admin := SpaceOperations(true)

	if member.Has(SpaceReviewProposals) {
		t.Error("members should not review proposals")
	}
	if !member.SubsetOf(admin) {
		t.Error("admin operations should include member operations")
	}
	if len(admin) != len(Space.Universe()) {
		t.Errorf("admin should hold every space operation, got %v", admin.Slice())
	}
}

func TestOperationSet_UnionAndJSON(t *testing.T) {
	a := NewOperationSet(BountyView)
	b := NewOperationSet(BountyWork, BountyView)

	u := a.Union(b)
	if len(u) != 2 || len(a) != 1 {
		t.Fatalf("Union() = %v, a = %v", u.Slice(), a.Slice())
	}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["view","work"]` {
		t.Errorf("MarshalJSON() = %s", data)
	}

	flags := a.Flags(Bounty.Universe())
	if !flags[BountyView] || flags[BountyWork] {
		t.Errorf("Flags() = %v", flags)
	}
	if len(flags) != len(Bounty.Universe()) {
		t.Errorf("Flags() should cover the universe, got %d entries", len(flags))
	}
}
