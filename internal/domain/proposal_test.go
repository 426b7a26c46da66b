package domain

import (
	"testing"
	"time"
)

func evals(results ...EvaluationResult) []Evaluation {
	out := make([]Evaluation, len(results))
	for i, r := range results {
		out[i] = Evaluation{ID: string(rune('a' + i)), Index: i, Type: EvaluationPassFail, Result: r}
	}
	return out
}

func TestCurrentEvaluation(t *testing.T) {
	tests := []struct {
		name     string
		evals    []Evaluation
		expected string
	}{
		{"first pending", evals(ResultPending, ResultPending), "a"},
		{"after pass", evals(ResultPass, ResultPending, ResultPending), "b"},
		{"failed step stays current", evals(ResultPass, ResultFail, ResultPending), "b"},
		{"all passed returns last", evals(ResultPass, ResultPass), "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentEvaluation(tt.evals)
			if got == nil || got.ID != tt.expected {
				t.Errorf("CurrentEvaluation() = %v, expected %s", got, tt.expected)
			}
		})
	}

	if CurrentEvaluation(nil) != nil {
		t.Error("CurrentEvaluation(nil) should be nil")
	}
}

func TestNextEvaluation(t *testing.T) {
	list := evals(ResultPending, ResultPending, ResultPending)

	if next := NextEvaluation(list, "a"); next == nil || next.ID != "b" {
		t.Errorf("NextEvaluation(a) = %v, expected b", next)
	}
	if next := NextEvaluation(list, "c"); next != nil {
		t.Errorf("NextEvaluation(c) = %v, expected nil", next)
	}
	if next := NextEvaluation(list, "missing"); next != nil {
		t.Errorf("NextEvaluation(missing) = %v, expected nil", next)
	}
}

func TestSortEvaluations(t *testing.T) {
	list := []Evaluation{{ID: "c", Index: 2}, {ID: "a", Index: 0}, {ID: "b", Index: 1}}
	SortEvaluations(list)
	for i, id := range []string{"a", "b", "c"} {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, expected %s", i, list[i].ID, id)
		}
	}
}

func TestEvaluation_NeedsVote(t *testing.T) {
	settings := &VoteSettings{DurationDays: 1, Threshold: 50}
	now := time.Now()

	tests := []struct {
		name     string
		eval     Evaluation
		expected bool
	}{
		{"vote with settings", Evaluation{Type: EvaluationVote, VoteSettings: settings}, true},
		{"vote already linked", Evaluation{Type: EvaluationVote, VoteSettings: settings, VoteID: "v1"}, false},
		{"vote without settings", Evaluation{Type: EvaluationVote}, false},
		{"pass fail", Evaluation{Type: EvaluationPassFail, VoteSettings: settings}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eval.NeedsVote(); got != tt.expected {
				t.Errorf("NeedsVote() = %v, expected %v", got, tt.expected)
			}
		})
	}

	done := Evaluation{CompletedAt: &now}
	if !done.Completed() {
		t.Error("evaluation with CompletedAt should be completed")
	}
}

func TestProposal_HasAuthor(t *testing.T) {
	p := Proposal{Authors: []string{"u1", "u2"}}
	if !p.HasAuthor("u2") || p.HasAuthor("u3") {
		t.Error("HasAuthor() mismatch")
	}
}

func TestEvaluationResult_Valid(t *testing.T) {
	if !ResultPass.Valid() || !ResultFail.Valid() {
		t.Error("pass and fail should be valid")
	}
	if ResultPending.Valid() || EvaluationResult("maybe").Valid() {
		t.Error("pending and unknown results should be invalid")
	}
}
