package domain

import (
	"fmt"
	"time"
)

type VoteStatus string

const (
	VoteInProgress VoteStatus = "InProgress"
	VotePassed     VoteStatus = "Passed"
	VoteRejected   VoteStatus = "Rejected"
	VoteCancelled  VoteStatus = "Cancelled"
)

type VoteType string

const (
	VoteApproval     VoteType = "Approval"
	VoteSingleChoice VoteType = "SingleChoice"
	VoteMultiChoice  VoteType = "MultiChoice"
)

func (t VoteType) Valid() bool {
	switch t {
	case VoteApproval, VoteSingleChoice, VoteMultiChoice:
		return true
	}
	return false
}

// DefaultApprovalOptions are used when an approval vote lists no options.
var DefaultApprovalOptions = []string{"Yes", "No", "Abstain"}

// VoteSettings configures the vote opened by a vote evaluation.
type VoteSettings struct {
	DurationDays int      `json:"duration_days"`
	Threshold    int      `json:"threshold"`
	Type         VoteType `json:"type"`
	Options      []string `json:"options"`
	MaxChoices   int      `json:"max_choices"`
}

// Validate checks settings and fills defaults for options and max choices.
func (s *VoteSettings) Validate() error {
	if s.DurationDays <= 0 {
		return fmt.Errorf("duration_days must be positive")
	}
	if s.Threshold < 1 || s.Threshold > 100 {
		return fmt.Errorf("threshold must be between 1 and 100")
	}
	if s.Type == "" {
		s.Type = VoteApproval
	}
	if !s.Type.Valid() {
		return fmt.Errorf("unknown vote type: %s", s.Type)
	}
	if len(s.Options) == 0 && s.Type == VoteApproval {
		s.Options = append([]string(nil), DefaultApprovalOptions...)
	}
	if err := ValidateOptions(s.Options); err != nil {
		return err
	}
	if s.MaxChoices <= 0 || s.Type != VoteMultiChoice {
		s.MaxChoices = 1
	}
	return nil
}

// ValidateOptions requires at least two distinct non-empty options.
func ValidateOptions(options []string) error {
	if len(options) < 2 {
		return fmt.Errorf("a vote needs at least two options")
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if o == "" {
			return fmt.Errorf("vote options must not be empty")
		}
		if seen[o] {
			return fmt.Errorf("duplicate vote option: %s", o)
		}
		seen[o] = true
	}
	return nil
}

type Vote struct {
	ID          string         `json:"id"`
	SpaceID     string         `json:"space_id"`
	PageID      string         `json:"page_id,omitempty"`
	PostID      string         `json:"post_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Type        VoteType       `json:"type"`
	Threshold   int            `json:"threshold"`
	MaxChoices  int            `json:"max_choices"`
	Status      VoteStatus     `json:"status"`
	Context     string         `json:"context"`
	Deadline    time.Time      `json:"deadline"`
	CreatedBy   string         `json:"created_by"`
	Options     []string       `json:"options"`
	Tally       map[string]int `json:"tally,omitempty"`
	TotalVoters int            `json:"total_voters"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsOpen reports whether the vote still accepts ballots at now.
func (v Vote) IsOpen(now time.Time) bool {
	return v.Status == VoteInProgress && now.Before(v.Deadline)
}

// HasOption reports whether name is one of the vote options.
func (v Vote) HasOption(name string) bool {
	for _, o := range v.Options {
		if o == name {
			return true
		}
	}
	return false
}

// Ballot is every choice one user made on a vote.
type Ballot struct {
	UserID  string
	Choices []string
}

// Tally counts choices per option; every option appears in the result.
func Tally(options []string, ballots []Ballot) map[string]int {
	counts := make(map[string]int, len(options))
	for _, o := range options {
		counts[o] = 0
	}
	for _, b := range ballots {
		for _, c := range b.Choices {
			if _, ok := counts[c]; ok {
				counts[c]++
			}
		}
	}
	return counts
}

// Outcome decides the closing status of a vote. Approval votes pass when the
// first option reaches the threshold share of voters; choice votes pass when
// any option does. A vote without ballots is rejected.
func Outcome(v Vote, ballots []Ballot) VoteStatus {
	voters := len(ballots)
	if voters == 0 || len(v.Options) == 0 {
		return VoteRejected
	}
	counts := Tally(v.Options, ballots)
	reaches := func(n int) bool { return n*100 >= v.Threshold*voters }

	if v.Type == VoteApproval {
		if reaches(counts[v.Options[0]]) {
			return VotePassed
		}
		return VoteRejected
	}
	for _, o := range v.Options {
		if reaches(counts[o]) {
			return VotePassed
		}
	}
	return VoteRejected
}
