package badges

import (
	"log"

	"github.com/mentorhub/backend/internal/models"
)

// CriterionProgress is the evaluation of one badge criterion
type CriterionProgress struct {
	Type       string `json:"type"`
	Current    int    `json:"current"`
	Required   int    `json:"required"`
	Percentage int    `json:"percentage"`
	Known      bool   `json:"-"`
}

// criterionFunc reads the current value for a criterion type off the
// account summary.
type criterionFunc func(s *models.CreditSummary) int

// CriteriaRegistry dispatches criterion types to their counters. New
// criteria register here; nothing else in the evaluator changes.
type CriteriaRegistry struct {
	handlers map[string]criterionFunc
}

// NewCriteriaRegistry builds the registry with the built-in criterion types
func NewCriteriaRegistry() *CriteriaRegistry {
	r := &CriteriaRegistry{handlers: make(map[string]criterionFunc)}

	r.Register("project_launch", func(s *models.CreditSummary) int { return s.ProjectsLaunched })
	r.Register("mentorship_sessions", func(s *models.CreditSummary) int { return s.MentorshipSessions })
	r.Register("opportunities_shared", func(s *models.CreditSummary) int { return s.OpportunitiesShared })
	r.Register("social_shares", func(s *models.CreditSummary) int { return s.SocialShares })
	r.Register("challenges_won", func(s *models.CreditSummary) int { return s.ChallengesWon })
	r.Register("referrals_successful", func(s *models.CreditSummary) int { return s.ReferralsSuccessful })
	r.Register("points_earned", func(s *models.CreditSummary) int { return s.TotalPoints })

	return r
}

// Register adds or replaces a criterion type
func (r *CriteriaRegistry) Register(criterionType string, fn criterionFunc) {
	r.handlers[criterionType] = fn
}

// Evaluate scores each criterion against the summary. Unknown criterion
// types produce a zero-progress entry rather than an error, so badges
// defined ahead of a deployed counter degrade instead of breaking.
func (r *CriteriaRegistry) Evaluate(summary *models.CreditSummary, criteria models.BadgeCriteria) []CriterionProgress {
	progress := make([]CriterionProgress, 0, len(criteria))
	for _, c := range criteria {
		p := CriterionProgress{Type: c.Type, Required: c.Value}

		fn, ok := r.handlers[c.Type]
		if !ok {
			log.Printf("unknown badge criterion type %q, reporting zero progress", c.Type)
			progress = append(progress, p)
			continue
		}

		p.Known = true
		p.Current = fn(summary)
		p.Percentage = percentage(p.Current, c.Value)
		progress = append(progress, p)
	}
	return progress
}

// OverallProgress reduces per-criterion percentages to the badge's single
// progress value: the average, so partial criteria still show movement.
func OverallProgress(criteria []CriterionProgress) int {
	if len(criteria) == 0 {
		return 0
	}
	sum := 0
	for _, c := range criteria {
		sum += c.Percentage
	}
	return sum / len(criteria)
}

func percentage(current, required int) int {
	if required <= 0 {
		return 100
	}
	pct := current * 100 / required
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
