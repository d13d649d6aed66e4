package service

import (
	"context"
	"math"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

// AnalyticsRequests answers the aggregate request queries.
type AnalyticsRequests interface {
	CountByBenefitStatus(ctx context.Context) ([]repository.StatusCount, error)
	CountRequesters(ctx context.Context) (int, error)
}

// EmployeeCounter counts active, verified users.
type EmployeeCounter interface {
	CountEmployees(ctx context.Context) (int, error)
}

// BenefitLister lists the catalog.
type BenefitLister interface {
	List(ctx context.Context) ([]model.Benefit, error)
}

// PollResults lists every poll submission.
type PollResults interface {
	ListResults(ctx context.Context) ([]model.PollResult, error)
}

// BenefitUsage is the request breakdown for one benefit.
type BenefitUsage struct {
	BenefitID   int64  `json:"benefit_id"`
	BenefitName string `json:"benefit_name"`
	Pending     int    `json:"pending"`
	Approved    int    `json:"approved"`
	Denied      int    `json:"denied"`
	Total       int    `json:"total"`
}

// Analytics is a point-in-time usage summary.
type Analytics struct {
	Benefits      []BenefitUsage `json:"benefits"`
	Pending       int            `json:"pending"`
	Approved      int            `json:"approved"`
	Denied        int            `json:"denied"`
	Total         int            `json:"total"`
	Reach         int            `json:"reach"`
	EmployeeCount int            `json:"employee_count"`
	UsagePercent  float64        `json:"usage_percent"`
}

// BenefitVotes counts how often a benefit was picked in the poll.
type BenefitVotes struct {
	BenefitID   int64  `json:"benefit_id"`
	BenefitName string `json:"benefit_name"`
	Selections  int    `json:"selections"`
}

// PollSummary aggregates poll submissions.
type PollSummary struct {
	Submissions   int            `json:"submissions"`
	AverageRating float64        `json:"average_rating"`
	Benefits      []BenefitVotes `json:"benefits"`
}

// AnalyticsService aggregates request outcomes and poll results.
type AnalyticsService struct {
	benefits  BenefitLister
	requests  AnalyticsRequests
	employees EmployeeCounter
	polls     PollResults
}

func NewAnalyticsService(benefits BenefitLister, requests AnalyticsRequests, employees EmployeeCounter, polls PollResults) *AnalyticsService {
	return &AnalyticsService{benefits: benefits, requests: requests, employees: employees, polls: polls}
}

// Compute returns per-benefit request counts plus totals, reach and the
// share of employees who ever filed a request.
func (s *AnalyticsService) Compute(ctx context.Context) (Analytics, error) {
	employees, err := s.employees.CountEmployees(ctx)
	if err != nil {
		return Analytics{}, err
	}
	if employees == 0 {
		return Analytics{}, ErrNoEmployees
	}
	benefits, err := s.benefits.List(ctx)
	if err != nil {
		return Analytics{}, err
	}
	counts, err := s.requests.CountByBenefitStatus(ctx)
	if err != nil {
		return Analytics{}, err
	}
	reach, err := s.requests.CountRequesters(ctx)
	if err != nil {
		return Analytics{}, err
	}

	idx := make(map[int64]int, len(benefits))
	out := Analytics{Benefits: make([]BenefitUsage, 0, len(benefits))}
	for i, b := range benefits {
		idx[b.ID] = i
		out.Benefits = append(out.Benefits, BenefitUsage{BenefitID: b.ID, BenefitName: b.DisplayName()})
	}
	for _, c := range counts {
		i, ok := idx[c.BenefitID]
		if !ok {
			continue
		}
		u := &out.Benefits[i]
		switch c.Status {
		case model.StatusPending:
			u.Pending += c.Count
			out.Pending += c.Count
		case model.StatusApproved:
			u.Approved += c.Count
			out.Approved += c.Count
		case model.StatusDenied:
			u.Denied += c.Count
			out.Denied += c.Count
		default:
			continue
		}
		u.Total += c.Count
		out.Total += c.Count
	}
	out.Reach = reach
	out.EmployeeCount = employees
	out.UsagePercent = round2(float64(reach) * 100 / float64(employees))
	return out, nil
}

// PollSummary counts submissions, averages the rating and tallies how
// often each benefit was selected.  Selections of deleted benefits are
// ignored.
func (s *AnalyticsService) PollSummary(ctx context.Context) (PollSummary, error) {
	results, err := s.polls.ListResults(ctx)
	if err != nil {
		return PollSummary{}, err
	}
	benefits, err := s.benefits.List(ctx)
	if err != nil {
		return PollSummary{}, err
	}

	idx := make(map[int64]int, len(benefits))
	sum := PollSummary{Submissions: len(results), Benefits: make([]BenefitVotes, 0, len(benefits))}
	for i, b := range benefits {
		idx[b.ID] = i
		sum.Benefits = append(sum.Benefits, BenefitVotes{BenefitID: b.ID, BenefitName: b.DisplayName()})
	}
	total := 0
	for _, r := range results {
		total += r.SatisfactionRate
		for _, id := range r.SelectedBenefits {
			if i, ok := idx[id]; ok {
				sum.Benefits[i].Selections++
			}
		}
	}
	if len(results) > 0 {
		sum.AverageRating = round2(float64(total) / float64(len(results)))
	}
	return sum, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
