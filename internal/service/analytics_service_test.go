package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

func TestCompute_NoEmployees(t *testing.T) {
	svc := NewAnalyticsService(&fakeBenefits{}, &fakeRequests{}, &fakeUsers{employees: 0}, &fakePolls{})

	_, err := svc.Compute(context.Background())

	assert.ErrorIs(t, err, ErrNoEmployees)
}

func TestCompute(t *testing.T) {
	benefits := &fakeBenefits{items: []model.Benefit{
		{ID: 1, Name: "gym"},
		{ID: 2, Name: "pool", CardName: ptr("Pool")},
		{ID: 3, Name: "unused"},
	}}
	requests := &fakeRequests{
		counts: []repository.StatusCount{
			{BenefitID: 1, Status: model.StatusPending, Count: 2},
			{BenefitID: 1, Status: model.StatusApproved, Count: 3},
			{BenefitID: 2, Status: model.StatusDenied, Count: 1},
			{BenefitID: 99, Status: model.StatusApproved, Count: 5},
		},
		reach: 2,
	}
	svc := NewAnalyticsService(benefits, requests, &fakeUsers{employees: 3}, &fakePolls{})

	a, err := svc.Compute(context.Background())

	require.NoError(t, err)
	require.Len(t, a.Benefits, 3)
	assert.Equal(t, BenefitUsage{BenefitID: 1, BenefitName: "gym", Pending: 2, Approved: 3, Total: 5}, a.Benefits[0])
	assert.Equal(t, BenefitUsage{BenefitID: 2, BenefitName: "Pool", Denied: 1, Total: 1}, a.Benefits[1])
	assert.Equal(t, BenefitUsage{BenefitID: 3, BenefitName: "unused"}, a.Benefits[2])
	assert.Equal(t, 2, a.Pending)
	assert.Equal(t, 3, a.Approved)
	assert.Equal(t, 1, a.Denied)
	assert.Equal(t, 6, a.Total)
	assert.Equal(t, 2, a.Reach)
	assert.Equal(t, 3, a.EmployeeCount)
	assert.Equal(t, 66.67, a.UsagePercent)
}

func TestPollSummary(t *testing.T) {
	benefits := &fakeBenefits{items: []model.Benefit{{ID: 1, Name: "gym"}, {ID: 2, Name: "pool"}}}
	polls := &fakePolls{results: []model.PollResult{
		{UserID: uuid.New(), SelectedBenefits: []int64{1, 2}, SatisfactionRate: 5},
		{UserID: uuid.New(), SelectedBenefits: []int64{1, 42}, SatisfactionRate: 4},
		{UserID: uuid.New(), SatisfactionRate: 2},
	}}
	svc := NewAnalyticsService(benefits, &fakeRequests{}, &fakeUsers{}, polls)

	sum, err := svc.PollSummary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, sum.Submissions)
	assert.Equal(t, 3.67, sum.AverageRating)
	assert.Equal(t, []BenefitVotes{
		{BenefitID: 1, BenefitName: "gym", Selections: 2},
		{BenefitID: 2, BenefitName: "pool", Selections: 1},
	}, sum.Benefits)
}

func TestPollSummary_Empty(t *testing.T) {
	svc := NewAnalyticsService(&fakeBenefits{}, &fakeRequests{}, &fakeUsers{}, &fakePolls{})

	sum, err := svc.PollSummary(context.Background())

	require.NoError(t, err)
	assert.Zero(t, sum.Submissions)
	assert.Zero(t, sum.AverageRating)
	assert.Empty(t, sum.Benefits)
}
