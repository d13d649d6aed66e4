package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
)

func newPollFixture(open bool) (*PollService, *fakePolls, *fakePublisher) {
	polls := &fakePolls{status: model.PollStatus{IsOpen: open}}
	benefits := &fakeBenefits{items: []model.Benefit{{ID: 1, Name: "gym"}, {ID: 2, Name: "pool"}}}
	pub := newFakePublisher()
	return NewPollService(polls, benefits, pub, fixedClock, nil), polls, pub
}

func TestPollSubmit(t *testing.T) {
	svc, polls, _ := newPollFixture(true)
	user := uuid.New()

	res, err := svc.Submit(context.Background(), user, []int64{1, 2}, 4)

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, fixedNow, res.CreatedAt)
	require.Len(t, polls.results, 1)
	assert.Equal(t, []int64{1, 2}, polls.results[0].SelectedBenefits)
	assert.Equal(t, user, polls.results[0].UserID)
}

func TestPollSubmit_SameUserTwice(t *testing.T) {
	svc, polls, _ := newPollFixture(true)
	user := uuid.New()

	_, err := svc.Submit(context.Background(), user, nil, 0)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), user, []int64{1}, 5)
	require.NoError(t, err)

	assert.Len(t, polls.results, 2)
	assert.Equal(t, []int64{}, polls.results[0].SelectedBenefits)
}

func TestPollSubmit_Errors(t *testing.T) {
	svc, _, _ := newPollFixture(true)
	closed, _, _ := newPollFixture(false)
	user := uuid.New()

	_, err := svc.Submit(context.Background(), user, nil, 6)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = svc.Submit(context.Background(), user, nil, -1)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = svc.Submit(context.Background(), user, []int64{1, 77}, 3)
	assert.ErrorIs(t, err, ErrInvalidBenefit)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = closed.Submit(context.Background(), user, nil, 3)
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestPollStatus_RepeatedReadsAgree(t *testing.T) {
	svc, _, _ := newPollFixture(true)

	a, err := svc.CurrentStatus(context.Background())
	require.NoError(t, err)
	b, err := svc.CurrentStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestPollSetStatus(t *testing.T) {
	svc, _, pub := newPollFixture(false)
	ctx := context.Background()

	st, err := svc.SetStatus(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.Equal(t, int64(1), st.Version)

	ev := pub.next(t)
	assert.Equal(t, queue.KindPollOpened, ev.Kind)
	assert.Equal(t, int64(1), ev.PollVersion)

	cur, err := svc.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.True(t, cur.IsOpen)

	st, err = svc.SetStatus(ctx, false)
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.Equal(t, int64(2), st.Version)
	pub.none(t)
}
