package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
	"github.com/iliyamo/benefits-cafeteria/internal/storage"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ptr[T any](v T) *T { return &v }

// fakeBenefits is an in-memory catalog.
type fakeBenefits struct {
	items  []model.Benefit
	nextID int64
}

func (f *fakeBenefits) Create(_ context.Context, b *model.Benefit) error {
	f.nextID++
	b.ID = 100 + f.nextID
	f.items = append(f.items, *b)
	return nil
}

func (f *fakeBenefits) GetByID(_ context.Context, id int64) (model.Benefit, error) {
	for _, b := range f.items {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Benefit{}, repository.ErrBenefitNotFound
}

func (f *fakeBenefits) List(context.Context) ([]model.Benefit, error) {
	return append([]model.Benefit(nil), f.items...), nil
}

func (f *fakeBenefits) ExistingIDs(_ context.Context, ids []int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	for _, id := range ids {
		for _, b := range f.items {
			if b.ID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (f *fakeBenefits) Update(_ context.Context, b model.Benefit) error {
	for i := range f.items {
		if f.items[i].ID == b.ID {
			f.items[i] = b
			return nil
		}
	}
	return repository.ErrBenefitNotFound
}

func (f *fakeBenefits) SetCover(_ context.Context, id int64, path *string) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].CoverPath = path
			return nil
		}
	}
	return repository.ErrBenefitNotFound
}

func (f *fakeBenefits) Delete(_ context.Context, id int64) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrBenefitNotFound
}

type fakeCategories struct{ items []model.Category }

func (f *fakeCategories) List(context.Context) ([]model.Category, error) { return f.items, nil }

// fakeUsers stores profiles keyed by id.
type fakeUsers struct {
	profiles  map[uuid.UUID]model.UserProfile
	employees int
	verified  []uuid.UUID
	createErr error
}

func newFakeUsers(ps ...model.UserProfile) *fakeUsers {
	f := &fakeUsers{profiles: map[uuid.UUID]model.UserProfile{}}
	for _, p := range ps {
		f.profiles[p.User.ID] = p
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User, info model.UserInfo) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, p := range f.profiles {
		if p.User.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	info.UserID = u.ID
	f.profiles[u.ID] = model.UserProfile{User: *u, Info: info}
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	p, ok := f.profiles[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return p.User, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, p := range f.profiles {
		if p.User.Email == email {
			return p.User, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetProfile(_ context.Context, id uuid.UUID) (model.UserProfile, error) {
	p, ok := f.profiles[id]
	if !ok || !p.User.Active {
		return model.UserProfile{}, repository.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeUsers) ListActive(context.Context) ([]model.UserProfile, error) {
	var out []model.UserProfile
	for _, p := range f.profiles {
		if p.User.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.Email < out[j].User.Email })
	return out, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uuid.UUID, info model.UserInfo, role model.Role) error {
	p, ok := f.profiles[id]
	if !ok || !p.User.Active {
		return repository.ErrUserNotFound
	}
	info.UserID = id
	p.Info = info
	p.User.Role = role
	f.profiles[id] = p
	return nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := f.profiles[id]
	if !ok || !p.User.Active {
		return repository.ErrUserNotFound
	}
	p.User.Active = false
	f.profiles[id] = p
	return nil
}

func (f *fakeUsers) MarkVerified(_ context.Context, id uuid.UUID) error {
	p := f.profiles[id]
	p.User.EmailVerified = true
	f.profiles[id] = p
	f.verified = append(f.verified, id)
	return nil
}

func (f *fakeUsers) CountEmployees(context.Context) (int, error) { return f.employees, nil }

func (f *fakeUsers) ListAdminEmails(context.Context) ([]string, error) {
	var out []string
	for _, p := range f.profiles {
		if p.User.IsAdmin() && p.User.Active {
			out = append(out, p.User.Email)
		}
	}
	sort.Strings(out)
	return out, nil
}

// fakeRequests mirrors RequestRepo semantics in memory.
type fakeRequests struct {
	benefits  *fakeBenefits
	rows      []model.BenefitRequest
	createErr error
	counts    []repository.StatusCount
	reach     int
}

func (f *fakeRequests) Create(_ context.Context, req *model.BenefitRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	req.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *req)
	return nil
}

func (f *fakeRequests) row(r model.BenefitRequest) model.RequestRow {
	name := ""
	if f.benefits != nil {
		if b, err := f.benefits.GetByID(context.Background(), r.BenefitID); err == nil {
			name = b.DisplayName()
		}
	}
	return model.RequestRow{Request: r, BenefitName: name}
}

func (f *fakeRequests) GetRow(_ context.Context, id int64) (model.RequestRow, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return f.row(r), nil
		}
	}
	return model.RequestRow{}, repository.ErrRequestNotFound
}

func (f *fakeRequests) ListByUser(_ context.Context, userID uuid.UUID) ([]model.RequestRow, error) {
	var out []model.RequestRow
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, f.row(f.rows[i]))
		}
	}
	return out, nil
}

func (f *fakeRequests) ListAll(_ context.Context, desc bool) ([]model.RequestRow, error) {
	var out []model.RequestRow
	for _, r := range f.rows {
		out = append(out, f.row(r))
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (f *fakeRequests) Transition(_ context.Context, id int64, to model.RequestStatus) (model.BenefitRequest, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			if !f.rows[i].Status.CanTransitionTo(to) {
				return f.rows[i], repository.ErrConflict
			}
			f.rows[i].Status = to
			return f.rows[i], nil
		}
	}
	return model.BenefitRequest{}, repository.ErrRequestNotFound
}

func (f *fakeRequests) CountByBenefitStatus(context.Context) ([]repository.StatusCount, error) {
	return f.counts, nil
}

func (f *fakeRequests) CountRequesters(context.Context) (int, error) { return f.reach, nil }

// fakeBlobs keeps payloads in memory.
type fakeBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	putErr  error
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{data: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, name string, r io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[name] = b
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeBlobs) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// fakePublisher records published events on a channel.
type fakePublisher struct {
	events chan queue.Event
	err    error
}

func newFakePublisher() *fakePublisher { return &fakePublisher{events: make(chan queue.Event, 16)} }

func (f *fakePublisher) Publish(_ context.Context, ev queue.Event) error {
	f.events <- ev
	return f.err
}

func (f *fakePublisher) next(t *testing.T) queue.Event {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return queue.Event{}
	}
}

func (f *fakePublisher) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakePolls struct {
	status  model.PollStatus
	results []model.PollResult
}

func (f *fakePolls) GetStatus(context.Context) (model.PollStatus, error) { return f.status, nil }

func (f *fakePolls) SetStatus(_ context.Context, open bool, now time.Time) (model.PollStatus, error) {
	f.status = model.PollStatus{IsOpen: open, Version: f.status.Version + 1, UpdatedAt: now}
	return f.status, nil
}

func (f *fakePolls) InsertResult(_ context.Context, res *model.PollResult) error {
	res.ID = int64(len(f.results) + 1)
	f.results = append(f.results, *res)
	return nil
}

func (f *fakePolls) ListResults(context.Context) ([]model.PollResult, error) { return f.results, nil }

type storedToken struct {
	userID uuid.UUID
	exp    time.Time
}

type fakeTokens struct {
	byHash  map[string]storedToken
	revoked []uuid.UUID
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byHash: map[string]storedToken{}} }

func (f *fakeTokens) Store(_ context.Context, userID uuid.UUID, hash string, exp time.Time) error {
	f.byHash[hash] = storedToken{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) Consume(_ context.Context, hash string, now time.Time) (uuid.UUID, error) {
	tok, ok := f.byHash[hash]
	if !ok {
		return uuid.Nil, repository.ErrTokenInvalid
	}
	delete(f.byHash, hash)
	if now.After(tok.exp) {
		return uuid.Nil, repository.ErrTokenInvalid
	}
	return tok.userID, nil
}

func (f *fakeTokens) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

var errBoom = errors.New("boom")
