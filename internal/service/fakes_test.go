package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

// store is one in-memory database shared by every fake repository.
type store struct {
	mu          sync.Mutex
	nextID      uint
	accounts    map[string]*model.Account
	categories  map[uint]*model.Category
	requests    map[uint]*model.Request
	lines       map[uint]*model.RequestLine
	history     map[uint]*model.HistoryEntry
	attachments map[uint]*model.Attachment
}

func newStore() *store {
	return &store{
		accounts:    map[string]*model.Account{},
		categories:  map[uint]*model.Category{},
		requests:    map[uint]*model.Request{},
		lines:       map[uint]*model.RequestLine{},
		history:     map[uint]*model.HistoryEntry{},
		attachments: map[uint]*model.Attachment{},
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

// --- accounts ---

type fakeAccounts struct{ s *store }

func (f fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a.ID = f.s.id()
	cp := *a
	f.s.accounts[a.Username] = &cp
	return nil
}

func (f fakeAccounts) Update(_ context.Context, a *model.Account) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *a
	f.s.accounts[a.Username] = &cp
	return nil
}

func (f fakeAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f fakeAccounts) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for name := range f.s.accounts {
		if strings.EqualFold(name, username) {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAccounts) List(_ context.Context) ([]model.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]model.Account, 0, len(f.s.accounts))
	for _, a := range f.s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// --- categories ---

type fakeCategories struct{ s *store }

func (f fakeCategories) Create(_ context.Context, c *model.Category) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c.ID = f.s.id()
	cp := *c
	f.s.categories[c.ID] = &cp
	return nil
}

func (f fakeCategories) Update(_ context.Context, c *model.Category) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *c
	f.s.categories[c.ID] = &cp
	return nil
}

func (f fakeCategories) FindByID(_ context.Context, id uint) (*model.Category, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeCategories) ExistsByNameIgnoreCase(_ context.Context, name string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.categories {
		if strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeCategories) List(_ context.Context, activeOnly bool) ([]model.Category, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Category{}
	for _, c := range f.s.categories {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- requests ---

type fakeRequests struct{ s *store }

func (f fakeRequests) Create(_ context.Context, r *model.Request) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r.ID = f.s.id()
	cp := *r
	f.s.requests[r.ID] = &cp
	return nil
}

func (f fakeRequests) Update(_ context.Context, r *model.Request) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *r
	f.s.requests[r.ID] = &cp
	return nil
}

func (f fakeRequests) Delete(_ context.Context, id uint) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.requests, id)
	return nil
}

func (f fakeRequests) FindByID(_ context.Context, id uint) (*model.Request, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	if c, ok := f.s.categories[r.CategoryID]; ok {
		cp.Category = *c
	}
	return &cp, nil
}

func (f fakeRequests) matching(filter repository.RequestFilter) []model.Request {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []model.Request{}
	for _, r := range f.s.requests {
		if filter.Branch != "" && r.Branch != filter.Branch {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if term != "" {
			haystack := strings.ToLower(r.Title + " " + r.Description + " " + r.Supplier + " " + r.RequesterName)
			if filter.SearchBranch {
				haystack += " " + strings.ToLower(r.Branch)
			}
			if !strings.Contains(haystack, term) && fmt.Sprint(r.ID) != term && !strings.EqualFold(string(r.Status), term) {
				continue
			}
		}
		cp := *r
		if c, ok := f.s.categories[r.CategoryID]; ok {
			cp.Category = *c
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f fakeRequests) List(_ context.Context, filter repository.RequestFilter) ([]model.Request, error) {
	return f.matching(filter), nil
}

func (f fakeRequests) Search(_ context.Context, filter repository.RequestFilter) ([]model.Request, int64, error) {
	all := f.matching(filter)
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []model.Request{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (f fakeRequests) ApprovedRows(_ context.Context) ([]model.StatisticsRow, error) {
	rows := []model.StatisticsRow{}
	for _, r := range f.matching(repository.RequestFilter{Status: model.StatusApproved}) {
		rows = append(rows, model.StatisticsRow{
			CategoryName:   r.Category.Name,
			Branch:         r.Branch,
			EstimatedValue: r.EstimatedValue,
			ApprovedValue:  r.ApprovedValue,
		})
	}
	return rows, nil
}

func (f fakeRequests) CountByStatus(_ context.Context) ([]model.StatusCount, error) {
	counts := map[model.RequestStatus]int64{}
	for _, r := range f.matching(repository.RequestFilter{}) {
		counts[r.Status]++
	}
	out := []model.StatusCount{}
	for status, total := range counts {
		out = append(out, model.StatusCount{Status: status, Total: total})
	}
	return out, nil
}

// --- lines ---

type fakeLines struct{ s *store }

func (f fakeLines) CreateBatch(_ context.Context, lines []model.RequestLine) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i := range lines {
		lines[i].ID = f.s.id()
		cp := lines[i]
		f.s.lines[cp.ID] = &cp
	}
	return nil
}

func (f fakeLines) ListByRequest(ctx context.Context, requestID uint) ([]model.RequestLine, error) {
	return f.ListByRequests(ctx, []uint{requestID})
}

func (f fakeLines) ListByRequests(_ context.Context, ids []uint) ([]model.RequestLine, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	want := idSet(ids)
	out := []model.RequestLine{}
	for _, l := range f.s.lines {
		if want[l.RequestID] {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeLines) DeleteByRequest(_ context.Context, requestID uint) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, l := range f.s.lines {
		if l.RequestID == requestID {
			delete(f.s.lines, id)
		}
	}
	return nil
}

// --- history ---

type fakeHistory struct{ s *store }

func (f fakeHistory) Append(_ context.Context, e *model.HistoryEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e.ID = f.s.id()
	cp := *e
	f.s.history[e.ID] = &cp
	return nil
}

func (f fakeHistory) ListByRequest(ctx context.Context, requestID uint) ([]model.HistoryEntry, error) {
	return f.ListByRequests(ctx, []uint{requestID})
}

func (f fakeHistory) ListByRequests(_ context.Context, ids []uint) ([]model.HistoryEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	want := idSet(ids)
	out := []model.HistoryEntry{}
	for _, h := range f.s.history {
		if want[h.RequestID] {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeHistory) DeleteByRequest(_ context.Context, requestID uint) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, h := range f.s.history {
		if h.RequestID == requestID {
			delete(f.s.history, id)
		}
	}
	return nil
}

// --- attachments ---

type fakeAttachments struct {
	s         *store
	createErr error
}

func (f *fakeAttachments) Create(_ context.Context, a *model.Attachment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a.ID = f.s.id()
	cp := *a
	f.s.attachments[a.ID] = &cp
	return nil
}

func (f *fakeAttachments) FindByID(_ context.Context, id uint) (*model.Attachment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.attachments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttachments) ListByRequest(_ context.Context, requestID uint) ([]model.Attachment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Attachment{}
	for _, a := range f.s.attachments {
		if a.RequestID == requestID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAttachments) Delete(_ context.Context, id uint) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.attachments, id)
	return nil
}

func (f *fakeAttachments) DeleteByRequest(_ context.Context, requestID uint) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, a := range f.s.attachments {
		if a.RequestID == requestID {
			delete(f.s.attachments, id)
		}
	}
	return nil
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// fakeTx runs fn inline. Tests needing rollback semantics use sqlmock instead.
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// memoryBackend is a storage.Backend keeping blobs in a map.
type memoryBackend struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{blobs: map[string][]byte{}}
}

func (m *memoryBackend) EnsureFolder(_ context.Context, requestID uint) (string, error) {
	return fmt.Sprintf("folder:%d", requestID), nil
}

func (m *memoryBackend) Upload(_ context.Context, folderRef, name string, r io.Reader, _ int64, _ string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "mem:" + strings.TrimPrefix(folderRef, "folder:") + "/" + name
	m.blobs[ref] = data
	return ref, nil
}

func (m *memoryBackend) Download(_ context.Context, fileRef string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[fileRef]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, fileRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileRef)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.blobs, fileRef)
	return nil
}

func (m *memoryBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// recordingNotifier keeps every published event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.RequestEvent
}

func (n *recordingNotifier) Publish(e model.RequestEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

// fixture wires every service over one store.
type fixture struct {
	store       *store
	backend     *memoryBackend
	attachRepo  *fakeAttachments
	notifier    *recordingNotifier
	logHook     *logtest.Hook
	requests    RequestService
	attachments AttachmentService
	categories  CategoryService
	accounts    AccountService
	category    model.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newStore()
	backend := newMemoryBackend()
	attachRepo := &fakeAttachments{s: st}
	notifier := &recordingNotifier{}
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	resolver := principal.NewResolver(fakeAccounts{s: st})
	attachments := NewAttachmentService(attachRepo, fakeRequests{s: st}, backend, resolver, logger)
	f := &fixture{
		store:      st,
		backend:    backend,
		attachRepo: attachRepo,
		notifier:   notifier,
		logHook:    hook,
		requests: NewRequestService(fakeRequests{s: st}, fakeLines{s: st}, fakeHistory{s: st},
			fakeCategories{s: st}, fakeTx{}, resolver, attachments, notifier),
		attachments: attachments,
		categories:  NewCategoryService(fakeCategories{s: st}, resolver),
		accounts:    NewAccountService(fakeAccounts{s: st}, resolver),
	}

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	f.requests.(*requestService).now = tick
	attachments.(*attachmentService).now = tick

	f.addAccount(model.Account{Username: "admin", Name: "Admin", Role: model.RoleAdmin, Active: true})
	f.addAccount(model.Account{Username: "north", Name: "North", Role: model.RoleBranch, Branch: "North", Active: true})
	f.addAccount(model.Account{Username: "south", Name: "South", Role: model.RoleBranch, Branch: "South", Active: true})

	f.category = model.Category{Name: "Travel", Active: true}
	_ = fakeCategories{s: st}.Create(context.Background(), &f.category)
	return f
}

func (f *fixture) addAccount(a model.Account) {
	_ = fakeAccounts{s: f.store}.Create(context.Background(), &a)
}

func as(username string) context.Context {
	return principal.WithUsername(context.Background(), username)
}
