//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mustMoney(amount, currency string) model.Money {
	m, err := model.ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// snapshotter is implemented by every in-memory repo so MockTxManager can undo
// the writes of a rolled back transaction.
type snapshotter interface {
	snapshot() (restore func())
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================
// Transaction manager
// =============================

type mockTx struct{ n int }

// MockTxManager runs fn against the in-memory repos and restores them when fn fails,
// so a rolled back unit of work leaves no trace. ConflictsLeft makes that many
// otherwise successful commits fail with domain.ErrConflict.
type MockTxManager struct {
	serial        sync.Mutex // one transaction at a time, like a serializable store
	mu            sync.Mutex
	stores        []snapshotter
	ConflictsLeft int
	Commits       int
	Rollbacks     int
	Options       []pgx.TxOptions

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(stores ...snapshotter) *MockTxManager {
	return &MockTxManager{stores: stores}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.serial.Lock()
	defer m.serial.Unlock()

	m.mu.Lock()
	m.Options = append(m.Options, txOpt)
	n := m.Commits + m.Rollbacks + 1
	m.mu.Unlock()

	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.snapshot())
	}

	err := fn(ctx, &mockTx{n: n})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil && m.ConflictsLeft > 0 {
		m.ConflictsLeft--
		err = fmt.Errorf("commit: %w", domain.ErrConflict)
	}
	if err != nil {
		for _, r := range restores {
			r()
		}
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// =============================
// Repositories
// =============================

// ---- Subscriptions ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Subscription
	Reads int

	SaveFunc     func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	s, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Get returns the stored row for assertions.
func (m *MockSubscriptionRepo) Get(id string) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id]
}

func (m *MockSubscriptionRepo) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
}

func (m *MockSubscriptionRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.data)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

// ---- Purchases ----

type MockPurchaseRepo struct {
	mu   sync.Mutex
	data map[string]*model.Purchase

	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.Purchase) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error)
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{data: map[string]*model.Purchase{}}
}

func (m *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.data[p.ID] = &cp
	return nil
}

func (m *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPurchaseRepo) Get(id string) *model.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id]
}

func (m *MockPurchaseRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockPurchaseRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.data)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

// ---- Transactions ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Transaction

	SaveFunc             func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	FindByIDFunc         func(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error)
	FindByPurchaseIDFunc func(ctx context.Context, tx repository.Tx, purchaseID string) (*model.Transaction, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: map[string]*model.Transaction{}}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.data[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepo) FindByPurchaseID(ctx context.Context, tx repository.Tx, purchaseID string) (*model.Transaction, error) {
	if m.FindByPurchaseIDFunc != nil {
		return m.FindByPurchaseIDFunc(ctx, tx, purchaseID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data {
		if t.PurchaseID == purchaseID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) Get(id string) *model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id]
}

func (m *MockTransactionRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.data)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

// ---- Access tokens ----

type MockAccessTokenRepo struct {
	mu   sync.Mutex
	data map[string]*model.AccessToken

	SaveFunc                  func(ctx context.Context, tx repository.Tx, t *model.AccessToken) error
	FindByPurchaseAndHashFunc func(ctx context.Context, tx repository.Tx, purchaseID, hash string) (*model.AccessToken, error)
}

var _ repository.AccessTokenRepository = (*MockAccessTokenRepo)(nil)

func NewMockAccessTokenRepo() *MockAccessTokenRepo {
	return &MockAccessTokenRepo{data: map[string]*model.AccessToken{}}
}

func (m *MockAccessTokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.AccessToken) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.data[t.ID] = &cp
	return nil
}

func (m *MockAccessTokenRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockAccessTokenRepo) FindByPurchaseAndHash(ctx context.Context, tx repository.Tx, purchaseID, hash string) (*model.AccessToken, error) {
	if m.FindByPurchaseAndHashFunc != nil {
		return m.FindByPurchaseAndHashFunc(ctx, tx, purchaseID, hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data {
		if t.PurchaseID == purchaseID && t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccessTokenRepo) DeleteSpent(ctx context.Context, tx repository.Tx, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.data {
		if (t.Used && t.UsedAt != nil && t.UsedAt.Before(before)) || t.ExpiresAt.Before(before) {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

func (m *MockAccessTokenRepo) Get(id string) *model.AccessToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id]
}

func (m *MockAccessTokenRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.data)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

// ---- Disputes ----

type MockDisputeRepo struct {
	mu   sync.Mutex
	data map[string]*model.Dispute

	SaveFunc                func(ctx context.Context, tx repository.Tx, d *model.Dispute) error
	CountOpenByReporterFunc func(ctx context.Context, tx repository.Tx, reporterID, subscriptionID string) (int, error)
}

var _ repository.DisputeRepository = (*MockDisputeRepo)(nil)

func NewMockDisputeRepo() *MockDisputeRepo {
	return &MockDisputeRepo{data: map[string]*model.Dispute{}}
}

func (m *MockDisputeRepo) Save(ctx context.Context, tx repository.Tx, d *model.Dispute) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.Evidence = append([]model.Evidence(nil), d.Evidence...)
	m.data[d.ID] = &cp
	return nil
}

func (m *MockDisputeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	cp.Evidence = append([]model.Evidence(nil), d.Evidence...)
	return &cp, nil
}

func (m *MockDisputeRepo) FindOpenByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) (*model.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.data {
		if d.ReportedEntityType == model.EntityPurchase && d.ReportedEntityID == purchaseID && d.Status.IsOpen() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDisputeRepo) CountOpenByReporter(ctx context.Context, tx repository.Tx, reporterID, subscriptionID string) (int, error) {
	if m.CountOpenByReporterFunc != nil {
		return m.CountOpenByReporterFunc(ctx, tx, reporterID, subscriptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.data {
		if d.ReporterID == reporterID && d.SubscriptionID == subscriptionID && d.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (m *MockDisputeRepo) Get(id string) *model.Dispute {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id]
}

func (m *MockDisputeRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockDisputeRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.data)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

// ---- Groups ----

type MockGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*model.Group
	roles  map[string]map[string]model.GroupRole // groupID -> userID -> role

	OwnerOfFunc func(ctx context.Context, tx repository.Tx, groupID string) (string, error)
}

var _ repository.GroupRepository = (*MockGroupRepo)(nil)

func NewMockGroupRepo() *MockGroupRepo {
	return &MockGroupRepo{groups: map[string]*model.Group{}, roles: map[string]map[string]model.GroupRole{}}
}

func (m *MockGroupRepo) Save(ctx context.Context, tx repository.Tx, g *model.Group) error {
	m.mu.Lock()
	cp := *g
	m.groups[g.ID] = &cp
	m.mu.Unlock()
	return m.AddMember(ctx, tx, g.ID, g.OwnerID, model.GroupRoleOwner)
}

func (m *MockGroupRepo) AddMember(ctx context.Context, tx repository.Tx, groupID, userID string, role model.GroupRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[groupID] == nil {
		m.roles[groupID] = map[string]model.GroupRole{}
	}
	m.roles[groupID][userID] = role
	return nil
}

func (m *MockGroupRepo) OwnerOf(ctx context.Context, tx repository.Tx, groupID string) (string, error) {
	if m.OwnerOfFunc != nil {
		return m.OwnerOfFunc(ctx, tx, groupID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return g.OwnerID, nil
}

func (m *MockGroupRepo) RoleOf(ctx context.Context, tx repository.Tx, groupID, userID string) (model.GroupRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[groupID][userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

// ---- Users ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	SaveFunc func(ctx context.Context, tx repository.Tx, u *model.User) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.TelegramID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) snapshot() func() {
	m.mu.Lock()
	saved := copyMap(m.byID)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.byID = saved
		m.mu.Unlock()
	}
}

// ---- Notification log ----

type MockNotificationLogRepo struct {
	mu      sync.Mutex
	entries map[string]struct{} // "userID:kind:relatedID"

	ExistsFunc func(ctx context.Context, tx repository.Tx, userID, kind, relatedID string) (bool, error)
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{entries: map[string]struct{}{}}
}

func (m *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, userID, kind, relatedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID+":"+kind+":"+relatedID] = struct{}{}
	return nil
}

func (m *MockNotificationLogRepo) Exists(ctx context.Context, tx repository.Tx, userID, kind, relatedID string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, tx, userID, kind, relatedID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[userID+":"+kind+":"+relatedID]
	return ok, nil
}

// =============================
// Adapters
// =============================

// RecordingPublisher captures every batch handed to PublishAll.
type RecordingPublisher struct {
	mu      sync.Mutex
	Batches [][]model.Event
}

var _ adapter.EventPublisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) PublishAll(ctx context.Context, events []model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Batches = append(p.Batches, append([]model.Event(nil), events...))
}

func (p *RecordingPublisher) Count(t model.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.Batches {
		for _, e := range b {
			if e.Type == t {
				n++
			}
		}
	}
	return n
}

func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Batches = nil
}

type MockPaymentGateway struct {
	mu       sync.Mutex
	Sessions []adapter.CheckoutRequest
	Refunds  []adapter.RefundRequest

	CreateSessionFunc func(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error)
	RefundFunc        func(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	g.mu.Lock()
	g.Sessions = append(g.Sessions, req)
	g.mu.Unlock()
	if g.CreateSessionFunc != nil {
		return g.CreateSessionFunc(ctx, req)
	}
	return adapter.CheckoutSession{SessionID: "sess-" + req.TransactionID, PaymentURL: "https://pay.test/" + req.TransactionID}, nil
}

func (g *MockPaymentGateway) Refund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	g.mu.Lock()
	g.Refunds = append(g.Refunds, req)
	g.mu.Unlock()
	if g.RefundFunc != nil {
		return g.RefundFunc(ctx, req)
	}
	return adapter.RefundResult{RefundID: "ref-" + req.TransactionID, Status: "DONE"}, nil
}

type MockNotificationSink struct {
	mu   sync.Mutex
	Sent []adapter.Notification

	NotifyFunc func(ctx context.Context, n adapter.Notification) error
}

var _ adapter.NotificationSink = (*MockNotificationSink)(nil)

func (s *MockNotificationSink) Notify(ctx context.Context, n adapter.Notification) error {
	if s.NotifyFunc != nil {
		if err := s.NotifyFunc(ctx, n); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, n)
	return nil
}

// fakeVault marks sealed text with a prefix instead of encrypting it.
type fakeVault struct{}

var _ adapter.InstructionVault = fakeVault{}

func (fakeVault) Seal(id, p string) (string, error) { return "sealed:" + id + ":" + p, nil }

func (fakeVault) Open(id, s string) (string, error) {
	prefix := "sealed:" + id + ":"
	if !strings.HasPrefix(s, prefix) {
		return "", errors.New("not sealed for " + id)
	}
	return strings.TrimPrefix(s, prefix), nil
}

type fakeHasher struct{}

var _ adapter.TokenHasher = fakeHasher{}

func (fakeHasher) Hash(secret string) string { return "h:" + secret }

// =============================
// Fixture
// =============================

const (
	groupID  = "group-1"
	ownerID  = "owner-1"
	adminID  = "admin-1"
	memberID = "member-1"
	buyerID  = "buyer-1"
)

type fixture struct {
	subs      *MockSubscriptionRepo
	purchases *MockPurchaseRepo
	txns      *MockTransactionRepo
	tokens    *MockAccessTokenRepo
	disputes  *MockDisputeRepo
	groups    *MockGroupRepo
	tm        *MockTxManager
	pub       *RecordingPublisher
	gateway   *MockPaymentGateway
	clock     *testClock
}

func newFixture() *fixture {
	f := &fixture{
		subs:      NewMockSubscriptionRepo(),
		purchases: NewMockPurchaseRepo(),
		txns:      NewMockTransactionRepo(),
		tokens:    NewMockAccessTokenRepo(),
		disputes:  NewMockDisputeRepo(),
		groups:    NewMockGroupRepo(),
		pub:       &RecordingPublisher{},
		gateway:   &MockPaymentGateway{},
		clock:     newTestClock(),
	}
	f.tm = NewMockTxManager(f.subs, f.purchases, f.txns, f.tokens, f.disputes)

	ctx := context.Background()
	_ = f.groups.Save(ctx, repository.NoTX, &model.Group{ID: groupID, OwnerID: ownerID, Name: "Family plan"})
	_ = f.groups.AddMember(ctx, repository.NoTX, groupID, adminID, model.GroupRoleAdmin)
	_ = f.groups.AddMember(ctx, repository.NoTX, groupID, memberID, model.GroupRoleMember)
	return f
}

func (f *fixture) stores() usecase.Stores {
	return usecase.Stores{
		TxManager:     f.tm,
		Subscriptions: f.subs,
		Purchases:     f.purchases,
		Transactions:  f.txns,
		AccessTokens:  f.tokens,
		Disputes:      f.disputes,
		Groups:        f.groups,
	}
}

func (f *fixture) retry() usecase.RetryPolicy {
	return usecase.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func (f *fixture) saga() usecase.PurchaseSaga {
	return usecase.NewPurchaseSaga(f.stores(), f.gateway, f.pub, usecase.SagaConfig{
		PlatformFeePercent: 0.05,
		Currency:           "PLN",
		CallbackURL:        "https://market.test/api/v1/payments/callback",
		Retry:              f.retry(),
		Now:                f.clock.Now,
	}, newTestLogger())
}

func (f *fixture) access() usecase.AccessGateway {
	return usecase.NewAccessGateway(f.stores(), fakeVault{}, fakeHasher{}, f.pub, usecase.AccessConfig{
		TokenTTL:       time.Hour,
		ResolutionDays: 3,
		Retry:          f.retry(),
		Now:            f.clock.Now,
	}, newTestLogger())
}

// seedSubscription stores an active subscription of the fixture group.
func (f *fixture) seedSubscription(id string, slots int, price string) *model.Subscription {
	sub, err := model.NewSubscription(id, groupID, "netflix", slots, mustMoney(price, "PLN"), f.clock.Now())
	if err != nil {
		panic(err)
	}
	ref := "sealed:" + id + ":login: family@example.com / pass: hunter2"
	sub.AccessInstructionsRef = &ref
	_ = f.subs.Save(context.Background(), repository.NoTX, sub)
	return sub
}

// completedPurchase runs a purchase through payment confirmation.
func (f *fixture) completedPurchase(subID string) *usecase.PurchaseResult {
	ctx := context.Background()
	s := f.saga()
	res, err := s.ProcessPurchaseTransaction(ctx, usecase.PurchaseRequest{BuyerID: buyerID, SubscriptionID: subID, PaymentMethod: model.PaymentMethodBlik})
	if err != nil {
		panic(err)
	}
	if _, err := s.CompleteTransaction(ctx, res.TransactionID, "pay-"+res.TransactionID); err != nil {
		panic(err)
	}
	return res
}
