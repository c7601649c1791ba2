package federationsrv_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/federation"
	"github.com/aibles/iam/pkg/iam/federation/federationsrv"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/kernel"
)

// --- mocks ---

type memUserRepo struct {
	users map[kernel.UserID]*user.User
}

func newMemUserRepo(users ...*user.User) *memUserRepo {
	r := &memUserRepo{users: make(map[kernel.UserID]*user.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return user.ErrEmailExists()
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) Save(_ context.Context, u *user.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return user.ErrNotFound()
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound()
	}
	return u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound()
}

func (r *memUserRepo) FindByExternalSubject(_ context.Context, subject string) (*user.User, error) {
	for _, u := range r.users {
		if u.ExternalSubject != nil && *u.ExternalSubject == subject {
			return u, nil
		}
	}
	return nil, user.ErrNotFound()
}

func (r *memUserRepo) List(_ context.Context, _ kernel.PaginationOptions) (kernel.Paginated[*user.User], error) {
	return kernel.Paginated[*user.User]{}, nil
}

func (r *memUserRepo) Delete(_ context.Context, id kernel.UserID) error {
	delete(r.users, id)
	return nil
}

type memStateStore struct {
	states map[string]struct{}
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: make(map[string]struct{})}
}

func (s *memStateStore) Issue(_ context.Context, state string, _ time.Duration) error {
	s.states[state] = struct{}{}
	return nil
}

func (s *memStateStore) Consume(_ context.Context, state string) error {
	if _, ok := s.states[state]; !ok {
		return federation.ErrInvalidState()
	}
	delete(s.states, state)
	return nil
}

type fakeProvider struct {
	identity *federation.ExternalIdentity
	err      error
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.example/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, _ string) (*federation.ExternalIdentity, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type fakeTokenIssuer struct {
	issued int
}

func (i *fakeTokenIssuer) Issue(_ context.Context, u *user.User) (*token.Pair, error) {
	i.issued++
	return &token.Pair{AccessToken: "access-" + u.ID.String(), RefreshToken: "refresh", ExpiresIn: 900}, nil
}

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

func (p *recordingPublisher) has(eventType audit.EventType) bool {
	for _, e := range p.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// --- fixtures ---

type fixture struct {
	service   *federationsrv.FederationService
	users     *memUserRepo
	states    *memStateStore
	issuer    *fakeTokenIssuer
	publisher *recordingPublisher
}

func newFixture(users *memUserRepo, provider *fakeProvider) *fixture {
	states := newMemStateStore()
	issuer := &fakeTokenIssuer{}
	publisher := &recordingPublisher{}
	cfg := &config.GoogleConfig{Enabled: true, StateTTL: 10 * time.Minute}
	return &fixture{
		service:   federationsrv.NewFederationService(users, states, provider, issuer, publisher, cfg),
		users:     users,
		states:    states,
		issuer:    issuer,
		publisher: publisher,
	}
}

func googleIdentity() *federation.ExternalIdentity {
	return &federation.ExternalIdentity{
		Subject:     "google:12345",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}
}

func beginLogin(t *testing.T, f *fixture) string {
	t.Helper()

	authURL, err := f.service.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	idx := strings.Index(authURL, "state=")
	if idx < 0 {
		t.Fatalf("auth url carries no state: %q", authURL)
	}
	return authURL[idx+len("state="):]
}

// --- tests ---

func TestBegin_DisabledProvider(t *testing.T) {
	f := newFixture(newMemUserRepo(), &fakeProvider{identity: googleIdentity()})
	cfg := &config.GoogleConfig{Enabled: false}
	svc := federationsrv.NewFederationService(f.users, f.states, &fakeProvider{}, f.issuer, f.publisher, cfg)

	if _, err := svc.Begin(context.Background()); !errx.IsCode(err, federation.CodeDisabled) {
		t.Fatalf("expected PROVIDER_DISABLED, got %v", err)
	}
}

func TestComplete_UnknownStateIsRejected(t *testing.T) {
	f := newFixture(newMemUserRepo(), &fakeProvider{identity: googleIdentity()})

	if _, err := f.service.Complete(context.Background(), "forged", "code"); !errx.IsCode(err, federation.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestComplete_StateIsSingleUse(t *testing.T) {
	f := newFixture(newMemUserRepo(), &fakeProvider{identity: googleIdentity()})
	state := beginLogin(t, f)

	if _, err := f.service.Complete(context.Background(), state, "code"); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := f.service.Complete(context.Background(), state, "code"); !errx.IsCode(err, federation.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE on replay, got %v", err)
	}
}

func TestComplete_KnownSubjectLogsIn(t *testing.T) {
	subject := "google:12345"
	existing, err := user.New("alice@example.com", nil, &subject)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f := newFixture(newMemUserRepo(existing), &fakeProvider{identity: googleIdentity()})
	state := beginLogin(t, f)

	result, err := f.service.Complete(context.Background(), state, "code")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.User.ID != existing.ID {
		t.Fatalf("expected existing user %s, got %s", existing.ID, result.User.ID)
	}
	if result.User.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be stamped")
	}
	if f.issuer.issued != 1 {
		t.Fatalf("expected one token issuance, got %d", f.issuer.issued)
	}
	if !f.publisher.has(audit.EventLoginSucceeded) {
		t.Fatal("expected a LOGIN_SUCCEEDED audit event")
	}
}

func TestComplete_EmailMatchLinksAccount(t *testing.T) {
	existing, err := user.New("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f := newFixture(newMemUserRepo(existing), &fakeProvider{identity: googleIdentity()})
	state := beginLogin(t, f)

	result, err := f.service.Complete(context.Background(), state, "code")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.User.ID != existing.ID {
		t.Fatalf("expected existing user, got %s", result.User.ID)
	}
	if result.User.ExternalSubject == nil || *result.User.ExternalSubject != "google:12345" {
		t.Fatalf("expected linked subject, got %v", result.User.ExternalSubject)
	}
	if !f.publisher.has(audit.EventAccountLinked) {
		t.Fatal("expected an ACCOUNT_LINKED audit event")
	}
}

func TestComplete_UnknownIdentityProvisionsAccount(t *testing.T) {
	f := newFixture(newMemUserRepo(), &fakeProvider{identity: googleIdentity()})
	state := beginLogin(t, f)

	result, err := f.service.Complete(context.Background(), state, "code")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", result.User.Email)
	}
	if result.User.ExternalSubject == nil || *result.User.ExternalSubject != "google:12345" {
		t.Fatal("expected external subject on provisioned account")
	}
	if result.User.DisplayName == nil || *result.User.DisplayName != "Alice" {
		t.Fatal("expected provider display name on provisioned account")
	}
	if !f.publisher.has(audit.EventUserCreated) {
		t.Fatal("expected a USER_CREATED audit event")
	}
}

func TestComplete_DisabledAccountGetsNoTokens(t *testing.T) {
	subject := "google:12345"
	existing, err := user.New("alice@example.com", nil, &subject)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	existing.Disable()
	f := newFixture(newMemUserRepo(existing), &fakeProvider{identity: googleIdentity()})
	state := beginLogin(t, f)

	if _, err := f.service.Complete(context.Background(), state, "code"); !errx.IsCode(err, user.CodeDisabled) {
		t.Fatalf("expected USER_DISABLED, got %v", err)
	}
	if f.issuer.issued != 0 {
		t.Fatal("disabled account must not receive tokens")
	}
}

func TestComplete_ExchangeFailureSurfaces(t *testing.T) {
	f := newFixture(newMemUserRepo(), &fakeProvider{err: federation.ErrExchangeFailed()})
	state := beginLogin(t, f)

	if _, err := f.service.Complete(context.Background(), state, "code"); !errx.IsCode(err, federation.CodeExchangeFailed) {
		t.Fatalf("expected EXCHANGE_FAILED, got %v", err)
	}
}
