package tokensrv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/token/tokensrv"
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

func (r *memUserRepo) List(_ context.Context, opts kernel.PaginationOptions) (kernel.Paginated[*user.User], error) {
	items := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		items = append(items, u)
	}
	return kernel.NewPaginated(items, 1, len(items), len(items)), nil
}

func (r *memUserRepo) Delete(_ context.Context, id kernel.UserID) error {
	delete(r.users, id)
	return nil
}

// memSessionStore consumes atomically under a mutex, like the Redis GETDEL
// it stands in for.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]kernel.UserID
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]kernel.UserID)}
}

func (s *memSessionStore) Store(_ context.Context, refreshToken string, userID kernel.UserID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[refreshToken] = userID
	return nil
}

func (s *memSessionStore) Consume(_ context.Context, refreshToken string) (kernel.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.sessions[refreshToken]
	if !ok {
		return "", token.ErrInvalid()
	}
	delete(s.sessions, refreshToken)
	return userID, nil
}

func (s *memSessionStore) RevokeAllForUser(_ context.Context, userID kernel.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, uid := range s.sessions {
		if uid == userID {
			delete(s.sessions, t)
		}
	}
	return nil
}

func (s *memSessionStore) get(refreshToken string) (kernel.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.sessions[refreshToken]
	return userID, ok
}

type fakeSigner struct{}

func (fakeSigner) SignAccessToken(userID kernel.UserID, _ string, _ []string) (string, error) {
	return "access-" + userID.String(), nil
}

func (fakeSigner) ValidateAccessToken(_ string) (*token.Claims, error) {
	return nil, token.ErrInvalid()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func newService(repo user.Repository, sessions token.SessionStore) (*tokensrv.TokenService, *recordingPublisher) {
	publisher := &recordingPublisher{}
	svc := tokensrv.NewTokenService(repo, sessions, fakeSigner{}, publisher, 15*time.Minute, 30*24*time.Hour)
	return svc, publisher
}

func activeUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.New("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// --- tests ---

func TestIssue_ReturnsPairWithAccessTTL(t *testing.T) {
	u := activeUser(t)
	sessions := newMemSessionStore()
	svc, _ := newService(newMemUserRepo(u), sessions)

	pair, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken != "access-"+u.ID.String() {
		t.Fatalf("unexpected access token %q", pair.AccessToken)
	}
	if pair.RefreshToken == "" {
		t.Fatal("expected a refresh token")
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("expected expires_in 900, got %d", pair.ExpiresIn)
	}
	if owner, ok := sessions.get(pair.RefreshToken); !ok || owner != u.ID {
		t.Fatal("refresh token was not stored")
	}
}

func TestRefresh_RotatesAndBurnsOldToken(t *testing.T) {
	u := activeUser(t)
	svc, publisher := newService(newMemUserRepo(u), newMemSessionStore())

	pair, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The original token is single-use.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errx.IsCode(err, token.CodeInvalid) {
		t.Fatalf("expected TOKEN_INVALID on reuse, got %v", err)
	}

	found := false
	for _, e := range publisher.events {
		if e.Type == audit.EventTokenRefreshed && e.UserID == u.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a TOKEN_REFRESHED audit event")
	}
}

func TestRefresh_ConcurrentCallsYieldExactlyOneRotation(t *testing.T) {
	u := activeUser(t)
	svc, _ := newService(newMemUserRepo(u), newMemSessionStore())

	pair, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		if !errx.IsCode(err, token.CodeInvalid) {
			t.Fatalf("unexpected error from losing refresh: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", successes)
	}
}

func TestRefresh_DisabledUserGetsNoPairAndTokenIsBurned(t *testing.T) {
	u := activeUser(t)
	svc, _ := newService(newMemUserRepo(u), newMemSessionStore())

	pair, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	u.Disable()

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errx.IsCode(err, user.CodeDisabled) {
		t.Fatalf("expected USER_DISABLED, got %v", err)
	}

	// The token was consumed before the status gate fired.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errx.IsCode(err, token.CodeInvalid) {
		t.Fatalf("expected TOKEN_INVALID after burn, got %v", err)
	}
}

func TestRefresh_DeletedUserLooksLikeInvalidToken(t *testing.T) {
	u := activeUser(t)
	repo := newMemUserRepo(u)
	svc, _ := newService(repo, newMemSessionStore())

	pair, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := repo.Delete(context.Background(), u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errx.IsCode(err, token.CodeInvalid) {
		t.Fatalf("expected TOKEN_INVALID for deleted user, got %v", err)
	}
}

func TestRevoke_UnknownTokenIsIdempotent(t *testing.T) {
	u := activeUser(t)
	svc, publisher := newService(newMemUserRepo(u), newMemSessionStore())

	if err := svc.Revoke(context.Background(), "never-issued"); err != nil {
		t.Fatalf("expected nil for unknown token, got %v", err)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no audit events, got %d", len(publisher.events))
	}
}

func TestRevoke_RemovesEverySessionOfTheUser(t *testing.T) {
	u := activeUser(t)
	svc, publisher := newService(newMemUserRepo(u), newMemSessionStore())

	first, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := svc.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Revoke(context.Background(), first.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// The sibling session is gone too.
	if _, err := svc.Refresh(context.Background(), second.RefreshToken); !errx.IsCode(err, token.CodeInvalid) {
		t.Fatalf("expected TOKEN_INVALID for sibling session, got %v", err)
	}

	found := false
	for _, e := range publisher.events {
		if e.Type == audit.EventTokenRevoked && e.UserID == u.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a TOKEN_REVOKED audit event")
	}
}
