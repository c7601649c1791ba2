package usersrv_test

import (
	"context"
	"testing"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/iam/user/usersrv"
	"github.com/aibles/iam/pkg/kernel"
)

type memUserRepo struct {
	users map[kernel.UserID]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[kernel.UserID]*user.User)}
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

func (r *memUserRepo) FindByExternalSubject(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrNotFound()
}

func (r *memUserRepo) List(_ context.Context, opts kernel.PaginationOptions) (kernel.Paginated[*user.User], error) {
	opts = opts.Normalize()
	items := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		items = append(items, u)
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, len(items)), nil
}

func (r *memUserRepo) Delete(_ context.Context, id kernel.UserID) error {
	if _, ok := r.users[id]; !ok {
		return user.ErrNotFound()
	}
	delete(r.users, id)
	return nil
}

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

func newService() (*usersrv.UserService, *memUserRepo, *recordingPublisher) {
	repo := newMemUserRepo()
	publisher := &recordingPublisher{}
	return usersrv.NewUserService(repo, publisher), repo, publisher
}

func TestCreate_PublishesAuditEvent(t *testing.T) {
	svc, _, publisher := newService()

	u, err := svc.Create(context.Background(), "alice@example.com", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", u.Email)
	}

	if len(publisher.events) != 1 || publisher.events[0].Type != audit.EventUserCreated {
		t.Fatalf("expected a USER_CREATED event, got %+v", publisher.events)
	}
}

func TestCreate_DuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newService()

	if _, err := svc.Create(context.Background(), "alice@example.com", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice@example.com", nil); !errx.IsCode(err, user.CodeEmailExists) {
		t.Fatalf("expected EMAIL_EXISTS, got %v", err)
	}
}

func TestChangeStatus_DisablesAccount(t *testing.T) {
	svc, repo, publisher := newService()

	u, err := svc.Create(context.Background(), "alice@example.com", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := svc.ChangeStatus(context.Background(), u.ID, user.StatusDisabled)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if changed.IsActive() {
		t.Fatal("expected disabled account")
	}

	stored, _ := repo.FindByID(context.Background(), u.ID)
	if stored.IsActive() {
		t.Fatal("status change was not persisted")
	}

	found := false
	for _, e := range publisher.events {
		if e.Type == audit.EventUserStatusChanged && e.Metadata["status"] == "DISABLED" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a USER_STATUS_CHANGED event with the new status")
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newService()

	u, err := svc.Create(context.Background(), "alice@example.com", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateProfile(context.Background(), u.ID, "Alice A.")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName == nil || *updated.DisplayName != "Alice A." {
		t.Fatalf("unexpected display name %v", updated.DisplayName)
	}
}

func TestDelete_UnknownUser(t *testing.T) {
	svc, _, _ := newService()

	if err := svc.Delete(context.Background(), kernel.NewUserID()); !errx.IsCode(err, user.CodeNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
}
