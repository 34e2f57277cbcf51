package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users        map[string]*domain.User // by id
	findAllCalls int
	saveCalls    int
	findByIDErr  error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]domain.Role(nil), u.Roles...)
	return &clone
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.findByIDErr != nil {
		return nil, r.findByIDErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// Save mirrors the unique email index of the real stores.
func (r *stubUserRepo) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	r.saveCalls++
	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) DeleteByID(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) FindAll(_ context.Context) ([]*domain.User, error) {
	r.findAllCalls++
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

// stubHasher is reversible on purpose so tests can inspect what was hashed.
type stubHasher struct {
	verifyCalls int
}

func (h *stubHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (h *stubHasher) Verify(plain, hash string) bool {
	h.verifyCalls++
	return hash == "hashed:"+plain
}

type recordingAudit struct {
	events []domain.AccountEvent
}

func (a *recordingAudit) Publish(e domain.AccountEvent) { a.events = append(a.events, e) }

type fixture struct {
	svc    *AccountService
	repo   *stubUserRepo
	hasher *stubHasher
	audit  *recordingAudit
	tokens *TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret, TTL: time.Hour}, clock)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	f := &fixture{
		repo:   newStubUserRepo(),
		hasher: &stubHasher{},
		audit:  &recordingAudit{},
		tokens: tokens,
	}
	f.svc = NewAccountService(f.repo, f.hasher, tokens, f.audit, clock, zerolog.Nop())
	return f
}

func (f *fixture) register(t *testing.T, name, email, password string) *domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), ports.RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (f *fixture) makeAdmin(t *testing.T, u *domain.User) {
	t.Helper()
	stored := f.repo.users[u.ID]
	stored.Roles = append(stored.Roles, domain.RoleAdmin)
}

// ---------------------------------------------------------------------------
// Register / Login
// ---------------------------------------------------------------------------

func TestAccountService_Register_Scenario(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, "Jesse", "j@x.com", "123456")

	if user.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}
	if len(user.Roles) != 1 || user.Roles[0] != domain.RoleUser {
		t.Fatalf("expected roles {ROLE_USER}, got %v", user.Roles)
	}
	if user.PasswordHash == "123456" || user.PasswordHash == "" {
		t.Fatalf("expected password to be hashed, got %q", user.PasswordHash)
	}

	token, logged, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "j@x.com", Password: "123456"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("login returned %s, registered %s", logged.ID, user.ID)
	}
	subject, err := f.tokens.Validate(token)
	if err != nil || subject != user.ID {
		t.Fatalf("login token does not resolve to the user: %q %v", subject, err)
	}
}

func TestAccountService_Register_NormalizesEmail(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, " Jesse ", "  J@X.com ", "123456")
	if user.Email != "j@x.com" || user.Name != "Jesse" {
		t.Fatalf("unexpected record: %+v", user)
	}
	if _, _, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "J@x.COM", Password: "123456"}); err != nil {
		t.Fatalf("login with differently cased email failed: %v", err)
	}
}

func TestAccountService_Register_Duplicate(t *testing.T) {
	f := newFixture(t)

	first := f.register(t, "Jesse", "j@x.com", "123456")

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{Name: "Walter", Email: "j@x.com", Password: "abcdef"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	stored := f.repo.users[first.ID]
	if stored.Name != "Jesse" || stored.PasswordHash != "hashed:123456" {
		t.Fatalf("first record was modified: %+v", stored)
	}
	if len(f.repo.users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(f.repo.users))
	}
}

func TestAccountService_Register_Validation(t *testing.T) {
	f := newFixture(t)

	for _, in := range []ports.RegisterInput{
		{Name: "", Email: "a@x.com", Password: "123456"},
		{Name: "A", Email: " ", Password: "123456"},
		{Name: "A", Email: "a@x.com", Password: ""},
	} {
		if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestAccountService_Login_NoEmailOracle(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Jesse", "j@x.com", "123456")

	_, _, wrongPassword := f.svc.Login(context.Background(), ports.LoginInput{Email: "j@x.com", Password: "bad"})
	verifiesAfterKnown := f.hasher.verifyCalls

	_, _, unknownEmail := f.svc.Login(context.Background(), ports.LoginInput{Email: "ghost@x.com", Password: "bad"})

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) || !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
	if f.hasher.verifyCalls != verifiesAfterKnown+1 {
		t.Fatalf("expected a password verification for the unknown email as well")
	}
}

func TestAccountService_Login_StoreFailureIsNotMasked(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.svc.repo = failingEmailRepo{stubUserRepo: f.repo, err: boom}

	_, _, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "j@x.com", Password: "x"})
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

type failingEmailRepo struct {
	*stubUserRepo
	err error
}

func (r failingEmailRepo) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, r.err
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestAccountService_Update_KeepsPasswordUnlessRequested(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "Jesse", "j@x.com", "123456")

	updated, err := f.svc.Update(context.Background(), ports.UpdateInput{ID: u.ID, Name: "Jesse P", Email: "jp@x.com", Password: ""})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Jesse P" || updated.Email != "jp@x.com" {
		t.Fatalf("unexpected record: %+v", updated)
	}
	if updated.PasswordHash != "hashed:123456" {
		t.Fatalf("password must be untouched without ChangePassword, got %q", updated.PasswordHash)
	}

	updated, err = f.svc.Update(context.Background(), ports.UpdateInput{ID: u.ID, Name: "Jesse P", Email: "jp@x.com", Password: "newpass", ChangePassword: true})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.PasswordHash != "hashed:newpass" {
		t.Fatalf("expected new hash, got %q", updated.PasswordHash)
	}
}

func TestAccountService_Update_Errors(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "A", "a@x.com", "123456")
	f.register(t, "B", "b@x.com", "123456")

	_, err := f.svc.Update(context.Background(), ports.UpdateInput{ID: "missing", Name: "X", Email: "x@x.com"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	_, err = f.svc.Update(context.Background(), ports.UpdateInput{ID: a.ID, Name: "A", Email: "b@x.com"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	_, err = f.svc.Update(context.Background(), ports.UpdateInput{ID: a.ID, Name: "A", Email: "a@x.com", ChangePassword: true})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty new password, got %v", err)
	}

	// keeping one's own email is not a collision
	if _, err := f.svc.Update(context.Background(), ports.UpdateInput{ID: a.ID, Name: "A2", Email: "A@x.com"}); err != nil {
		t.Fatalf("update with own email failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// AssignRole
// ---------------------------------------------------------------------------

func TestAccountService_AssignRole_Twice(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	target := f.register(t, "U", "u@x.com", "123456")

	updated, err := f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: target.ID, Role: "admin"})
	if err != nil {
		t.Fatalf("assign role failed: %v", err)
	}
	if len(updated.Roles) != 2 || !updated.HasRole(domain.RoleUser) || !updated.HasRole(domain.RoleAdmin) {
		t.Fatalf("expected {ROLE_USER, ROLE_ADMIN}, got %v", updated.Roles)
	}

	saves := f.repo.saveCalls
	_, err = f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: target.ID, Role: "admin"})
	if !errors.Is(err, domain.ErrDuplicateRole) {
		t.Fatalf("expected ErrDuplicateRole, got %v", err)
	}
	if got := len(f.repo.users[target.ID].Roles); got != 2 {
		t.Fatalf("failed assign changed role cardinality to %d", got)
	}
	if f.repo.saveCalls != saves {
		t.Fatalf("failed assign must not write")
	}
}

func TestAccountService_AssignRole_GrantedAdminTakesEffectImmediately(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	u := f.register(t, "U", "u@x.com", "123456")
	other := f.register(t, "O", "o@x.com", "123456")

	if _, err := f.svc.ListAll(context.Background(), u.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected U to be forbidden before the grant, got %v", err)
	}

	if _, err := f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: u.ID, Role: "admin"}); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}

	// same token, no reissue: roles are read from the store
	if _, err := f.svc.ListAll(context.Background(), u.ID); err != nil {
		t.Fatalf("expected U to pass the admin check after the grant, got %v", err)
	}
	if _, err := f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: u.ID, TargetID: other.ID, Role: "support"}); err != nil {
		t.Fatalf("new admin could not assign roles: %v", err)
	}
	if !f.repo.users[other.ID].HasRole("ROLE_SUPPORT") {
		t.Fatalf("expected ROLE_SUPPORT on other user")
	}
}

func TestAccountService_AssignRole_Errors(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	user := f.register(t, "U", "u@x.com", "123456")

	_, err := f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: user.ID, TargetID: user.ID, Role: "admin"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin caller, got %v", err)
	}
	if stored := f.repo.users[user.ID]; stored.HasRole(domain.RoleAdmin) {
		t.Fatalf("privilege escalation: non-admin granted themselves admin")
	}

	_, err = f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: "missing", Role: "admin"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	_, err = f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: user.ID, Role: "not a role"})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	_, err = f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: "", TargetID: user.ID, Role: "admin"})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Delete / ListAll / GetUser
// ---------------------------------------------------------------------------

func TestAccountService_Delete_SelfIsForbiddenRegardlessOfRole(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	user := f.register(t, "U", "u@x.com", "123456")

	for _, caller := range []*domain.User{admin, user} {
		if err := f.svc.Delete(context.Background(), caller.ID, caller.ID); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden for self delete by %s, got %v", caller.Name, err)
		}
	}
	if len(f.repo.users) != 2 {
		t.Fatalf("no user should have been deleted")
	}
}

func TestAccountService_Delete(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	user := f.register(t, "U", "u@x.com", "123456")
	other := f.register(t, "O", "o@x.com", "123456")

	if err := f.svc.Delete(context.Background(), user.ID, other.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), admin.ID, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), admin.ID, other.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := f.repo.users[other.ID]; ok {
		t.Fatalf("user still stored after delete")
	}
}

func TestAccountService_ListAll_NonAdminReadsNothing(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "U", "u@x.com", "123456")
	f.register(t, "O", "o@x.com", "123456")

	_, err := f.svc.ListAll(context.Background(), user.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.repo.findAllCalls != 0 {
		t.Fatalf("FindAll must not run for a non-admin caller")
	}
}

func TestAccountService_ListAll_Admin(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	f.register(t, "U", "u@x.com", "123456")

	users, err := f.svc.ListAll(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.ID == "" || u.Email == "" || len(u.Roles) == 0 {
			t.Fatalf("incomplete projection: %+v", u)
		}
	}
}

func TestAccountService_CallerResolution(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.ListAll(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing caller, got %v", err)
	}
	if _, err := f.svc.ListAll(context.Background(), "deleted-user"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown caller, got %v", err)
	}

	boom := errors.New("timeout")
	f.repo.findByIDErr = boom
	if _, err := f.svc.ListAll(context.Background(), "u-1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestAccountService_GetUser(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	user := f.register(t, "U", "u@x.com", "123456")

	got, err := f.svc.GetUser(context.Background(), admin.ID, user.ID)
	if err != nil || got.ID != user.ID {
		t.Fatalf("admin GetUser failed: %+v %v", got, err)
	}
	if _, err := f.svc.GetUser(context.Background(), user.ID, admin.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAccountService_PublishesAuditEvents(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "Admin", "admin@x.com", "123456")
	f.makeAdmin(t, admin)
	user := f.register(t, "U", "u@x.com", "123456")

	if _, err := f.svc.AssignRole(context.Background(), ports.AssignRoleInput{CallerID: admin.ID, TargetID: user.ID, Role: "support"}); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}
	if err := f.svc.Delete(context.Background(), admin.ID, user.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var types []string
	for _, e := range f.audit.events {
		types = append(types, string(e.Type))
	}
	want := "registered,registered,role_assigned,deleted"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}

	grant := f.audit.events[2]
	if grant.UserID != user.ID || grant.ActorID != admin.ID || grant.Detail != "ROLE_SUPPORT" {
		t.Fatalf("unexpected role event: %+v", grant)
	}
}
