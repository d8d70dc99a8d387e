package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub user repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User // by id
	nextID int

	// beforeCreate, if set, runs before every Create and may mutate the store.
	beforeCreate func(r *stubUserRepo, u *domain.User)
	findErr      error // if set, every lookup returns this error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// insert enforces the same unique indexes as the Mongo collection.
func (r *stubUserRepo) insert(u *domain.User) (*domain.User, error) {
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, domain.ErrDuplicateKey
		}
		if u.OAuthID != "" && existing.OAuthID == u.OAuthID {
			return nil, domain.ErrDuplicateKey
		}
	}
	r.nextID++
	clone := cloneUser(u)
	clone.ID = "u" + strconv.Itoa(r.nextID)
	r.users[clone.ID] = clone
	return cloneUser(clone), nil
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook(r, u)
	}
	return r.insert(u)
}

func (r *stubUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.NotFound("user")
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserRepo) FindByOAuthID(_ context.Context, oauthID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.OAuthID == oauthID })
}

func (r *stubUserRepo) FindByEmailOrUsername(_ context.Context, email, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email || u.Username == username })
}

func (r *stubUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, err := r.find(func(u *domain.User) bool { return u.Username == username })
	if domain.IsKind(err, domain.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *stubUserRepo) update(id string, fn func(u *domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.NotFound("user")
	}
	return fn(u)
}

func (r *stubUserRepo) SetOAuthID(_ context.Context, id, oauthID string, at time.Time) error {
	return r.update(id, func(u *domain.User) error {
		u.OAuthID, u.UpdatedAt = oauthID, at
		return nil
	})
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) error {
		u.LastLogin = &at
		return nil
	})
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return r.update(id, func(u *domain.User) error {
		u.PasswordHash, u.UpdatedAt = hash, at
		return nil
	})
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id string, ch ports.ProfileChanges, at time.Time) (*domain.User, error) {
	var out *domain.User
	err := r.update(id, func(u *domain.User) error {
		if ch.Username != nil {
			for _, other := range r.users {
				if other.ID != id && other.Username == *ch.Username {
					return domain.ErrDuplicateKey
				}
			}
			u.Username = *ch.Username
		}
		if ch.FirstName != nil {
			u.FirstName = *ch.FirstName
		}
		if ch.LastName != nil {
			u.LastName = *ch.LastName
		}
		u.UpdatedAt = at
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *stubUserRepo) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.User
	for _, u := range r.users {
		if f.Search != "" && !strings.Contains(u.Username, f.Search) && !strings.Contains(u.Email, f.Search) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })
	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *stubUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCredentials(repo *stubUserRepo, clock *fakeClock) *CredentialService {
	return NewCredentialService(repo, bcrypt.MinCost, clock.Now, zerolog.Nop())
}

func validRegistration() ports.RegisterInput {
	return ports.RegisterInput{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCredentialService_Register_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestCredentials(repo, newFakeClock())

	user, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected an id")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("expected password to be hashed, got %q", user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Role != domain.RoleUser || !user.IsActive {
		t.Errorf("unexpected role/active: %s/%v", user.Role, user.IsActive)
	}
	if user.LastLogin != nil {
		t.Errorf("expected no lastLogin on a fresh account")
	}
}

func TestCredentialService_Register_Duplicate(t *testing.T) {
	cases := []struct {
		name string
		edit func(in *ports.RegisterInput)
	}{
		{"same email different case", func(in *ports.RegisterInput) {
			in.Username = "alice2"
			in.Email = "ALICE@example.COM"
		}},
		{"same username", func(in *ports.RegisterInput) {
			in.Email = "other@example.com"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubUserRepo()
			svc := newTestCredentials(repo, newFakeClock())
			if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
				t.Fatalf("first register: %v", err)
			}

			in := validRegistration()
			tc.edit(&in)
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, domain.ErrUserExists) {
				t.Fatalf("expected ErrUserExists, got %v", err)
			}
			if repo.count() != 1 {
				t.Fatalf("expected 1 stored user, got %d", repo.count())
			}
		})
	}
}

func TestCredentialService_Register_Validation(t *testing.T) {
	cases := []struct {
		name string
		edit func(in *ports.RegisterInput)
	}{
		{"short username", func(in *ports.RegisterInput) { in.Username = "al" }},
		{"long username", func(in *ports.RegisterInput) { in.Username = strings.Repeat("a", 51) }},
		{"missing email", func(in *ports.RegisterInput) { in.Email = " " }},
		{"invalid email", func(in *ports.RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *ports.RegisterInput) { in.Password = "12345" }},
		{"missing first name", func(in *ports.RegisterInput) { in.FirstName = "" }},
		{"missing last name", func(in *ports.RegisterInput) { in.LastName = "  " }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubUserRepo()
			svc := newTestCredentials(repo, newFakeClock())
			in := validRegistration()
			tc.edit(&in)

			_, err := svc.Register(context.Background(), in)
			if !domain.IsKind(err, domain.KindValidation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if repo.count() != 0 {
				t.Fatal("nothing should be stored on validation failure")
			}
		})
	}
}

func TestCredentialService_Register_StoreFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.findErr = errors.New("connection reset")
	svc := newTestCredentials(repo, newFakeClock())

	if _, err := svc.Register(context.Background(), validRegistration()); !domain.IsKind(err, domain.KindDependency) {
		t.Fatalf("expected DependencyError, got %v", err)
	}
}

func TestCredentialService_VerifyCredentials(t *testing.T) {
	ctx := context.Background()
	repo := newStubUserRepo()
	svc := newTestCredentials(repo, newFakeClock())
	registered, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := repo.insert(&domain.User{Username: "gina", Email: "gina@example.com", OAuthID: "g-1", IsActive: true}); err != nil {
		t.Fatalf("seed oauth user: %v", err)
	}

	t.Run("correct password", func(t *testing.T) {
		u, err := svc.VerifyCredentials(ctx, " ALICE@example.com ", "secret1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.ID != registered.ID {
			t.Fatalf("got user %s, want %s", u.ID, registered.ID)
		}
	})

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong password", "alice@example.com", "secret2", domain.ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", "secret1", domain.ErrInvalidCredentials},
		{"empty password", "alice@example.com", "", domain.ErrInvalidCredentials},
		{"oauth only", "gina@example.com", "anything", domain.ErrOAuthOnlyAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.VerifyCredentials(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("inactive account", func(t *testing.T) {
		_ = repo.update(registered.ID, func(u *domain.User) error {
			u.IsActive = false
			return nil
		})
		if _, err := svc.VerifyCredentials(ctx, "alice@example.com", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestCredentialService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	repo := newStubUserRepo()
	svc := newTestCredentials(repo, newFakeClock())
	user, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, user, "wrong!", "newsecret"); !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user, "secret1", "123"); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for short password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user, "secret1", "newsecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.VerifyCredentials(ctx, "alice@example.com", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, err := svc.VerifyCredentials(ctx, "alice@example.com", "newsecret"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	oauthOnly := &domain.User{ID: "x", OAuthID: "g-1"}
	if err := svc.ChangePassword(ctx, oauthOnly, "", "newsecret"); !errors.Is(err, domain.ErrNoPasswordSet) {
		t.Fatalf("expected ErrNoPasswordSet, got %v", err)
	}
}

func TestCredentialService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo := newStubUserRepo()
	svc := newTestCredentials(repo, newFakeClock())
	alice, _ := svc.Register(ctx, validRegistration())
	bobIn := validRegistration()
	bobIn.Username, bobIn.Email = "bob", "bob@example.com"
	if _, err := svc.Register(ctx, bobIn); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	first := "  Alicia "
	updated, err := svc.UpdateProfile(ctx, alice, ports.ProfileChanges{FirstName: &first})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FirstName != "Alicia" {
		t.Errorf("expected trimmed first name, got %q", updated.FirstName)
	}
	if updated.PasswordHash != alice.PasswordHash {
		t.Error("profile update must not touch the password hash")
	}

	taken := "bob"
	if _, err := svc.UpdateProfile(ctx, alice, ports.ProfileChanges{Username: &taken}); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	short := "ab"
	if _, err := svc.UpdateProfile(ctx, alice, ports.ProfileChanges{Username: &short}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCredentialService_ListUsers(t *testing.T) {
	ctx := context.Background()
	repo := newStubUserRepo()
	svc := newTestCredentials(repo, newFakeClock())
	for _, name := range []string{"carol", "alice", "bob"} {
		in := validRegistration()
		in.Username, in.Email = name, name+"@example.com"
		if _, err := svc.Register(ctx, in); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	page, err := svc.ListUsers(ctx, ports.ListUsersFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	if page.Items[0].Username != "alice" {
		t.Errorf("expected alice first, got %s", page.Items[0].Username)
	}
}
