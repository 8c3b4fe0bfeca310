package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (r *memoryRepo) Create(ctx context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.Active = true
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) Update(ctx context.Context, u User) (User, error) {
	if _, ok := r.users[u.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var out []User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{
		Name:     "Ama Mensah",
		Email:    "  Ama@Example.COM ",
		Role:     RoleClerk,
		Password: "letmein-123",
	})
	require.NoError(t, err)
	require.Equal(t, "ama@example.com", user.Email)
	require.NotEqual(t, "letmein-123", user.PasswordHash)
	require.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "a@b.com", Role: RoleClerk, Password: "password1"})
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(ctx, CreateInput{Name: "A", Role: RoleClerk, Password: "password1"})
	require.ErrorIs(t, err, ErrEmailRequired)

	_, err = svc.Create(ctx, CreateInput{Name: "A", Email: "a@b.com", Role: "superuser", Password: "password1"})
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(ctx, CreateInput{Name: "A", Email: "a@b.com", Role: RoleClerk, Password: "short"})
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "A", Email: "a@b.com", Role: RoleClerk, Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "B", Email: "a@b.com", Role: RoleManager, Password: "password2"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Name:     "Kofi Asante",
		Email:    "kofi@example.com",
		Role:     RoleManager,
		Password: "secret-pass",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "KOFI@example.com ", "secret-pass")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "kofi@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret-pass")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Name:     "Efua Owusu",
		Email:    "efua@example.com",
		Role:     RoleDriver,
		Password: "wheel-time-9",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateInput{Name: created.Name, Role: created.Role, Active: false})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "efua@example.com", "wheel-time-9")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestUpdateRehashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Name:     "Yaw Boateng",
		Email:    "yaw@example.com",
		Role:     RoleClerk,
		Password: "first-pass1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, UpdateInput{
		Name:     "Yaw Boateng",
		Role:     RoleClerk,
		Active:   true,
		Password: "second-pass2",
	})
	require.NoError(t, err)
	require.NotEqual(t, created.PasswordHash, updated.PasswordHash)

	_, err = svc.Authenticate(ctx, "yaw@example.com", "second-pass2")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "yaw@example.com", "first-pass1")
	require.ErrorIs(t, err, ErrBadCredentials)
}
