package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. It enforces the
// same uniqueness rules as the real tables: one account per username and
// one per GitHub id.
type fakeUserRepo struct {
	byID   map[string]*model.User
	nextID int
	// set to simulate a database failure on every call
	err error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*model.User)}
}

func (f *fakeUserRepo) find(match func(*model.User) bool) *model.User {
	for _, u := range f.byID {
		if match(u) {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) insert(user *model.User) {
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.byID[user.ID] = &copied
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	if f.find(func(u *model.User) bool { return u.Username == user.Username }) != nil {
		return apperror.Conflict("user", user.Username)
	}
	f.insert(user)
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := f.find(func(u *model.User) bool { return u.Username == username })
	if u == nil {
		return nil, apperror.NotFound("user", username)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	if f.err != nil {
		return f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) UpsertGitHubUser(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	if existing := f.find(func(u *model.User) bool {
		return u.GitHubID != nil && *u.GitHubID == *user.GitHubID
	}); existing != nil {
		existing.AvatarURL = user.AvatarURL
		*user = *existing
		return nil
	}
	if f.find(func(u *model.User) bool { return u.Username == user.Username }) != nil {
		return apperror.Conflict("user", user.Username)
	}
	f.insert(user)
	return nil
}

// fakeGitHub maps codes to profiles; any other code fails the exchange.
type fakeGitHub map[string]auth.GitHubUser

func (f fakeGitHub) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	gh, ok := f[code]
	if !ok {
		return nil, errors.New("bad_verification_code")
	}
	return &gh, nil
}

var testTokens = func() *auth.TokenService {
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		panic(err)
	}
	return ts
}()

func newTestAuthService(t *testing.T, repo *fakeUserRepo, gh GitHubExchanger) *AuthService {
	t.Helper()
	// Cost 4 is the bcrypt minimum and keeps tests fast.
	ps := auth.NewPasswordServiceForTest(4)
	return NewAuthService(repo, testTokens, ps, gh, slog.New(slog.DiscardHandler))
}

var alice = Credentials{Username: "Alice", Password: "hunter2hunter2", Question: "First pet?", Answer: "Fluffy"}

func signup(t *testing.T, svc *AuthService, c Credentials) *AuthResult {
	t.Helper()
	res, err := svc.Signup(context.Background(), c)
	if err != nil {
		t.Fatalf("Signup(%s) error = %v", c.Username, err)
	}
	return res
}

func assertTokenFor(t *testing.T, res *AuthResult) {
	t.Helper()
	sub, err := testTokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if sub != res.User.UserID {
		t.Errorf("token subject = %q, want %q", sub, res.User.UserID)
	}
}

// =========================================================================
// Signup
// =========================================================================

func TestSignup_LowercasesAndIssuesToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil)

	res := signup(t, svc, alice)

	if res.User.Username != "alice" {
		t.Errorf("Username = %q, want lowercase %q", res.User.Username, "alice")
	}
	assertTokenFor(t, res)

	stored := repo.byID[res.User.UserID]
	if stored.PasswordHash == alice.Password || stored.AnswerHash == alice.Answer {
		t.Error("secrets were stored in plain text")
	}
}

func TestSignup_DuplicateIsConflict(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	signup(t, svc, alice)

	dup := alice
	dup.Username = "ALICE"
	_, err := svc.Signup(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Signup(duplicate) error = %v, want ErrConflict", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Credentials)
		field string
	}{
		{"no username", func(c *Credentials) { c.Username = "  " }, "username"},
		{"short password", func(c *Credentials) { c.Password = "short" }, "password"},
		{"no question", func(c *Credentials) { c.Question = "" }, "question"},
		{"blank answer", func(c *Credentials) { c.Answer = "   " }, "answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := newTestAuthService(t, repo, nil)
			c := alice
			tt.edit(&c)

			_, err := svc.Signup(context.Background(), c)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if len(repo.byID) != 0 {
				t.Error("a user was created despite invalid input")
			}
		})
	}
}

func TestSignup_StorageFailureIsUpstream(t *testing.T) {
	repo := newFakeUserRepo()
	repo.err = errors.New("connection reset")
	svc := newTestAuthService(t, repo, nil)

	_, err := svc.Signup(context.Background(), alice)
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
}

// =========================================================================
// Login
// =========================================================================

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	created := signup(t, svc, alice)

	res, err := svc.Login(context.Background(), "ALICE ", alice.Password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.User.UserID != created.User.UserID {
		t.Errorf("Login() user = %q, want %q", res.User.UserID, created.User.UserID)
	}
	assertTokenFor(t, res)
}

func TestLogin_BadCredentialsAreUnauthenticated(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, fakeGitHub{"c": {ID: 1, Login: "octocat"}})
	signup(t, svc, alice)
	if _, err := svc.Authenticate(context.Background(), "c"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	for name, creds := range map[string][2]string{
		"wrong password": {"alice", "not-the-password"},
		"unknown user":   {"bob", "whatever-password"},
		"oauth account":  {"octocat", "whatever-password"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), creds[0], creds[1])
			if !errors.Is(err, apperror.ErrUnauthenticated) {
				t.Fatalf("Login() error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)

	_, err := svc.Login(context.Background(), "alice", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Login() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// ResetPassword
// =========================================================================

func TestResetPassword(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	signup(t, svc, alice)

	reset := alice
	reset.Password = "brand-new-password"
	reset.Answer = "  FLUFFY"
	res, err := svc.ResetPassword(context.Background(), reset)
	if err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	assertTokenFor(t, res)

	if _, err := svc.Login(context.Background(), "alice", alice.Password); err == nil {
		t.Error("old password still works after reset")
	}
	if _, err := svc.Login(context.Background(), "alice", "brand-new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestResetPassword_WrongQuestionOrAnswerIsForbidden(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	signup(t, svc, alice)

	tests := map[string]func(*Credentials){
		"wrong answer":   func(c *Credentials) { c.Answer = "Rex" },
		"wrong question": func(c *Credentials) { c.Question = "Mother's maiden name?" },
		"unknown user":   func(c *Credentials) { c.Username = "mallory" },
	}
	for name, edit := range tests {
		t.Run(name, func(t *testing.T) {
			c := alice
			c.Password = "brand-new-password"
			edit(&c)
			_, err := svc.ResetPassword(context.Background(), c)
			if !errors.Is(err, apperror.ErrForbidden) {
				t.Fatalf("ResetPassword() error = %v, want ErrForbidden", err)
			}
		})
	}
}

// =========================================================================
// Authenticate (GitHub OAuth)
// =========================================================================

func TestAuthenticate_CreatesThenRefreshes(t *testing.T) {
	gh := fakeGitHub{
		"first":  {ID: 42, Login: "OctoCat", AvatarURL: "https://avatars/old"},
		"second": {ID: 42, Login: "OctoCat", AvatarURL: "https://avatars/new"},
	}
	svc := newTestAuthService(t, newFakeUserRepo(), gh)

	first, err := svc.Authenticate(context.Background(), "first")
	if err != nil {
		t.Fatalf("Authenticate(first) error = %v", err)
	}
	if first.User.Username != "octocat" {
		t.Errorf("Username = %q, want %q", first.User.Username, "octocat")
	}
	assertTokenFor(t, first)

	second, err := svc.Authenticate(context.Background(), "second")
	if err != nil {
		t.Fatalf("Authenticate(second) error = %v", err)
	}
	if second.User.UserID != first.User.UserID {
		t.Errorf("re-authentication created a new account")
	}
	if second.User.AvatarURL != "https://avatars/new" {
		t.Errorf("AvatarURL = %q, want refreshed avatar", second.User.AvatarURL)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	gh := fakeGitHub{"taken": {ID: 7, Login: "Alice"}}
	svc := newTestAuthService(t, newFakeUserRepo(), gh)
	signup(t, svc, alice)

	tests := []struct {
		code string
		want error
	}{
		{"", apperror.ErrValidation},
		{"bogus", apperror.ErrUnauthenticated},
		{"taken", apperror.ErrConflict},
	}
	for _, tt := range tests {
		_, err := svc.Authenticate(context.Background(), tt.code)
		if !errors.Is(err, tt.want) {
			t.Errorf("Authenticate(%q) error = %v, want %v", tt.code, err, tt.want)
		}
	}
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)

	if svc.OAuthEnabled() {
		t.Fatal("OAuthEnabled() = true without a provider")
	}
	if _, err := svc.Authenticate(context.Background(), "code"); err == nil {
		t.Fatal("Authenticate() should fail without a provider")
	}
}

// =========================================================================
// Me
// =========================================================================

func TestMe(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	created := signup(t, svc, alice)

	id, err := svc.Me(context.Background(), created.User.UserID)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if id != created.User {
		t.Errorf("Me() = %+v, want %+v", id, created.User)
	}

	if _, err := svc.Me(context.Background(), "deleted-user"); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Me(unknown) error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Me(context.Background(), ""); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Me(\"\") error = %v, want ErrUnauthenticated", err)
	}
}
