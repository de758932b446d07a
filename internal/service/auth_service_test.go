package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bloghub/internal/models"
	"bloghub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	env      *testEnv
	sessions *sessionStub
	mailer   *mailerStub
	svc      *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	env := newTestEnv(t, "")
	f := &authFixture{env: env, sessions: &sessionStub{}, mailer: &mailerStub{}}
	f.svc = NewAuthService(env.users, f.sessions, f.mailer, time.Hour, "http://localhost:8080/")
	return f
}

func (f *authFixture) password(t *testing.T, userID uint) string {
	t.Helper()
	u, err := f.env.users.GetWithCredentials(context.Background(), userID)
	require.NoError(t, err)
	return u.Password
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{
		Name: " Ada ", Email: "Ada@Example.com", Password: "Analytical1", ConfirmPassword: "Analytical1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.AccessStatusPending, u.AccessStatus)
	assert.Equal(t, models.RoleMember, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.password(t, u.ID)), []byte("Analytical1")))

	_, err = f.svc.Register(ctx, RegisterInput{
		Name: "Ada again", Email: "ada@example.com", Password: "Analytical1", ConfirmPassword: "Analytical1",
	})
	assertCode(t, err, models.CodeValidation)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"weak password", RegisterInput{Name: "B", Email: "b@example.com", Password: "weak", ConfirmPassword: "weak"}, "password"},
		{"mismatch", RegisterInput{Name: "B", Email: "b@example.com", Password: "Analytical1", ConfirmPassword: "Analytical2"}, "confirm_password"},
		{"bad email", RegisterInput{Name: "B", Email: "nope", Password: "Analytical1", ConfirmPassword: "Analytical1"}, "email"},
		{"no name", RegisterInput{Email: "b@example.com", Password: "Analytical1", ConfirmPassword: "Analytical1"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.in)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestAuthService_LoginLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.env.db, "writer", models.AccessStatusPending)

	_, err := f.svc.Login(ctx, LoginInput{Email: "writer@example.com", Password: "Wrong1234"})
	assertCode(t, err, models.CodeUnauthenticated)

	_, err = f.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "Password1"})
	assertCode(t, err, models.CodeUnauthenticated)

	res, err := f.svc.Login(ctx, LoginInput{Email: "WRITER@example.com", Password: "Password1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, "token-1", res.Session.Token)
	assert.Equal(t, []uint{u.ID}, f.sessions.issued)

	require.NoError(t, f.svc.Logout(ctx, res.Session.Token))
	require.NoError(t, f.svc.Logout(ctx, ""))
	assert.Equal(t, []string{"token-1"}, f.sessions.revoked)
}

func TestAuthService_PasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.env.db, "forgetful", models.AccessStatusApproved)

	msg, err := f.svc.ForgotPassword(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, forgotPasswordMessage, msg)
	assert.Empty(t, f.mailer.sent)

	msg, err = f.svc.ForgotPassword(ctx, "Forgetful@example.com")
	require.NoError(t, err)
	assert.Equal(t, forgotPasswordMessage, msg)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "forgetful@example.com", f.mailer.sent[0].to)
	assert.Equal(t, resetSubject, f.mailer.sent[0].subject)

	stored, err := f.env.users.GetWithCredentials(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	token := *stored.ResetToken
	assert.Contains(t, f.mailer.sent[0].html, "http://localhost:8080/reset-password?token="+token)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "bogus", Password: "Brandnew99", ConfirmPassword: "Brandnew99"})
	assertCode(t, err, models.CodeValidation)

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "Brandnew99", ConfirmPassword: "Brandnew99"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.password(t, u.ID)), []byte("Brandnew99")))

	cleared, err := f.env.users.GetWithCredentials(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.ResetToken)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "Another99", ConfirmPassword: "Another99"})
	assertCode(t, err, models.CodeValidation)
}

func TestAuthService_ResetTokenExpires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.env.db, "slow", models.AccessStatusApproved)

	_, err := f.svc.ForgotPassword(ctx, "slow@example.com")
	require.NoError(t, err)
	stored, err := f.env.users.GetWithCredentials(ctx, u.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: *stored.ResetToken, Password: "Brandnew99", ConfirmPassword: "Brandnew99"})
	assertCode(t, err, models.CodeValidation)
}

func TestAuthService_MailFailureIsHidden(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.err = errors.New("relay down")
	testutil.CreateUser(t, f.env.db, "unlucky", models.AccessStatusApproved)

	msg, err := f.svc.ForgotPassword(context.Background(), "unlucky@example.com")
	require.NoError(t, err)
	assert.Equal(t, forgotPasswordMessage, msg)
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.env.db, "careful", models.AccessStatusApproved)

	err := f.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID: u.ID, CurrentPassword: "Wrong1234", NewPassword: "Rotated123", ConfirmPassword: "Rotated123",
	})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "current_password")

	require.NoError(t, f.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID: u.ID, CurrentPassword: "Password1", NewPassword: "Rotated123", ConfirmPassword: "Rotated123",
	}))
	hash := f.password(t, u.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Rotated123")))
	assert.False(t, strings.Contains(hash, "Rotated123"))
}
