package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"bloghub/internal/mail"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPasswordResetTTL = time.Hour
	resetSubject            = "Reset Your Password"
	forgotPasswordMessage   = "If that email is registered, a reset link has been sent"
)

// SessionStore issues and revokes session tokens.
type SessionStore interface {
	Issue(ctx context.Context, userID uint) (*middleware.Session, error)
	Revoke(ctx context.Context, raw string) error
}

type AuthService struct {
	users    repository.UserRepository
	sessions SessionStore
	mailer   mail.Mailer
	resetTTL time.Duration
	baseURL  string
	now      func() time.Time
}

type RegisterInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ChangePasswordInput struct {
	UserID          uint   `json:"-"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// LoginResult is a signed-in user and their session.
type LoginResult struct {
	User    *models.User
	Session *middleware.Session
}

func NewAuthService(users repository.UserRepository, sessions SessionStore, mailer mail.Mailer, resetTTL time.Duration, baseURL string) *AuthService {
	if resetTTL <= 0 {
		resetTTL = DefaultPasswordResetTTL
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		resetTTL: resetTTL,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// Register creates a pending member account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Password:     string(hash),
		AccessStatus: models.AccessStatusPending,
		Role:         models.RoleMember,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "User registered", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Login verifies credentials and issues a session. Any access status may log in.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthenticatedError("Invalid email or password")
	}
	session, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{User: user, Session: session}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ForgotPassword emails a single-use reset link. The response is the same
// whether or not the address is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return "", err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return forgotPasswordMessage, nil
	}

	token := uuid.NewString()
	expires := s.now().Add(s.resetTTL)
	user.ResetToken = &token
	user.ResetTokenExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return "", err
	}

	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(`Click this link to reset your password: <a href="%s">Reset Password</a>`, html.EscapeString(link))
	if err := s.mailer.Send(ctx, user.Email, resetSubject, body); err != nil {
		middleware.Logger.ErrorContext(ctx, "Password reset email failed",
			slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	}
	return forgotPasswordMessage, nil
}

// ResetPassword sets a new password for a valid, unexpired token and clears it.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.users.GetByResetToken(ctx, in.Token)
	if err != nil {
		return err
	}
	if user == nil || user.ResetTokenExpiresAt == nil || !s.now().Before(*user.ResetTokenExpiresAt) {
		return models.NewFieldValidationError("Invalid or expired reset token", map[string]string{"token": "is invalid or expired"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hash)
	user.ResetToken = nil
	user.ResetTokenExpiresAt = nil
	return s.users.Update(ctx, user)
}

func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.users.GetWithCredentials(ctx, in.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)) != nil {
		return models.NewFieldValidationError("Current password is incorrect", map[string]string{"current_password": "is incorrect"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hash)
	return s.users.Update(ctx, user)
}
