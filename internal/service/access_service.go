package service

import (
	"context"
	"log/slog"

	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/repository"
)

const (
	approvedTitle   = "Account Approved"
	approvedMessage = "Congratulations! Your account has been approved. You can now create and publish blog posts."
	rejectedTitle   = "Account Rejected"
	rejectedMessage = "We're sorry, but your account request has been rejected. Please contact the administrator for more information."
)

// AccessService drives the none -> pending -> approved/rejected workflow.
type AccessService struct {
	users     repository.UserRepository
	publisher Publisher
}

// AccessRequestResult reports the status after a request. Changed is false
// when the user had already requested (or been decided).
type AccessRequestResult struct {
	Status  models.AccessStatus `json:"status"`
	Changed bool                `json:"changed"`
	Message string              `json:"message"`
}

// PendingUsers is the admin access-request queue.
type PendingUsers struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func NewAccessService(users repository.UserRepository, publisher Publisher) *AccessService {
	return &AccessService{users: users, publisher: publisher}
}

func (s *AccessService) RequestAccess(ctx context.Context, userID uint) (*AccessRequestResult, error) {
	user, changed, err := s.users.RequestAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := &AccessRequestResult{Status: user.AccessStatus, Changed: changed}
	switch {
	case changed:
		res.Message = "Your request has been submitted and is awaiting review"
	case user.AccessStatus == models.AccessStatusPending:
		res.Message = "Your request is already awaiting review"
	case user.AccessStatus == models.AccessStatusApproved:
		res.Message = "Your account is already approved"
	default:
		res.Message = "Your request has already been reviewed"
	}
	return res, nil
}

func (s *AccessService) Approve(ctx context.Context, userID uint) (*models.User, error) {
	return s.decide(ctx, userID, models.AccessStatusApproved, approvedTitle, approvedMessage)
}

func (s *AccessService) Reject(ctx context.Context, userID uint) (*models.User, error) {
	return s.decide(ctx, userID, models.AccessStatusRejected, rejectedTitle, rejectedMessage)
}

func (s *AccessService) decide(ctx context.Context, userID uint, status models.AccessStatus, title, message string) (*models.User, error) {
	notice := &models.Notification{Title: title, Message: message, IsImportant: true}
	user, err := s.users.SetAccessStatus(ctx, userID, status, notice)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Access decided",
		slog.Uint64("target_user_id", uint64(userID)),
		slog.String("status", string(status)))
	publishCommitted(ctx, s.publisher, SourceAccess, []uint{userID}, notice)
	return user, nil
}

// CanCreateContent reports whether the user may publish.
func (s *AccessService) CanCreateContent(ctx context.Context, userID uint) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.CanCreateContent(), nil
}

func (s *AccessService) ListPending(ctx context.Context) (*PendingUsers, error) {
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Status: models.AccessStatusPending,
		Page:   repository.Page{Limit: maxPageSize},
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &PendingUsers{Users: users, Total: total}, nil
}

// BackfillPending moves every legacy none user to pending.
func (s *AccessService) BackfillPending(ctx context.Context) (int64, error) {
	n, err := s.users.BackfillPending(ctx)
	if err != nil {
		return 0, err
	}
	middleware.Logger.InfoContext(ctx, "Backfilled pending access requests", slog.Int64("rows", n))
	return n, nil
}
