package service

import (
	"context"
	"fmt"
	"strings"

	"bloghub/internal/models"
	"bloghub/internal/repository"
	"bloghub/internal/storage"
	"bloghub/internal/validation"
)

const profilePostsLimit = 20

type UserService struct {
	users repository.UserRepository
	posts repository.PostRepository
	media MediaStore
}

type UpdateProfileInput struct {
	UserID uint    `json:"-"`
	Name   *string `json:"name" validate:"omitnil,min=1,max=100"`
	Email  *string `json:"email" validate:"omitnil,email,max=254"`
}

// Profile is a user's public page.
type Profile struct {
	User  *models.User          `json:"user"`
	Stats *repository.PostStats `json:"stats"`
	Posts []models.BlogPost     `json:"posts"`
}

type UserPage struct {
	Users    []models.User `json:"users"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

func NewUserService(users repository.UserRepository, posts repository.PostRepository, media MediaStore) *UserService {
	return &UserService{users: users, posts: posts, media: media}
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.posts.StatsForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByUser(ctx, id, profilePostsLimit)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	return &Profile{User: user, Stats: stats, Posts: posts}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := validation.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetWithCredentials(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadProfileImage replaces the user's picture and deletes the old one.
func (s *UserService) UploadProfileImage(ctx context.Context, userID uint, content []byte) (*models.User, error) {
	user, err := s.users.GetWithCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	path, err := s.media.SaveImage(ctx, content, storage.WithPrefix(fmt.Sprintf("user_%d_", userID)))
	if err != nil {
		return nil, err
	}
	old := user.ProfileImagePath
	user.ProfileImagePath = path
	if err := s.users.Update(ctx, user); err != nil {
		s.media.Delete(ctx, path)
		return nil, err
	}
	if old != "" {
		s.media.Delete(ctx, old)
	}
	return user, nil
}

// ListUsers is the admin user search.
func (s *UserService) ListUsers(ctx context.Context, search string, page, size int) (*UserPage, error) {
	p := pageWindow(page, size)
	users, total, err := s.users.List(ctx, repository.UserFilter{Search: strings.TrimSpace(search), Page: p})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{Users: users, Total: total, Page: pageOf(p), PageSize: p.Limit}, nil
}

func (s *UserService) SetRole(ctx context.Context, userID uint, raw string) (*models.User, error) {
	role, ok := models.ParseRole(raw)
	if !ok {
		return nil, models.NewFieldValidationError("Invalid role", map[string]string{"role": "must be member, moderator or admin"})
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	staff, err := s.users.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	if staff == nil {
		staff = []models.User{}
	}
	return staff, nil
}
