// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"bloghub/internal/cache"
	"bloghub/internal/database"
	"bloghub/internal/models"

	"gorm.io/gorm"
)

// UserFilter narrows admin user listings.
type UserFilter struct {
	Search string
	Status models.AccessStatus
	Page   Page
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetWithCredentials(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	ListStaff(ctx context.Context) ([]models.User, error)
	RequestAccess(ctx context.Context, id uint) (*models.User, bool, error)
	SetAccessStatus(ctx context.Context, id uint, status models.AccessStatus, notice *models.Notification) (*models.User, error)
	BackfillPending(ctx context.Context) (int64, error)
	SetRole(ctx context.Context, id uint, role models.Role) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID returns the public view of a user. Cached, so the password hash is
// never populated; use GetWithCredentials for authentication.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return run(ctx, "users.get", func(ctx context.Context) error {
			return notFound(readDB(r.db).WithContext(ctx).First(&user, id).Error, "User", id)
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &user, nil
}

func (r *userRepository) GetWithCredentials(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := run(ctx, "users.get_credentials", func(ctx context.Context) error {
		return notFound(r.db.WithContext(ctx).First(&user, id).Error, "User", id)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "users.get_by_email", "email = ?", email)
}

// GetByResetToken returns (nil, nil) when the token matches nobody.
func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "users.get_by_reset_token", "reset_token = ?", token)
}

func (r *userRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	found := true
	err := run(ctx, op, func(ctx context.Context) error {
		err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		found = true
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := run(ctx, "users.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(user).Error
	})
	if database.IsUniqueViolation(err) {
		return models.NewFieldValidationError("User already exists", map[string]string{"email": "is already registered"})
	}
	return storeErr(err)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := run(ctx, "users.update", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Save(user).Error
	})
	if database.IsUniqueViolation(err) {
		return models.NewConflictError("Email is already in use")
	}
	if err != nil {
		return storeErr(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	page := filter.Page.normalize()
	err := run(ctx, "users.list", func(ctx context.Context) error {
		q := readDB(r.db).WithContext(ctx).Model(&models.User{})
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
		if filter.Status != "" {
			q = q.Where("access_status = ?", filter.Status)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("created_at DESC").Order("id DESC").
			Limit(page.Limit).Offset(page.Offset).Find(&users).Error
	})
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return users, total, nil
}

func (r *userRepository) ListStaff(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := run(ctx, "users.list_staff", func(ctx context.Context) error {
		return readDB(r.db).WithContext(ctx).
			Where("role IN ?", []models.Role{models.RoleModerator, models.RoleAdmin}).
			Order("id").Find(&users).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

// RequestAccess moves a user from none to pending. The bool reports whether
// the status changed; any other status is left alone.
func (r *userRepository) RequestAccess(ctx context.Context, id uint) (*models.User, bool, error) {
	var (
		user    models.User
		changed bool
	)
	err := run(ctx, "users.request_access", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.User{}).
				Where("id = ? AND access_status = ?", id, models.AccessStatusNone).
				Updates(map[string]interface{}{"access_status": models.AccessStatusPending, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			changed = res.RowsAffected > 0
			return notFound(tx.First(&user, id).Error, "User", id)
		})
	})
	if err != nil {
		return nil, false, storeErr(err)
	}
	if changed {
		cache.InvalidateUser(ctx, id)
	}
	return &user, changed, nil
}

// SetAccessStatus writes status unconditionally. When notice is non-nil it is
// delivered to the user in the same transaction.
func (r *userRepository) SetAccessStatus(
	ctx context.Context,
	id uint,
	status models.AccessStatus,
	notice *models.Notification,
) (*models.User, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("unknown access status")
	}
	var user models.User
	err := run(ctx, "users.set_access_status", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&user, id).Error; err != nil {
				return notFound(err, "User", id)
			}
			if err := tx.Model(&user).Update("access_status", status).Error; err != nil {
				return err
			}
			user.AccessStatus = status
			if notice == nil {
				return nil
			}
			notice.ID = 0
			_, err := deliver(tx, notice, models.Personal(id))
			return err
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	cache.InvalidateUser(ctx, id)
	if notice != nil {
		cache.InvalidateUnread(ctx, id)
	}
	return &user, nil
}

// BackfillPending moves every legacy none row to pending and reports the count.
func (r *userRepository) BackfillPending(ctx context.Context) (int64, error) {
	var (
		ids      []uint
		affected int64
	)
	err := run(ctx, "users.backfill_pending", func(ctx context.Context) error {
		ids, affected = nil, 0
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).
				Where("access_status = ?", models.AccessStatusNone).
				Pluck("id", &ids).Error; err != nil {
				return err
			}
			if len(ids) == 0 {
				return nil
			}
			res := tx.Model(&models.User{}).
				Where("id IN ? AND access_status = ?", ids, models.AccessStatusNone).
				Update("access_status", models.AccessStatusPending)
			affected = res.RowsAffected
			return res.Error
		})
	})
	if err != nil {
		return 0, storeErr(err)
	}
	for _, id := range ids {
		cache.InvalidateUser(ctx, id)
	}
	return affected, nil
}

func (r *userRepository) SetRole(ctx context.Context, id uint, role models.Role) error {
	var affected int64
	err := run(ctx, "users.set_role", func(ctx context.Context) error {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}
