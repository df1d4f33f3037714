package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds the relational-store UserRepository, grounded
// on the teacher's segmentationRepository shape.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByUserID(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDatabaseConnectionError(err)
	}
	return &u, nil
}

// ApplyStatistics is the §4.4 step 3-4 monotonic update: a single
// transaction that only commits when the new totals are each >= the
// user's current counters. The WHERE clause is the concurrency primitive
// (§5) — no in-process locking is used.
func (r *userRepository) ApplyStatistics(ctx context.Context, userID string, newLogin, newPost int) (repository.UserUpdate, *model.User, error) {
	var result repository.UserUpdate
	var updated model.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.User
		if err := tx.Where("user_id = ?", userID).First(&current).Error; err != nil {
			return err
		}

		if newLogin == current.LoginCount && newPost == current.PostCount {
			result = repository.UserUpdateNoop
			updated = current
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{
			"login_count":     newLogin,
			"post_count":      newPost,
			"last_updated_at": now,
			"updated_at":      now,
		}
		if newLogin > current.LoginCount {
			updates["last_login_at"] = now
		}
		if newPost > current.PostCount {
			updates["last_post_at"] = now
		}

		tx2 := tx.Model(&model.User{}).
			Where("user_id = ? AND login_count <= ? AND post_count <= ?", userID, newLogin, newPost).
			Updates(updates)
		if tx2.Error != nil {
			return tx2.Error
		}
		if tx2.RowsAffected == 0 {
			// Someone else raced this user to a higher value between our
			// read and our guarded write; the row is already at or past
			// the target totals, so this is a no-op, not an error.
			result = repository.UserUpdateNoop
			return tx.Where("user_id = ?", userID).First(&updated).Error
		}

		result = repository.UserUpdateApplied
		return tx.Where("user_id = ?", userID).First(&updated).Error
	})

	if err != nil {
		return repository.UserUpdateNoop, nil, errs.NewDatabaseConnectionError(err)
	}
	return result, &updated, nil
}
