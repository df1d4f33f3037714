package mysql

import (
	"testing"
	"time"

	"statsingest/internal/model"
	"statsingest/internal/repository"
)

func TestUserRepositoryInterface(t *testing.T) {
	var _ repository.UserRepository = (*userRepository)(nil)
}

func TestNewUserRepository(t *testing.T) {
	repo := NewUserRepository(nil)
	if repo == nil {
		t.Fatal("NewUserRepository should not return nil")
	}
	if _, ok := repo.(*userRepository); !ok {
		t.Error("NewUserRepository should return *userRepository")
	}
}

func TestUserModelShape(t *testing.T) {
	u := model.User{
		UserID:   "U00001",
		Username: "alice",
		Email:    "alice@example.com",
		Active:   true,
		Statistics: model.Statistics{
			LoginCount:    12,
			PostCount:     25,
			LastUpdatedAt: time.Now(),
		},
	}

	if u.UserID == "" {
		t.Error("UserID should not be empty")
	}
	if u.LoginCount != 12 {
		t.Errorf("LoginCount = %d, want 12", u.LoginCount)
	}
	if u.TableName() != "users" {
		t.Errorf("TableName() = %q, want users", u.TableName())
	}
}

func TestUserUpdateValues(t *testing.T) {
	tests := []struct {
		name   string
		result repository.UserUpdate
	}{
		{"applied", repository.UserUpdateApplied},
		{"noop", repository.UserUpdateNoop},
	}

	seen := map[repository.UserUpdate]bool{}
	for _, tt := range tests {
		if seen[tt.result] {
			t.Errorf("duplicate UserUpdate value for %s", tt.name)
		}
		seen[tt.result] = true
	}
}
