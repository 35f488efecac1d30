package user

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/blogman/internal/model"
)

// --- モック ---

type mockAccountService struct {
	getUserFn    func(ctx context.Context, email string) (*model.AdminUser, error)
	updateUserFn func(ctx context.Context, localID string, update model.ProfileUpdate) error
}

func (m *mockAccountService) GetUser(ctx context.Context, email string) (*model.AdminUser, error) {
	return m.getUserFn(ctx, email)
}

func (m *mockAccountService) UpdateUser(ctx context.Context, localID string, update model.ProfileUpdate) error {
	if m.updateUserFn != nil {
		return m.updateUserFn(ctx, localID, update)
	}
	return nil
}

func existingAdmin(_ context.Context, email string) (*model.AdminUser, error) {
	if email != "admin@example.com" {
		return nil, model.NewUserNotFoundError()
	}
	return &model.AdminUser{LocalID: "uid-1", Email: email, DisplayName: "管理者"}, nil
}

// --- テスト ---

func TestService_GetProfile(t *testing.T) {
	svc := NewService(&mockAccountService{getUserFn: existingAdmin}, nil)

	user, err := svc.GetProfile(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if user.LocalID != "uid-1" {
		t.Errorf("LocalID = %q", user.LocalID)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	var gotID string
	var gotUpdate model.ProfileUpdate
	accounts := &mockAccountService{
		getUserFn: existingAdmin,
		updateUserFn: func(_ context.Context, localID string, update model.ProfileUpdate) error {
			gotID = localID
			gotUpdate = update
			return nil
		},
	}
	svc := NewService(accounts, nil)

	updated, err := svc.UpdateProfile(context.Background(), "admin@example.com", model.ProfileUpdate{
		DisplayName:     " 新しい名前 ",
		Password:        "newpass",
		PasswordConfirm: "newpass",
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if gotID != "uid-1" {
		t.Errorf("localID = %q, want uid-1", gotID)
	}
	wantUpdate := model.ProfileUpdate{DisplayName: "新しい名前", Password: "newpass", PasswordConfirm: "newpass"}
	if diff := cmp.Diff(wantUpdate, gotUpdate); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
	want := &model.AdminUser{LocalID: "uid-1", Email: "admin@example.com", DisplayName: "新しい名前"}
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestService_UpdateProfile_PasswordMismatch(t *testing.T) {
	accounts := &mockAccountService{
		getUserFn: existingAdmin,
		updateUserFn: func(context.Context, string, model.ProfileUpdate) error {
			t.Error("パスワード不一致でも更新が呼ばれました")
			return nil
		},
	}
	svc := NewService(accounts, nil)

	_, err := svc.UpdateProfile(context.Background(), "admin@example.com", model.ProfileUpdate{
		Password:        "a",
		PasswordConfirm: "b",
	})
	if got := model.ErrorCode(err); got != model.ErrCodePasswordMismatch {
		t.Errorf("code = %q, want %q", got, model.ErrCodePasswordMismatch)
	}
}

func TestService_UpdateProfile_UserNotFound(t *testing.T) {
	svc := NewService(&mockAccountService{getUserFn: existingAdmin}, nil)

	_, err := svc.UpdateProfile(context.Background(), "ghost@example.com", model.ProfileUpdate{DisplayName: "x"})
	if got := model.ErrorCode(err); got != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", got, model.ErrCodeUserNotFound)
	}
}

func TestService_UpdateProfile_ProviderError(t *testing.T) {
	providerErr := errors.New("EMAIL_EXISTS")
	accounts := &mockAccountService{
		getUserFn: existingAdmin,
		updateUserFn: func(context.Context, string, model.ProfileUpdate) error {
			return providerErr
		},
	}
	svc := NewService(accounts, nil)

	_, err := svc.UpdateProfile(context.Background(), "admin@example.com", model.ProfileUpdate{Email: "taken@example.com"})
	if !errors.Is(err, providerErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}
