// Package user は管理者プロフィールの参照と更新を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
)

// AccountService はIdP上の管理者アカウントを操作するインターフェース。
// auth.Serviceの部分集合として定義する。
type AccountService interface {
	GetUser(ctx context.Context, email string) (*model.AdminUser, error)
	UpdateUser(ctx context.Context, localID string, update model.ProfileUpdate) error
}

// Service は管理者プロフィールのサービス層。
type Service struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts AccountService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, logger: logger}
}

// GetProfile はログイン中の管理者のメールアドレスでプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, email string) (*model.AdminUser, error) {
	return s.accounts.GetUser(ctx, email)
}

// UpdateProfile は管理者情報を更新し、更新後のプロフィールを返す。
// パスワードを変更する場合は確認用パスワードと一致している必要がある。
// 空文字列のフィールドは変更しない。
func (s *Service) UpdateProfile(ctx context.Context, email string, update model.ProfileUpdate) (*model.AdminUser, error) {
	update.Email = strings.TrimSpace(update.Email)
	update.DisplayName = strings.TrimSpace(update.DisplayName)

	if update.Password != update.PasswordConfirm {
		return nil, model.NewPasswordMismatchError()
	}

	current, err := s.accounts.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateUser(ctx, current.LocalID, update); err != nil {
		return nil, fmt.Errorf("管理者情報の更新に失敗しました: %w", err)
	}

	updated := *current
	if update.Email != "" {
		updated.Email = update.Email
	}
	if update.DisplayName != "" {
		updated.DisplayName = update.DisplayName
	}

	s.logger.InfoContext(ctx, "管理者情報を更新しました",
		slog.String("local_id", current.LocalID),
		slog.Bool("password_changed", update.Password != ""),
	)
	return &updated, nil
}
