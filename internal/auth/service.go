// Package auth は外部IdPによる管理者認証とセッションCookieの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
)

// IdentityProvider はIdPクライアントのインターフェース。
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*model.LoginResult, error)
	SignUp(ctx context.Context, email, password, displayName string) (*model.AdminUser, error)
	CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error)
	LookupByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	UpdateUser(ctx context.Context, localID, email, password, displayName string) error
}

// MetricsRecorder はログイン試行の結果を記録する。
type MetricsRecorder interface {
	RecordLoginAttempt(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration // セッションCookieの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp     IdentityProvider
	metrics MetricsRecorder
	config  ServiceConfig
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(idp IdentityProvider, metrics MetricsRecorder, config ServiceConfig, logger *slog.Logger) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 5 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{idp: idp, metrics: metrics, config: config, logger: logger}
}

// SessionTTL はセッションCookieの有効期間を返す。
func (s *Service) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// IdPが認証を拒否した場合は*ProviderErrorを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	result, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		s.record(metrics.ResultFailure)
		s.logger.WarnContext(ctx, "ログインに失敗しました",
			slog.String("email", email),
			slog.String("code", ProviderErrorCode(err)),
		)
		return nil, err
	}

	cookie, err := s.idp.CreateSessionCookie(ctx, result.IDToken, s.config.SessionTTL)
	if err != nil {
		s.record(metrics.ResultFailure)
		return nil, fmt.Errorf("セッションCookieの発行に失敗しました: %w", err)
	}
	result.SessionCookie = cookie
	if result.Email == "" {
		result.Email = email
	}

	s.record(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "管理者がログインしました",
		slog.String("local_id", result.LocalID),
	)
	return result, nil
}

// Signup は管理者ユーザーを登録する。
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*model.AdminUser, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidInputError("メールアドレスとパスワードは必須です")
	}
	user, err := s.idp.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "管理者ユーザーを登録しました",
		slog.String("local_id", user.LocalID),
	)
	return user, nil
}

// GetUser はメールアドレスで管理者を取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) GetUser(ctx context.Context, email string) (*model.AdminUser, error) {
	if email == "" {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.idp.LookupByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateUser は管理者情報を更新する。空文字列のフィールドは変更しない。
func (s *Service) UpdateUser(ctx context.Context, localID string, update model.ProfileUpdate) error {
	return s.idp.UpdateUser(ctx, localID, update.Email, update.Password, update.DisplayName)
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt(result)
	}
}

var _ IdentityProvider = (*IdentityClient)(nil)
