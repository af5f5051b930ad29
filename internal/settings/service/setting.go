package service

import (
	"context"
	"errors"
	"slotbook/internal/settings/repository"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"strconv"
)

type SettingService interface {
	// EnsureDefaults seeds the boot-time values that must exist before the
	// first booking: the per-question price and the admin chat destination.
	EnsureDefaults(ctx context.Context) error

	GetPrice(ctx context.Context) (int64, error)
	SetPrice(ctx context.Context, price int64) error

	GetAdminChatID(ctx context.Context) (int64, error)
	SetAdminChatID(ctx context.Context, chatID int64) error
}

// AdminChatListener is notified when the admin chat destination changes, so
// the notifier can switch targets without a restart.
type AdminChatListener interface {
	SetAdminChat(chatID int64)
}

type settingService struct {
	repo     repository.SettingRepository
	cfg      *config.Config
	listener AdminChatListener
}

func NewSettingService(repo repository.SettingRepository, cfg *config.Config, listener AdminChatListener) SettingService {
	return &settingService{
		repo:     repo,
		cfg:      cfg,
		listener: listener,
	}
}

func (s *settingService) EnsureDefaults(ctx context.Context) error {
	if err := s.repo.SetIfAbsent(ctx, model.SettingPricePerQuestion, strconv.FormatInt(s.cfg.DefaultPrice, 10)); err != nil {
		return apperrors.Internal("Failed to seed default price", err)
	}

	if s.cfg.AdminChatID != 0 {
		if err := s.repo.SetIfAbsent(ctx, model.SettingAdminChatID, strconv.FormatInt(s.cfg.AdminChatID, 10)); err != nil {
			return apperrors.Internal("Failed to seed admin chat", err)
		}
	}

	chatID, err := s.GetAdminChatID(ctx)
	if err == nil && s.listener != nil {
		s.listener.SetAdminChat(chatID)
	}

	return nil
}

func (s *settingService) GetPrice(ctx context.Context) (int64, error) {
	setting, err := s.repo.Get(ctx, model.SettingPricePerQuestion)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.cfg.DefaultPrice, nil
		}
		return 0, apperrors.Internal("Failed to retrieve price", err)
	}

	price, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil || price <= 0 {
		s.cfg.Log.Warn("Stored price is malformed, using default",
			"value", setting.Value,
			"default", s.cfg.DefaultPrice,
		)
		return s.cfg.DefaultPrice, nil
	}

	return price, nil
}

func (s *settingService) SetPrice(ctx context.Context, price int64) error {
	if price <= 0 {
		return apperrors.InvalidInput("Price must be a positive number")
	}

	if err := s.repo.Set(ctx, model.SettingPricePerQuestion, strconv.FormatInt(price, 10)); err != nil {
		s.cfg.Log.Error("Failed to set price", "price", price, "error", err)
		return apperrors.Internal("Failed to set price", err)
	}

	s.cfg.Log.Info("Price updated", "price", price)
	return nil
}

func (s *settingService) GetAdminChatID(ctx context.Context) (int64, error) {
	setting, err := s.repo.Get(ctx, model.SettingAdminChatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.cfg.AdminChatID, nil
		}
		return 0, apperrors.Internal("Failed to retrieve admin chat", err)
	}

	chatID, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return s.cfg.AdminChatID, nil
	}

	return chatID, nil
}

// SetAdminChatID persists the new destination and retargets the notifier in
// one step. This replaces guessing from delivery failures: the operator says
// where admin messages go, explicitly.
func (s *settingService) SetAdminChatID(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return apperrors.InvalidInput("Admin chat ID cannot be zero")
	}

	if err := s.repo.Set(ctx, model.SettingAdminChatID, strconv.FormatInt(chatID, 10)); err != nil {
		s.cfg.Log.Error("Failed to set admin chat", "chat_id", chatID, "error", err)
		return apperrors.Internal("Failed to set admin chat", err)
	}

	if s.listener != nil {
		s.listener.SetAdminChat(chatID)
	}

	s.cfg.Log.Info("Admin chat updated", "chat_id", chatID)
	return nil
}
