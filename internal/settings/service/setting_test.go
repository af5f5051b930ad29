package service

import (
	"context"
	"testing"

	"slotbook/internal/settings/repository"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Mock repository for testing
type mockSettingRepository struct {
	getFunc         func(ctx context.Context, key string) (*model.Setting, error)
	setFunc         func(ctx context.Context, key, value string) error
	setIfAbsentFunc func(ctx context.Context, key, value string) error
}

func (m *mockSettingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	return nil, repository.ErrNotFound
}

func (m *mockSettingRepository) Set(ctx context.Context, key, value string) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, key, value)
	}
	return nil
}

func (m *mockSettingRepository) SetIfAbsent(ctx context.Context, key, value string) error {
	if m.setIfAbsentFunc != nil {
		return m.setIfAbsentFunc(ctx, key, value)
	}
	return nil
}

type mockListener struct {
	chatID int64
}

func (m *mockListener) SetAdminChat(chatID int64) {
	m.chatID = chatID
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})

	return &config.Config{
		Log:          log,
		DefaultPrice: 350,
		AdminChatID:  -100500,
	}
}

func TestGetPrice_FallsBackWhenMissing(t *testing.T) {
	service := NewSettingService(&mockSettingRepository{}, testConfig(), nil)

	price, err := service.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 350 {
		t.Errorf("expected default price 350, got %d", price)
	}
}

func TestGetPrice_FallsBackWhenMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "abc"},
		{name: "zero", value: "0"},
		{name: "negative", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSettingRepository{
				getFunc: func(ctx context.Context, key string) (*model.Setting, error) {
					return &model.Setting{Key: key, Value: tt.value}, nil
				},
			}
			service := NewSettingService(repo, testConfig(), nil)

			price, err := service.GetPrice(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if price != 350 {
				t.Errorf("expected default price 350, got %d", price)
			}
		})
	}
}

func TestGetPrice_ReturnsStoredValue(t *testing.T) {
	repo := &mockSettingRepository{
		getFunc: func(ctx context.Context, key string) (*model.Setting, error) {
			return &model.Setting{Key: key, Value: "500"}, nil
		},
	}
	service := NewSettingService(repo, testConfig(), nil)

	price, err := service.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 500 {
		t.Errorf("expected price 500, got %d", price)
	}
}

func TestSetPrice_RejectsNonPositive(t *testing.T) {
	service := NewSettingService(&mockSettingRepository{}, testConfig(), nil)

	for _, price := range []int64{0, -10} {
		err := service.SetPrice(context.Background(), price)
		if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("price %d: expected INVALID_INPUT, got %v", price, err)
		}
	}
}

func TestSetPrice_Persists(t *testing.T) {
	var storedKey, storedValue string
	repo := &mockSettingRepository{
		setFunc: func(ctx context.Context, key, value string) error {
			storedKey = key
			storedValue = value
			return nil
		},
	}
	service := NewSettingService(repo, testConfig(), nil)

	if err := service.SetPrice(context.Background(), 420); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if storedKey != model.SettingPricePerQuestion || storedValue != "420" {
		t.Errorf("stored %s=%s, want %s=420", storedKey, storedValue, model.SettingPricePerQuestion)
	}
}

func TestSetAdminChatID_RetargetsListener(t *testing.T) {
	listener := &mockListener{}
	service := NewSettingService(&mockSettingRepository{}, testConfig(), listener)

	if err := service.SetAdminChatID(context.Background(), -200700); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listener.chatID != -200700 {
		t.Errorf("expected listener retargeted to -200700, got %d", listener.chatID)
	}
}

func TestSetAdminChatID_RejectsZero(t *testing.T) {
	service := NewSettingService(&mockSettingRepository{}, testConfig(), &mockListener{})

	err := service.SetAdminChatID(context.Background(), 0)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestEnsureDefaults_SeedsAndPushesChat(t *testing.T) {
	seeded := map[string]string{}
	repo := &mockSettingRepository{
		setIfAbsentFunc: func(ctx context.Context, key, value string) error {
			seeded[key] = value
			return nil
		},
	}
	listener := &mockListener{}
	service := NewSettingService(repo, testConfig(), listener)

	if err := service.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded[model.SettingPricePerQuestion] != "350" {
		t.Errorf("expected price seeded to 350, got %q", seeded[model.SettingPricePerQuestion])
	}
	if seeded[model.SettingAdminChatID] != "-100500" {
		t.Errorf("expected admin chat seeded, got %q", seeded[model.SettingAdminChatID])
	}
	if listener.chatID != -100500 {
		t.Errorf("expected listener primed with -100500, got %d", listener.chatID)
	}
}
