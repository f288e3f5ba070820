package service

import (
	"context"
	"errors"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/secrets"
)

// Setting keys for vendor credentials stored through the admin API.
const (
	settingTwelveDataKey   = "twelvedata_api_key"
	settingAlphaVantageKey = "alphavantage_api_key"
)

// CredentialService resolves vendor API keys. Environment variables win;
// otherwise keys come fernet-encrypted from the settings table, so a key
// rotated through the admin endpoint takes effect without a restart. An
// unresolvable key is empty, not an error: a missing key just disables that
// vendor tier.
type CredentialService struct {
	cfg      config.VendorConfig
	settings *repository.SettingRepository
	codec    *secrets.Codec
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(cfg config.VendorConfig, settings *repository.SettingRepository, codec *secrets.Codec) *CredentialService {
	return &CredentialService{cfg: cfg, settings: settings, codec: codec}
}

// TwelveDataKey implements quotes.KeyProvider.
func (s *CredentialService) TwelveDataKey(ctx context.Context) (string, error) {
	if s.cfg.TwelveDataAPIKey != "" {
		return s.cfg.TwelveDataAPIKey, nil
	}
	return s.storedKey(ctx, settingTwelveDataKey)
}

// AlphaVantageKey implements quotes.KeyProvider.
func (s *CredentialService) AlphaVantageKey(ctx context.Context) (string, error) {
	if s.cfg.AlphaVantageAPIKey != "" {
		return s.cfg.AlphaVantageAPIKey, nil
	}
	return s.storedKey(ctx, settingAlphaVantageKey)
}

// StoreKeys encrypts and stores vendor keys set through the admin API.
// Empty values leave the existing stored key untouched. Requires a
// configured fernet key.
func (s *CredentialService) StoreKeys(ctx context.Context, twelveData, alphaVantage string) error {
	if !s.codec.Enabled() {
		return apperrors.ErrSecretsNotConfigured
	}

	if twelveData != "" {
		token, err := s.codec.Encrypt(twelveData)
		if err != nil {
			return err
		}
		if err := s.settings.Set(ctx, settingTwelveDataKey, token); err != nil {
			return err
		}
	}

	if alphaVantage != "" {
		token, err := s.codec.Encrypt(alphaVantage)
		if err != nil {
			return err
		}
		if err := s.settings.Set(ctx, settingAlphaVantageKey, token); err != nil {
			return err
		}
	}

	return nil
}

func (s *CredentialService) storedKey(ctx context.Context, key string) (string, error) {
	value, err := s.settings.Get(ctx, key)
	if errors.Is(err, apperrors.ErrSettingNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if s.codec.Enabled() {
		return s.codec.Decrypt(value)
	}
	return value, nil
}
