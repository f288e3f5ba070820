package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/secrets"
	"github.com/investoscope/investoscope-backend/internal/service"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

const testFernetKey = "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4="

func TestCredentialService(t *testing.T) {
	ctx := context.Background()

	t.Run("environment wins over stored keys", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		codec, err := secrets.NewCodec(testFernetKey)
		if err != nil {
			t.Fatalf("codec setup failed: %v", err)
		}
		svc := service.NewCredentialService(
			config.VendorConfig{TwelveDataAPIKey: "env-key"},
			repository.NewSettingRepository(db),
			codec,
		)

		if err := svc.StoreKeys(ctx, "stored-key", ""); err != nil {
			t.Fatalf("store failed: %v", err)
		}

		key, err := svc.TwelveDataKey(ctx)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if key != "env-key" {
			t.Errorf("expected the environment key to win, got %q", key)
		}
	})

	t.Run("stored keys roundtrip encrypted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		codec, err := secrets.NewCodec(testFernetKey)
		if err != nil {
			t.Fatalf("codec setup failed: %v", err)
		}
		svc := service.NewCredentialService(config.VendorConfig{}, repository.NewSettingRepository(db), codec)

		if err := svc.StoreKeys(ctx, "td-secret", "av-secret"); err != nil {
			t.Fatalf("store failed: %v", err)
		}

		// The database must never hold the plaintext.
		var stored string
		if err := db.QueryRow(`SELECT value FROM system_setting WHERE "key" = ?`, "twelvedata_api_key").Scan(&stored); err != nil {
			t.Fatalf("failed to query setting: %v", err)
		}
		if stored == "td-secret" {
			t.Error("vendor key stored in plaintext")
		}

		key, err := svc.TwelveDataKey(ctx)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if key != "td-secret" {
			t.Errorf("expected decrypted td-secret, got %q", key)
		}

		key, err = svc.AlphaVantageKey(ctx)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if key != "av-secret" {
			t.Errorf("expected decrypted av-secret, got %q", key)
		}
	})

	t.Run("empty value leaves existing key untouched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		codec, err := secrets.NewCodec(testFernetKey)
		if err != nil {
			t.Fatalf("codec setup failed: %v", err)
		}
		svc := service.NewCredentialService(config.VendorConfig{}, repository.NewSettingRepository(db), codec)

		if err := svc.StoreKeys(ctx, "original", ""); err != nil {
			t.Fatalf("store failed: %v", err)
		}
		if err := svc.StoreKeys(ctx, "", "av-only"); err != nil {
			t.Fatalf("store failed: %v", err)
		}

		key, err := svc.TwelveDataKey(ctx)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if key != "original" {
			t.Errorf("partial update clobbered the other key: %q", key)
		}
	})

	t.Run("missing key resolves empty without error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		codec, _ := secrets.NewCodec("")
		svc := service.NewCredentialService(config.VendorConfig{}, repository.NewSettingRepository(db), codec)

		key, err := svc.TwelveDataKey(ctx)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if key != "" {
			t.Errorf("expected empty key, got %q", key)
		}
	})

	t.Run("store without fernet key refused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		codec, _ := secrets.NewCodec("")
		svc := service.NewCredentialService(config.VendorConfig{}, repository.NewSettingRepository(db), codec)

		err := svc.StoreKeys(ctx, "td-secret", "")
		if !errors.Is(err, apperrors.ErrSecretsNotConfigured) {
			t.Errorf("expected ErrSecretsNotConfigured, got %v", err)
		}
	})
}
