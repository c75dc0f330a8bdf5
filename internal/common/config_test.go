package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LLAMA_CLOUD_API_KEY", "")
	t.Setenv("OCR_LANG", "")
	cfg := LoadConfig()
	assert.Equal(t, "eng", cfg.OCR.Lang)
	assert.Equal(t, "tesseract", cfg.OCR.TesseractBin)
	assert.Equal(t, "https://api.cloud.llamaindex.ai", cfg.Hosted.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OCR_LANG", "hin")
	t.Setenv("LLAMA_CLOUD_POLL_INTERVAL", "250ms")
	t.Setenv("LLAMA_CLOUD_MAX_POLLS", "not-a-number")
	cfg := LoadConfig()
	assert.Equal(t, "hin", cfg.OCR.Lang)
	assert.Equal(t, 250*time.Millisecond, cfg.Hosted.PollInterval)
	assert.Equal(t, 150, cfg.Hosted.MaxPolls)
}

func TestValidateHostedRequiresKey(t *testing.T) {
	t.Setenv("LLAMA_CLOUD_API_KEY", "")
	cfg := LoadConfig()
	cfg.Hosted.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, IsUsage(err))
	assert.Contains(t, err.Error(), "LLAMA_CLOUD_API_KEY")

	cfg.Hosted.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Hosted.BaseURL = "ftp://x"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	p := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(p, []byte("INVOICE_DOTENV_CHECK=yes\n"), 0o600))
	t.Setenv("INVOICE_DOTENV_CHECK", "")
	require.NoError(t, os.Unsetenv("INVOICE_DOTENV_CHECK"))
	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "yes", os.Getenv("INVOICE_DOTENV_CHECK"))
}

func TestValidatorExistingDir(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator().Field("dir", dir, Required, ExistingDir)
	assert.NoError(t, ValidateAndReturnError(v))

	v = NewValidator().Field("dir", filepath.Join(dir, "nope"), Required, ExistingDir)
	err := ValidateAndReturnError(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, v.Error(), ErrValidation)
}
