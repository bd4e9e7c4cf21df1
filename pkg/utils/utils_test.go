package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ana@example.com"))
	assert.NoError(t, ValidateEmail("remy.ledger+f07@corp.example.co"))
	assert.Error(t, ValidateEmail("ana"))
	assert.Error(t, ValidateEmail("ana@example"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateCode(t *testing.T) {
	for _, code := range []string{"PENDING", "WAITING_ACCOUNT_1", "IT_PROCESS"} {
		assert.NoError(t, ValidateCode(code), code)
	}
	for _, code := range []string{"", "pending", "1ST", "WAITING-CLOSE", "IN PROGRESS"} {
		assert.Error(t, ValidateCode(code), code)
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "f07.log")
	logger, err := NewLogger(LoggerConfig{Level: "DEBUG", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("Request submitted")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Request submitted"`)
	assert.Contains(t, string(content), `"timestamp"`)
}

func TestNewLogger_Console(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "bogus", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}
