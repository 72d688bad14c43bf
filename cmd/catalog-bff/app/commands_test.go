package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
	pkgsync "github.com/greenhouse-labs/catalog-bff/internal/sync"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
	syncmocks "github.com/greenhouse-labs/catalog-bff/internal/sync/mocks"
	"github.com/greenhouse-labs/catalog-bff/internal/versions"
)

// resolveLogLevel and the version command read package globals, so these
// tests do not run in parallel.

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		level string
		want  slog.Level
	}{
		{name: "default", want: slog.LevelInfo},
		{name: "debug flag", debug: true, level: "error", want: slog.LevelDebug},
		{name: "warn", level: "WARN", want: slog.LevelWarn},
		{name: "warning alias", level: "warning", want: slog.LevelWarn},
		{name: "error", level: "error", want: slog.LevelError},
		{name: "invalid falls back to info", level: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			viper.Set("debug", tt.debug)
			viper.Set("log_level", tt.level)

			assert.Equal(t, tt.want, resolveLogLevel())
		})
	}
}

func TestLoadConfig_RequiresPath(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config is required")
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(func() { _ = versionCmd.Flags().Set("format", "") })

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.SetArgs([]string{"--format", "json"})
	require.NoError(t, versionCmd.Execute())

	var info versions.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, versions.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	out.Reset()
	versionCmd.SetArgs([]string{"--format", ""})
	require.NoError(t, versionCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "catalog-bff "))
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "Y\n", want: true},
		{input: "  yes  \n", want: true},
		{input: "y", want: true},
		{input: "no\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Continue?"))
			assert.Equal(t, "Continue? (yes/no): ", out.String())
		})
	}
}

func TestMigrationTarget_RequiresDatabase(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("config", writeMemoryConfig(t))

	_, _, err := migrationTarget()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations require the postgres storage type")
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	runOnStartup := false
	syncCfg := &config.SyncConfig{RunOnStartup: &runOnStartup}

	tests := []struct {
		name    string
		result  *pkgsync.Result
		syncErr *pkgsync.Error
		wantErr string
	}{
		{
			name:   "success",
			result: &pkgsync.Result{Pages: 2, Kept: 10, Stored: 10},
		},
		{
			name:    "empty result is not fatal",
			syncErr: &pkgsync.Error{Err: pkgsync.ErrEmptyResult, Message: "no records", Reason: pkgsync.ReasonEmptyResult},
		},
		{
			name:    "fetch failure",
			syncErr: &pkgsync.Error{Err: errors.New("boom"), Message: "upstream down", Reason: pkgsync.ReasonFetchFailed},
			wantErr: "sync failed (FetchFailed): upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			manager := syncmocks.NewMockManager(ctrl)
			manager.EXPECT().PerformSync(gomock.Any()).Return(tt.result, tt.syncErr)

			c := coordinator.New(manager, syncCfg)
			t.Cleanup(func() { _ = c.Stop() })

			err := runOnce(context.Background(), c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
