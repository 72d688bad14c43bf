package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const memoryConfig = `upstream:
  baseURL: http://upstream.invalid
  username: svc-catalog
  passwordFile: %s
images:
  strategy: tiered
  tierLowBase: https://img.example.com/low
storage:
  type: memory
`

func writeMemoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	secret := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(secret, []byte("secret\n"), 0o600))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(memoryConfig, secret)), 0o600))
	return path
}
