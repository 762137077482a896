package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontani-server/internal/config"
)

func TestRun_UnreachableStoreReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  driver: postgres
  host: 127.0.0.1
  port: 1
  database: none
  username: none
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cm, err := config.NewManagerWithFile(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = run(ctx, cm, logger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "catalog store")
}
