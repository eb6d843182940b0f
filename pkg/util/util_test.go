package util_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/agubarev/chapi/pkg/util"
	"github.com/stretchr/testify/assert"
)

func TestPrettyPrint(t *testing.T) {
	a := assert.New(t)

	var buf bytes.Buffer
	a.NoError(util.PrettyPrint(&buf, map[string]string{"id": "a@x.com"}))
	a.Equal("{\n  \"id\": \"a@x.com\"\n}\n", buf.String())
}

func TestDefaultLoggerWithDirectory(t *testing.T) {
	a := assert.New(t)

	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := util.DefaultLogger(false, dir)
	a.NoError(err)
	a.NotNil(logger)

	logger.Info("hello")
	logger.Error("boom")
	a.NoError(logger.Sync())

	std, err := os.ReadFile(filepath.Join(dir, "standard.log"))
	a.NoError(err)
	a.Contains(string(std), "hello")
	a.NotContains(string(std), "boom")

	errs, err := os.ReadFile(filepath.Join(dir, "errors.log"))
	a.NoError(err)
	a.Contains(string(errs), "boom")
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	a := assert.New(t)

	dir := filepath.Join(t.TempDir(), "a", "b")
	a.False(util.Exists(dir))

	a.NoError(util.CreateDirectoryIfNotExists(dir, 0755))
	a.True(util.Exists(dir))

	// twice is fine
	a.NoError(util.CreateDirectoryIfNotExists(dir, 0755))

	file := filepath.Join(dir, "file")
	a.NoError(os.WriteFile(file, []byte("x"), 0600))
	a.Error(util.CreateDirectoryIfNotExists(file, 0755))
}
