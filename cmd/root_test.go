package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agubarev/chapi/cmd"
	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()

	config := filepath.Join(dir, "chapi.yaml")
	body := "store:\n  backend: bolt\n  path: " + filepath.Join(dir, "chapi.db") + "\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0600))

	return &cli{t: t, config: config}
}

// run executes a single invocation, stdin is fed from in
func (c *cli) run(in string, args ...string) (string, error) {
	root := cmd.NewRootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(in))
	root.SetArgs(append([]string{"--config", c.config}, args...))

	err := root.Execute()

	return out.String(), err
}

func TestCommandLine(t *testing.T) {
	a := assert.New(t)
	c := newCLI(t)

	_, err := c.run(`{"organization": "acme", "name": "acme"}`, "groups", "create")
	a.NoError(err)

	out, err := c.run("", "users", "create", "--data", `{"organization": "acme", "email": "a@x.com", "name": "Alice"}`)
	a.NoError(err)
	a.Contains(out, `"email": "a@x.com"`)

	out, err = c.run("", "groups", "get", "acme:acme")
	a.NoError(err)

	org := new(entity.Group)
	a.NoError(jsoniter.UnmarshalFromString(out, org))
	a.Equal([]string{"a@x.com"}, org.Members)

	out, err = c.run("", "users", "list", "--organization", "acme")
	a.NoError(err)

	var users []*entity.User
	a.NoError(jsoniter.UnmarshalFromString(out, &users))
	a.Len(users, 1)
	a.Equal("Alice", users[0].Name)

	_, err = c.run("", "users", "migrate", "a@x.com", "globex")
	a.True(fault.IsNotFound(err))

	a.NoError(firstErr(c.run("", "users", "delete", "a@x.com")))

	out, err = c.run("", "users", "list")
	a.NoError(err)
	a.Equal("[]\n", out)

	_, err = c.run("", "applications", "get", "app1")
	a.True(fault.IsNotFound(err))

	_, err = c.run("", "users", "create")
	a.Error(err)

	_, err = c.run("", "groups", "delete", "malformed")
	a.Error(err)
}

func firstErr(_ string, err error) error {
	return err
}
