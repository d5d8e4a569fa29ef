package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/rolodex/internal/config"
	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
	"github.com/zjrosen/rolodex/internal/flags"
	"github.com/zjrosen/rolodex/internal/infrastructure/sqlite"
)

const testAccount = "0x9999999999999999999999999999999999999999"

type testEnv struct {
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	t.Setenv("ROLODEX_DEBUG", "")
	dir := t.TempDir()
	return testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "data", "contacts.db"),
	}
}

// run executes a fresh command tree against the env's config and database.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd, c := newRootCmd()
	defer c.shutdown()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", e.configPath, "--db", e.dbPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e testEnv) add(t *testing.T, first string) domain.ContactPayload {
	t.Helper()
	out, err := e.run(t, "add", "--first", first, "--last", "Vera", "--phone", "1234567890",
		"--email", first+"@algo.com", "--account", testAccount)
	require.NoError(t, err)
	var p domain.ContactPayload
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	return p
}

func TestCLI_AddGetList(t *testing.T) {
	env := newTestEnv(t)

	rafael := env.add(t, "Rafael")
	require.Equal(t, domain.ID(1), rafael.ID)
	require.Equal(t, testAccount, rafael.Account.String())
	env.add(t, "Karen")

	out, err := env.run(t, "get", "2")
	require.NoError(t, err)
	var karen domain.ContactPayload
	require.NoError(t, json.Unmarshal([]byte(out), &karen))
	require.Equal(t, "Karen", karen.FirstName)
	require.Equal(t, "Karen@algo.com", karen.Email)

	out, err = env.run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "1\tRafael\tVera\t1234567890\tRafael@algo.com\t"+testAccount, lines[0])
	require.True(t, strings.HasPrefix(lines[1], "2\tKaren\t"))
}

func TestCLI_UpdateKeepsUnsetFields(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "Rafael")

	out, err := env.run(t, "update", "1", "--email", "rafa@algo.com")
	require.NoError(t, err)

	var p domain.ContactPayload
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.Equal(t, "rafa@algo.com", p.Email)
	require.Equal(t, "Rafael", p.FirstName)
	require.Equal(t, testAccount, p.Account.String())
}

func TestCLI_DeleteReportsReplacement(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"Rafael", "Karen", "Monserrat"} {
		env.add(t, name)
	}

	out, err := env.run(t, "delete", "1")
	require.NoError(t, err)
	var res domain.Deletion
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, domain.Deletion{ID: 1, ReplacedByID: 3}, res)

	out, err = env.run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, strings.HasPrefix(lines[0], "3\t"), "last record moves into the freed slot")
	require.True(t, strings.HasPrefix(lines[1], "2\t"))

	// Ids are never reused.
	require.Equal(t, domain.ID(4), env.add(t, "Marcelo").ID)
}

func TestCLI_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "Rafael")

	_, err := env.run(t, "get", "9")
	require.True(t, domain.IsNotFound(err))

	_, err = env.run(t, "delete", "9")
	require.True(t, domain.IsNotFound(err))

	_, err = env.run(t, "update", "9", "--first", "Karen")
	require.True(t, domain.IsNotFound(err))
}

func TestCLI_InvalidArguments(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "get", "abc")
	require.ErrorContains(t, err, "invalid contact id")

	_, err = env.run(t, "add", "--first", "Rafael", "--account", "0x12")
	require.ErrorContains(t, err, "want 40 hex digits")

	_, err = env.run(t, "get")
	require.Error(t, err)
}

func TestCLI_AddWithoutAccountUsesZeroAccount(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "add", "--first", "Rafael")
	require.NoError(t, err)
	var p domain.ContactPayload
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.True(t, p.Account.IsZero())
}

func TestCLI_WritesDefaultConfig(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "list")
	require.NoError(t, err)

	data, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))
}

func TestCLI_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("tracing:\n  sample_rate: 2\n"), 0600))

	_, err := env.run(t, "list")
	require.ErrorContains(t, err, "sample_rate")
}

func TestCLI_FlagsSetAndList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "flags", "set", flags.FlagMemoryOnly, "true")
	require.NoError(t, err)
	require.Contains(t, out, "memory-only=true")

	out, err = env.run(t, "flags", "list")
	require.NoError(t, err)
	require.Regexp(t, `(?m)^memory-only\s+true\s`, out)
	require.Regexp(t, `(?m)^idempotency\s+true\s`, out)

	_, err = env.run(t, "flags", "set", "turbo", "true")
	require.ErrorContains(t, err, "unknown flag")

	_, err = env.run(t, "flags", "set", flags.FlagIdempotency, "maybe")
	require.Error(t, err)
}

func TestCLI_MemoryOnlySkipsDatabase(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "flags", "set", flags.FlagMemoryOnly, "true")
	require.NoError(t, err)

	env.add(t, "Rafael")

	_, err = os.Stat(env.dbPath)
	require.True(t, os.IsNotExist(err), "memory-only must not create the database")

	out, err := env.run(t, "list")
	require.NoError(t, err)
	require.Empty(t, strings.TrimSpace(out), "nothing survives between memory-only runs")
}

func TestWatchDatabase_ReloadsOnExternalWrite(t *testing.T) {
	t.Setenv("ROLODEX_DEBUG", "")
	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "contacts.db")
	cfg.Watch.Debounce = 20 * time.Millisecond
	c := &cli{cfg: cfg, flags: flags.New(cfg.Flags)}

	r, closeDB, err := c.openRegistry()
	require.NoError(t, err)
	defer func() { _ = closeDB() }()

	stop, err := c.watchDatabase(r)
	require.NoError(t, err)
	defer stop()

	// A second process, as far as the registry can tell.
	db, err := sqlite.NewDB(cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()
	other, err := registry.Open(db.ContactStore())
	require.NoError(t, err)
	_, err = other.Add(domain.Fields{FirstName: "Rafael"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.Len() == 1 }, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, domain.ID(2), r.NextID())
}
