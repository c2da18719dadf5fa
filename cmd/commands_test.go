// file: cmd/commands_test.go
// version: 2.1.0
// guid: 1b41d73f-7e12-4f5b-93a6-2c8e0d5a6f14

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/jdfalk/music-catalog/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// cliEnv runs the root command against an isolated config file and database.
type cliEnv struct {
	dir    string
	dbPath string
	config string
}

func newCLIEnv(t *testing.T, configYAML string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	env := &cliEnv{
		dir:    dir,
		dbPath: filepath.Join(dir, "data", "catalog.db"),
		config: filepath.Join(dir, "config.yaml"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte(configYAML), 0o600))
	return env
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	full := append([]string{"--config", e.config, "--db", e.dbPath}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func stubStartServer(t *testing.T, fn func(ctx context.Context, srv *server.Server) error) {
	t.Helper()
	orig := startServer
	startServer = fn
	t.Cleanup(func() { startServer = orig })
}

func taggedMP3(t *testing.T) []byte {
	t.Helper()
	tag := id3v2.NewEmptyTag()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle("Starman")
	tag.SetArtist("David Bowie")
	tag.AddTextFrame("TDRC", tag.DefaultEncoding(), "1972")

	var buf bytes.Buffer
	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	buf.Write(bytes.Repeat(frame, 20))
	return buf.Bytes()
}

func TestServeCommand(t *testing.T) {
	env := newCLIEnv(t, "server:\n  port: \"9000\"\n")

	var served *server.Server
	stubStartServer(t, func(ctx context.Context, srv *server.Server) error {
		served = srv
		return nil
	})

	out, err := env.run(t, "", "serve", "--read-timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Using database: "+env.dbPath+" (sqlite)")
	require.NotNil(t, served)

	// The store was opened and migrated before the server started.
	_, err = os.Stat(env.dbPath)
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	served.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeCommandRejectsBadFlags(t *testing.T) {
	env := newCLIEnv(t, "")
	stubStartServer(t, func(context.Context, *server.Server) error {
		t.Fatal("server should not start")
		return nil
	})

	_, err := env.run(t, "", "serve", "--idle-timeout", "forever")
	assert.ErrorContains(t, err, "invalid --idle-timeout")

	_, err = env.run(t, "", "--db-type", "mongo", "serve")
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestExtractCommand(t *testing.T) {
	payload := taggedMP3(t)
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/starman.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer audio.Close()

	artifacts := t.TempDir()
	env := newCLIEnv(t, "extract:\n  retry_max: 0\n  temp_dir: "+artifacts+"\n")

	t.Run("text", func(t *testing.T) {
		out, err := env.run(t, "", "extract", "-q", audio.URL+"/starman.mp3")
		require.NoError(t, err)
		assert.Contains(t, out, "Title:  Starman")
		assert.Contains(t, out, "Singer: David Bowie")
		assert.Contains(t, out, "Year:   1972")
		assert.Contains(t, out, "Cover:  absent")
	})

	t.Run("json", func(t *testing.T) {
		out, err := env.run(t, "", "extract", "--json", audio.URL+"/starman.mp3")
		require.NoError(t, err)
		var got server.ExtractResponse
		require.NoError(t, json.Unmarshal([]byte(out), &got), out)
		assert.Equal(t, server.ExtractResponse{
			Title:    "Starman",
			Singer:   "David Bowie",
			ImageURL: "https://via.placeholder.com/150",
			Year:     1972,
		}, got)
	})

	t.Run("failures", func(t *testing.T) {
		_, err := env.run(t, "", "extract", "-q", audio.URL+"/missing.mp3")
		assert.ErrorContains(t, err, "extraction failed")

		_, err = env.run(t, "", "extract", "-q", "not a url")
		assert.ErrorContains(t, err, "extraction failed")

		_, err = env.run(t, "", "extract")
		assert.Error(t, err)
	})

	entries, err := os.ReadDir(artifacts)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUserAddCommand(t *testing.T) {
	env := newCLIEnv(t, "")

	out, err := env.run(t, "", "user", "add", "alice", "--password", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")

	_, err = env.run(t, "", "user", "add", "alice", "--password", "other")
	assert.ErrorContains(t, err, `user "alice" already exists`)

	_, err = env.run(t, "", "user", "add", "  alice ", "--password", "other")
	assert.ErrorContains(t, err, `user "alice" already exists`)

	_, err = env.run(t, "", "user", "add", "bob")
	assert.ErrorContains(t, err, "--password is required")

	store, err := database.OpenStore(context.Background(), "sqlite", env.dbPath)
	require.NoError(t, err)
	defer store.Close()

	// The rejected attempts left the original password in place.
	user, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")))

	_, err = store.GetUserByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestConfigShowCommand(t *testing.T) {
	env := newCLIEnv(t, "rate_limit:\n  extract_per_minute: 5\n")

	out, err := env.run(t, "", "--db-type", "pebble", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "database_type: pebble")
	assert.Contains(t, out, "database_path: "+env.dbPath)
	assert.Contains(t, out, "extract_per_minute: 5")
	assert.Contains(t, out, "download_timeout: 30s")
}

func TestLogFileFlag(t *testing.T) {
	env := newCLIEnv(t, "")
	logPath := filepath.Join(env.dir, "logs", "catalog.log")
	stubStartServer(t, func(context.Context, *server.Server) error { return nil })

	_, err := env.run(t, "", "--log-file", logPath, "serve")
	require.NoError(t, err)
	assert.Nil(t, logHandle)

	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}
