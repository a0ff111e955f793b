package cli_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/scenesync"
	"github.com/aretw0/scenesync/internal/cli"
	"github.com/aretw0/scenesync/internal/config"
	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func lobby() *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{
		ID:      "lobby",
		Version: 1,
		Root: domain.NodeSnapshot{
			ID: "root",
			Children: []domain.NodeSnapshot{
				{ID: "door", Fields: map[string]domain.FieldSnapshot{
					"open": {Type: domain.FieldBool, Value: "false"},
				}},
				{ID: "chair"},
			},
		},
	}
}

// serve starts a stack built from cfg and points cfg.Client at it.
func serve(t *testing.T, cfg *config.Config) *cli.Stack {
	t.Helper()
	stack, err := cli.NewStack(*cfg, "test", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })

	require.NoError(t, stack.Authority.Put(context.Background(), lobby()))

	srv := httptest.NewServer(stack.Handler)
	t.Cleanup(srv.Close)
	cfg.Client.Authority = srv.URL
	return stack
}

func TestStack_ApplyAndShow(t *testing.T) {
	backends := map[string]func(t *testing.T) config.Config{
		config.BackendMemory: func(t *testing.T) config.Config {
			return config.Default()
		},
		config.BackendFile: func(t *testing.T) config.Config {
			cfg := config.Default()
			cfg.Server.Backend = config.BackendFile
			cfg.Server.DataDir = t.TempDir()
			return cfg
		},
		"encrypted file": func(t *testing.T) config.Config {
			cfg := config.Default()
			cfg.Server.Backend = config.BackendFile
			cfg.Server.DataDir = t.TempDir()
			cfg.Server.Encryption.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
			return cfg
		},
		config.BackendBadger: func(t *testing.T) config.Config {
			cfg := config.Default()
			cfg.Server.Backend = config.BackendBadger
			cfg.Server.Badger.Path = t.TempDir()
			cfg.Server.Badger.SyncWrites = false
			return cfg
		},
		config.BackendRedis: func(t *testing.T) config.Config {
			mr := miniredis.RunT(t)
			cfg := config.Default()
			cfg.Server.Backend = config.BackendRedis
			cfg.Server.Redis.Addr = mr.Addr()
			cfg.Server.Redis.Lock = true
			return cfg
		},
	}

	for name, newConfig := range backends {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			cfg := newConfig(t)
			serve(t, &cfg)

			f, err := cli.ParseTxnFile([]byte(lampTxn))
			require.NoError(t, err)

			resp, snap, err := cli.Apply(ctx, cfg.Client, logging.NewNop(), f)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, int64(2), resp.Version)
			require.NotNil(t, snap)
			require.Len(t, snap.Root.Children, 2)
			assert.Equal(t, "door", snap.Root.Children[0].ID)
			assert.Equal(t, "lamp", snap.Root.Children[1].ID)

			var out bytes.Buffer
			require.NoError(t, cli.Show(ctx, cfg.Client, "lobby", &out))
			var shown domain.DocumentSnapshot
			require.NoError(t, yaml.Unmarshal(out.Bytes(), &shown))
			assert.Equal(t, snap, &shown)

			out.Reset()
			require.NoError(t, cli.List(ctx, cfg.Client, &out))
			assert.Equal(t, "lobby\n", out.String())
		})
	}
}

func TestStack_ApplyOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.Client.Transport = config.TransportWebSocket
	serve(t, &cfg)

	f, err := cli.ParseTxnFile([]byte(lampTxn))
	require.NoError(t, err)
	resp, snap, err := cli.Apply(ctx, cfg.Client, logging.NewNop(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Version)
	assert.Len(t, snap.Root.Children, 2)
}

func TestStack_ApplyDeclined(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	serve(t, &cfg)

	f, err := cli.ParseTxnFile([]byte("document: lobby\nactions:\n  - delete: {id: ghost}\n"))
	require.NoError(t, err)

	resp, _, err := cli.Apply(ctx, cfg.Client, logging.NewNop(), f)
	assert.ErrorIs(t, err, domain.ErrApplicationDeclined)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestStack_Auth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.Server.AuthSecret = "0123456789abcdef0123456789abcdef"
	serve(t, &cfg)

	var out bytes.Buffer
	err := cli.List(ctx, cfg.Client, &out)
	require.Error(t, err, "anonymous requests are refused")

	token, err := cli.IssueToken(cfg.Server, "editor", time.Minute)
	require.NoError(t, err)
	cfg.Client.Token = token

	for _, transport := range []string{config.TransportHTTP, config.TransportWebSocket} {
		cfg.Client.Transport = transport
		f, err := cli.ParseTxnFile([]byte("document: lobby\nactions:\n  - update: {id: door, key: open, type: bool, value: true}\n"))
		require.NoError(t, err)
		resp, _, err := cli.Apply(ctx, cfg.Client, logging.NewNop(), f)
		require.NoError(t, err, transport)
		assert.True(t, resp.Success)
	}

	require.NoError(t, cli.List(ctx, cfg.Client, &out))
	assert.Equal(t, "lobby\n", out.String())
}

func TestIssueToken_NoSecret(t *testing.T) {
	_, err := cli.IssueToken(config.Default().Server, "editor", time.Minute)
	assert.Error(t, err)
}

func TestStack_Metrics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	stack := serve(t, &cfg)
	require.NotNil(t, stack.Metrics)

	c := scenesync.Connect(cfg.Client.Authority)
	defer c.Close()
	require.NoError(t, c.Track(ctx, "lobby"))
	tx, err := c.NewTransaction("lobby").Update("door", "open", true).Build()
	require.NoError(t, err)
	_, err = c.Apply(ctx, tx)
	require.NoError(t, err)

	res, err := http.Get(cfg.Client.Authority + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scenesync_transaction_events_total{event="committed"} 1`)
}

func TestNewStack_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Backend = "etcd"
	_, err := cli.NewStack(cfg, "test", logging.NewNop())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Server.Encryption.Key = base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = cli.NewStack(cfg, "test", logging.NewNop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	logger, err := cli.NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogLevel = "loud"
	_, err = cli.NewLogger(cfg)
	assert.Error(t, err)
}
