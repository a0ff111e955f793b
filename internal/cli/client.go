package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/scenesync"
	"github.com/aretw0/scenesync/internal/config"
	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/document"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/idgen"
	"github.com/aretw0/scenesync/pkg/observability"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
	"gopkg.in/yaml.v3"
)

// ManagerOptions maps the client settings onto document manager options.
func ManagerOptions(cfg config.Client, logger *slog.Logger) ([]document.Option, error) {
	policy, err := cfg.EvictionPolicy()
	if err != nil {
		return nil, err
	}
	ids := ports.IDGenerator(idgen.NewULID())
	if cfg.IDs == "uuid" {
		ids = idgen.NewUUID()
	}
	return []document.Option{
		document.WithLogger(logger),
		document.WithIDGenerator(ids),
		document.WithHooks(observability.LogHooks(logger)),
		document.WithCapacity(cfg.Capacity),
		document.WithEvictionPolicy(policy),
		document.WithSendTimeout(cfg.SendTimeout),
	}, nil
}

// Apply tracks the file's document on the configured authority, submits the
// transaction and returns the authority's answer with the resulting local view.
func Apply(ctx context.Context, cfg config.Client, logger *slog.Logger, f *TxnFile) (*wire.Response, *domain.DocumentSnapshot, error) {
	opts, err := ManagerOptions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	c, err := connect(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()

	if err := c.Track(ctx, f.Document); err != nil {
		return nil, nil, err
	}
	t, err := f.Build(c.NewTransaction(f.Document))
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.Apply(ctx, t)
	if err != nil {
		return resp, nil, err
	}
	snap, err := c.Snapshot(f.Document)
	return resp, snap, err
}

func connect(ctx context.Context, cfg config.Client, opts ...document.Option) (*scenesync.Client, error) {
	remote := scenesync.Remote{BaseURL: cfg.Authority, Token: cfg.Token}
	switch cfg.Transport {
	case config.TransportWebSocket:
		remote.WebSocket = true
	case config.TransportHTTP, "":
	default:
		return nil, fmt.Errorf("unknown transport %q (want http or ws)", cfg.Transport)
	}
	return scenesync.Dial(ctx, remote, opts...)
}

func remoteClient(cfg config.Client) *scenehttp.Client {
	return scenehttp.NewClient(cfg.Authority, scenehttp.WithToken(cfg.Token))
}

// IssueToken mints a bearer token for subject with the server's auth secret.
func IssueToken(cfg config.Server, subject string, ttl time.Duration) (string, error) {
	if cfg.AuthSecret == "" {
		return "", errors.New("server.auth_secret is not set")
	}
	auth, err := scenehttp.NewAuthenticator([]byte(cfg.AuthSecret))
	if err != nil {
		return "", err
	}
	return auth.Issue(subject, ttl)
}

// Show fetches a document from the authority and writes it as YAML.
func Show(ctx context.Context, cfg config.Client, documentID string, w io.Writer) error {
	snap, err := remoteClient(cfg).Load(ctx, documentID)
	if err != nil {
		return err
	}
	return WriteYAML(w, snap)
}

// List writes the ids of the documents held by the authority, one per line.
func List(ctx context.Context, cfg config.Client, w io.Writer) error {
	ids, err := remoteClient(cfg).List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML encodes v with two-space indentation.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
