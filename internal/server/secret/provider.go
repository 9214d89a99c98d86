// Package secret resolves the symmetric signing secret used for access
// tokens. The priority chain is: explicit configuration value, then a
// previously persisted value from the data directory, then a freshly
// generated value persisted for reuse across restarts.
package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/logging"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/shared"
)

const (
	// placeholderSecret is the known insecure default shipped in sample
	// configs. An explicit secret equal to it is rejected.
	placeholderSecret = "change-me-secret"
	minSecretLength   = 32
	secretFileName    = "jwt_secret"
	// generatedSecretBytes random bytes, hex-encoded on disk.
	generatedSecretBytes = 64
)

// Provider resolves and caches the signing secret. It is safe for
// concurrent use; the secret is resolved once and reused for the
// process lifetime. Obtain it through dependency injection, there is no
// package-level instance.
type Provider struct {
	configured string
	dataDir    string
	production bool
	logger     logging.Logger

	mu     sync.Mutex
	cached []byte
}

func NewProvider(cfg *config.Config, logger logging.Logger) *Provider {
	return &Provider{
		configured: cfg.JWTSecret,
		dataDir:    cfg.DataDir,
		production: cfg.IsProduction(),
		logger:     logger.With("module", "secret"),
	}
}

// Secret returns the cached signing secret, resolving it on first use.
// An explicit configured value that is too short or equal to the known
// placeholder yields a configuration error; the process must not serve
// authenticated routes in that case.
func (p *Provider) Secret(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}

	if explicit := strings.TrimSpace(p.configured); explicit != "" {
		if len(explicit) < minSecretLength || explicit == placeholderSecret {
			return nil, autherr.New(autherr.KindConfiguration,
				fmt.Sprintf("jwt secret must be at least %d characters and differ from the default placeholder", minSecretLength))
		}
		p.cached = []byte(explicit)
		return p.cached, nil
	}

	if stored := p.readFromDisk(ctx); stored != "" {
		p.cached = []byte(stored)
		return p.cached, nil
	}

	generated, err := shared.MakeRandHexString(generatedSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generating jwt secret: %w", err)
	}
	p.cached = []byte(generated)
	p.persistToDisk(ctx, generated)
	if p.production {
		p.logger.Warn(ctx, "jwt secret was not configured; generated a new one and persisted it")
	}
	return p.cached, nil
}

// readFromDisk returns a previously persisted secret, or "" when none
// is usable. Read failures other than absence are logged, not fatal:
// a fresh secret only invalidates outstanding access tokens, which are
// short-lived.
func (p *Provider) readFromDisk(ctx context.Context) string {
	data, err := os.ReadFile(p.secretFilePath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn(ctx, "reading persisted jwt secret failed", "error", err.Error())
		}
		return ""
	}
	stored := strings.TrimSpace(string(data))
	if len(stored) < minSecretLength {
		return ""
	}
	return stored
}

func (p *Provider) persistToDisk(ctx context.Context, secret string) {
	if err := os.MkdirAll(p.dataDir, 0o700); err != nil {
		p.logger.Warn(ctx, "creating data directory failed", "error", err.Error())
		return
	}
	if err := os.WriteFile(p.secretFilePath(), []byte(secret), 0o600); err != nil {
		p.logger.Warn(ctx, "persisting jwt secret failed", "error", err.Error())
	}
}

func (p *Provider) secretFilePath() string {
	return filepath.Join(p.dataDir, secretFileName)
}
