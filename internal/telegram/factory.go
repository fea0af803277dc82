package telegram

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"

	"github.com/harhitroot/tgmirror/internal/config"
)

// NewPersistentClient creates an authorized gotgproto client whose session
// lives in a local sqlite database, so auth key refreshes survive restarts.
func NewPersistentClient(cfg *config.Config) (*gotgproto.Client, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SessionFile), 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	clientOpts := &gotgproto.ClientOpts{
		Session:          sessionMaker.SqlSession(sqlite.Open(cfg.SessionFile)),
		DisableCopyright: true,
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(cfg.TGPhone),
		clientOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return client, nil
}
