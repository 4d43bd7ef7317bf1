package client

import (
	"context"

	"github.com/dmitrijs2005/habitsync/internal/client/syncengine"
)

type Client interface {
	syncengine.RemoteStore

	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (string, error)
	// Subscribe delivers a wake-up whenever another device changed the
	// zone. The channel is closed when the stream ends.
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// AssetFiles is the part of the asset store the transport needs.
type AssetFiles interface {
	Read(path string) ([]byte, error)
	Stage(name string, data []byte) (string, error)
	ClearStaging() error
}
