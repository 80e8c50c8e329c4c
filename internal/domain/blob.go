package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// LeaderboardArchiver exports a ranked leaderboard run to cold storage and
// returns the object path it was written to.
type LeaderboardArchiver interface {
	Archive(ctx context.Context, run LeaderboardRun) (string, error)
}
