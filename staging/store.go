// Package staging stores large intermediate artifacts out of band. Pipeline
// messages carry only the returned handle; the payload itself lives in Redis
// or S3.
package staging

import "context"

// Handle is an opaque reference to a staged payload.
type Handle struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
	Size    int64  `json:"size"`
}

// Store stages payloads and retrieves them by handle.
type Store interface {
	Put(ctx context.Context, key string, payload []byte) (Handle, error)
	Get(ctx context.Context, handle Handle) ([]byte, error)
}
