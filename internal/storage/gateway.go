package storage

import "context"

// Gateway is the narrow object-storage contract the persistence engine
// consumes. Implementations must be stateless and safe for concurrent use;
// each operation opens fresh handles rather than caching streams.
type Gateway interface {
	// Upload stores a fully buffered payload under key. Uploads are
	// single-shot, never resumable.
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// Download returns the full payload stored under key.
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object under key. With ignoreMissing set, a missing
	// object is not an error.
	Delete(ctx context.Context, key string, ignoreMissing bool) error
}
