package media

import "context"

// Store is the external document host. Uploads return a durable
// retrieval URL or fail; nothing is persisted locally on failure.
type Store interface {
	Upload(ctx context.Context, data []byte, filename, folder string) (string, error)
}

// Active is the store the controllers upload through. main wires the
// Cloudinary implementation; tests swap in a fake.
var Active Store
