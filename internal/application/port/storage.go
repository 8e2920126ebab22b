package port

import "context"

// FileStorage archives exported documents. Paths are slash-separated keys
// relative to the archive root, e.g. "tenant-1/purchase_order/PO-ACME-2026-000001.xlsx".
type FileStorage interface {
	// Save writes content, replacing any existing object at path
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Delete succeeds when nothing is stored at path
	Delete(ctx context.Context, path string) error
	// GetFullPath returns the backend location of path, for logs and operators
	GetFullPath(relativePath string) string
}
