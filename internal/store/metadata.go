package store

import "context"

// SetMetadata upserts a key-value pair in the metadata table.
func (qs queries) SetMetadata(ctx context.Context, key, value string) error {
	_, err := qs.exec(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (qs queries) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := qs.queryRow(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err = notFound(err); err == ErrNotFound {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the sha256 recorded for an imported quiz file.
func (qs queries) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	return qs.GetMetadata(ctx, "import:"+path)
}

// SetImportedFileHash records the sha256 of an imported quiz file.
func (qs queries) SetImportedFileHash(ctx context.Context, path, hash string) error {
	return qs.SetMetadata(ctx, "import:"+path, hash)
}
