package pointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apapsch/go-jsonmerge/v2"
)

// GetBACnetConfig returns the raw JSON of the latest persisted BACnet
// configuration snapshot, or an empty
// document if none has been written yet.
func (db *DB) GetBACnetConfig(ctx context.Context) ([]byte, error) {
	var configJSON string
	err := db.QueryRowContext(ctx,
		"SELECT config_json FROM bacnet_config WHERE singleton_guard = ?", singletonGuard,
	).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading bacnet config: %w", err)
	}
	return []byte(configJSON), nil
}

// PutBACnetConfig overwrites the persisted configuration snapshot with
// the full document in configJSON (used for first-boot bring-up and for
// get_config's "replace" mode).
func (db *DB) PutBACnetConfig(ctx context.Context, configJSON []byte) error {
	err := WithRetry(ctx, func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO bacnet_config (singleton_guard, config_json, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(singleton_guard) DO UPDATE SET
				config_json = excluded.config_json,
				updated_at = excluded.updated_at
		`, singletonGuard, string(configJSON), time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("writing bacnet config: %w", err)
	}
	return nil
}

// MergeBACnetConfig applies a partial JSON patch onto the persisted
// configuration snapshot, CONFIG_UPLOAD handling
// treating an uploaded payload as a merge-patch rather than a full
// replace. Fields absent from
// patchJSON are left untouched; fields present (including nested
// objects) overwrite the corresponding path in the stored document.
func (db *DB) MergeBACnetConfig(ctx context.Context, patchJSON []byte) ([]byte, error) {
	current, err := db.GetBACnetConfig(ctx)
	if err != nil {
		return nil, err
	}

	merger := jsonmerge.Merger{}
	merged, err := merger.Merge(current, patchJSON)
	if err != nil {
		return nil, fmt.Errorf("merging bacnet config patch: %w", err)
	}

	if err := db.PutBACnetConfig(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
