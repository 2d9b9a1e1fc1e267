package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	corecontext "relatio/internal/core/context"
	"relatio/internal/core/id"
	"relatio/internal/domain/customfield"
)

// CompressionAlgo specifies the compression algorithm used for a stored
// audit payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                 id.ID           `db:"id"`
	OrganizationID     id.ID           `db:"organization_id"`
	EntityType         string          `db:"entity_type"`
	EntityID           id.ID           `db:"entity_id"`
	Action             string          `db:"action"`
	UserID             string          `db:"user_id"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

// AuditService records schema change history. Large snapshots (choice
// lists can get big) are zstd-compressed above a threshold.
//
// Implements customfield.Auditor.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ customfield.Auditor = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = corecontext.GetUserID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Snapshot) > s.compressThreshold {
		entry.SnapshotCompressed = s.encoder.EncodeAll(entry.Snapshot, nil)
		entry.Snapshot = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO schema_audit (
			id, organization_id, entity_type, entity_id, action, user_id,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.OrganizationID, entry.EntityType, entry.EntityID,
		entry.Action, entry.UserID,
		entry.Snapshot, entry.SnapshotCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	return err
}

// LogChange records a definition lifecycle change with a full snapshot of
// the definition after the change.
func (s *AuditService) LogChange(ctx context.Context, action string, def *customfield.Definition) error {
	snapshot, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		OrganizationID: def.OrganizationID,
		EntityType:     def.EntityType,
		EntityID:       def.ID,
		Action:         action,
		Snapshot:       snapshot,
	})
}

// History returns definition lifecycle changes, newest first, with
// compressed snapshots inflated back to JSON.
//
// Implements customfield.Auditor.
func (s *AuditService) History(ctx context.Context, orgID, entityID id.ID, limit int) ([]customfield.ChangeEntry, error) {
	entries, err := s.getHistory(ctx, orgID, entityID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]customfield.ChangeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, customfield.ChangeEntry{
			Action:    e.Action,
			UserID:    e.UserID,
			Snapshot:  e.Snapshot,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

func (s *AuditService) getHistory(ctx context.Context, orgID, entityID id.ID, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, organization_id, entity_type, entity_id, action, user_id,
			   snapshot, snapshot_compressed, compression_algo, created_at
		FROM schema_audit
		WHERE organization_id = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, orgID, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityID, &e.Action,
			&e.UserID, &e.Snapshot, &e.SnapshotCompressed, &e.CompressionAlgo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.SnapshotCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.SnapshotCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress snapshot: %w", err)
			}
			e.Snapshot = decompressed
			e.SnapshotCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
