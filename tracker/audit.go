package tracker

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const auditBucket = "completed_decisions"

// AuditLog is a bbolt-backed write-through log of completed decision
// records. Keys are "<pipelineId>/<completedAt RFC3339Nano>" so a pipeline's
// entries list in completion order.
type AuditLog struct {
	db *bolt.DB
}

// OpenAuditLog opens or creates the audit database at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(auditBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit bucket: %w", err)
	}

	return &AuditLog{db: db}, nil
}

// Append stores a completed record.
func (a *AuditLog) Append(record *DecisionRecord) error {
	if record.CompletedAt == nil {
		return fmt.Errorf("record %s is not completed", record.PipelineID)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	key := fmt.Sprintf("%s/%s", record.PipelineID, record.CompletedAt.UTC().Format(time.RFC3339Nano))
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(auditBucket)).Put([]byte(key), data)
	})
}

// List returns a pipeline's audited records in completion order.
func (a *AuditLog) List(pipelineID string) ([]*DecisionRecord, error) {
	prefix := []byte(pipelineID + "/")
	var records []*DecisionRecord

	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(auditBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var record DecisionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", k, err)
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// Close closes the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}
