// -----------------------------------------------------------------------
// Continuation Queue - Badger-backed at-least-once message transport
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/models"
)

// envelope wraps a continuation with queue bookkeeping.
type envelope struct {
	ID           string               `json:"id"`
	Body         *models.Continuation `json:"body"`
	EnqueuedAt   time.Time            `json:"enqueued_at"`
	VisibleAt    time.Time            `json:"visible_at"`
	ReceiveCount int                  `json:"receive_count"`
}

// Manager implements a persistent continuation queue on BadgerDB.
//
// Key layout:
//   queue:{name}:msg:{id}                  -> envelope JSON
//   queue:{name}:index:{visibleAtNanos}:{id} -> empty (visibility index)
//   queue:{name}:dead:{id}                 -> envelope JSON (over max receive)
//
// The visibility index keys sort by timestamp, so a receive scan stops at the
// first future entry. A received message is re-indexed at now+visibility
// timeout; deleting it before then acks it, otherwise it is redelivered.
// This gives the at-least-once semantics the orchestrator is written against.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewManager creates a new Badger-backed queue manager
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 2 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 5
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds a continuation to the queue, immediately visible.
func (m *Manager) Enqueue(ctx context.Context, msg *models.Continuation) error {
	return m.EnqueueDelayed(ctx, msg, 0)
}

// EnqueueDelayed adds a continuation that becomes visible after delay. The
// orchestrator uses this for the configured inter-step delay between pages.
func (m *Manager) EnqueueDelayed(ctx context.Context, msg *models.Continuation, delay time.Duration) error {
	if msg == nil || msg.JobID == "" {
		return errors.New("continuation with job_id is required")
	}

	env := envelope{
		ID:         msg.ID,
		Body:       msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now().Add(delay),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue envelope: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(env.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, env.ID), []byte{})
	})
}

// Receive claims the next visible continuation. The returned ack function
// permanently removes the message; an unacked message becomes visible again
// after the visibility timeout. Returns models.ErrNoMessage when empty.
func (m *Manager) Receive(ctx context.Context) (*models.Continuation, func() error, error) {
	var claimed envelope
	found := false

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			indexKey := it.Item().KeyCopy(nil)

			visibleAt, id, err := m.parseIndexKey(indexKey)
			if err != nil {
				continue
			}
			if visibleAt.After(now) {
				// Keys sort by timestamp: nothing further is ready either.
				break
			}

			item, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry; clean it up and keep scanning.
					if err := txn.Delete(indexKey); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= m.maxReceive {
				if err := m.deadLetter(txn, indexKey, &env); err != nil {
					return err
				}
				continue
			}

			// Claim: bump receive count and push visibility out.
			env.ReceiveCount++
			env.VisibleAt = now.Add(m.visibilityTimeout)

			data, err := json.Marshal(env)
			if err != nil {
				return fmt.Errorf("failed to marshal claimed envelope: %w", err)
			}
			if err := txn.Set(m.msgKey(id), data); err != nil {
				return err
			}
			if err := txn.Delete(indexKey); err != nil {
				return err
			}
			if err := txn.Set(m.indexKey(env.VisibleAt, id), []byte{}); err != nil {
				return err
			}

			claimed = env
			found = true
			return nil
		}

		// Return nil even when nothing was deliverable: the scan may have
		// dead-lettered a poison message or cleaned orphaned index entries,
		// and an error here would roll those writes back.
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, models.ErrNoMessage
	}

	ack := func() error {
		return m.delete(claimed.ID, claimed.VisibleAt)
	}
	return claimed.Body, ack, nil
}

// Len returns the number of pending (non-dead-letter) messages.
func (m *Manager) Len() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (m *Manager) delete(id string, visibleAt time.Time) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(m.msgKey(id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(m.indexKey(visibleAt, id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
}

// deadLetter moves an over-delivered message out of the active queue so a
// poison continuation cannot loop forever.
func (m *Manager) deadLetter(txn *badger.Txn, indexKey []byte, env *envelope) error {
	m.logger.Warn().
		Str("message_id", env.ID).
		Str("job_id", env.Body.JobID).
		Int("receive_count", env.ReceiveCount).
		Msg("Continuation exceeded max receives, moving to dead letter")

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := txn.Set(m.deadKey(env.ID), data); err != nil {
		return err
	}
	if err := txn.Delete(indexKey); err != nil {
		return err
	}
	return txn.Delete(m.msgKey(env.ID))
}

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) deadKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dead:%s", m.queueName, id))
}

// indexKey encodes the visibility timestamp as zero-padded nanoseconds so
// lexicographic key order equals chronological order.
func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	parts := strings.SplitN(string(key), ":", 5)
	if len(parts) != 5 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[4], nil
}
