package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/models"
)

// envelope wraps a queue message with delivery bookkeeping
type envelope struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// BadgerQueue is a persistent delayed-visibility queue on BadgerDB.
// Message data lives under queue:{name}:msg:{id}; a sorted visibility
// index under queue:{name}:index:{timestamp}:{id} makes the next ready
// message a prefix seek away. Delayed enqueue is how continuous
// campaigns schedule their own next run.
type BadgerQueue struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewBadgerQueue creates a queue on an existing Badger database
func NewBadgerQueue(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 35 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &BadgerQueue{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds an immediately visible message
func (q *BadgerQueue) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	return q.EnqueueDelayed(ctx, msg, 0)
}

// EnqueueDelayed adds a message that becomes visible after delay
func (q *BadgerQueue) EnqueueDelayed(ctx context.Context, msg models.QueueMessage, delay time.Duration) error {
	if msg.ID == "" {
		return errors.New("message ID is required")
	}

	now := time.Now()
	env := envelope{
		ID:         msg.ID,
		Body:       msg,
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}

	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.msgKey(env.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(env.VisibleAt, env.ID), []byte{})
	})
}

// Receive claims the next visible message. The returned delete function
// acknowledges the message; without it the message reappears after the
// visibility timeout. Returns models.ErrNoMessage when nothing is ready.
func (q *BadgerQueue) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	var env envelope
	var msgID string
	var oldIndexKey []byte

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by timestamp, so nothing later is ready.
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry.
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= q.maxReceive {
				// Poison message: drop it instead of looping forever.
				q.logger.Warn().
					Str("message_id", id).
					Int("receive_count", env.ReceiveCount).
					Msg("Dropping message after max receives")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return models.ErrNoMessage
		}

		env.ReceiveCount++
		env.VisibleAt = time.Now().Add(q.visibilityTimeout)

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(env.VisibleAt, msgID), []byte{})
	})
	if err != nil {
		return nil, nil, err
	}

	deleteFn := func() error {
		return q.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(q.msgKey(msgID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil
				}
				return err
			}

			var current envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(q.indexKey(current.VisibleAt, msgID)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(q.msgKey(msgID))
		})
	}

	return &env.Body, deleteFn, nil
}

// Extend pushes a claimed message's visibility further into the future
func (q *BadgerQueue) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(q.msgKey(messageID))
		if err != nil {
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		oldVisibleAt := env.VisibleAt
		env.VisibleAt = time.Now().Add(duration)

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(messageID), data); err != nil {
			return err
		}
		if err := txn.Delete(q.indexKey(oldVisibleAt, messageID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(q.indexKey(env.VisibleAt, messageID), []byte{})
	})
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.queueName, id))
}

func (q *BadgerQueue) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad so lexicographic order matches numeric order.
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.queueName, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", q.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
