package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"relatio/pkg/logger"
)

// Channel is the NOTIFY channel carrying definition-change events.
// Payload format: "{orgId}:{entityType}".
const Channel = "custom_fields_changed"

// Listener drops cached definition lists when another instance mutates the
// definition catalog, using PostgreSQL LISTEN/NOTIFY. Without it a multi-
// instance deployment would be bounded only by the TTL safety net.
type Listener struct {
	pool  *pgxpool.Pool
	cache Cache

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewListener creates a listener invalidating entries in cache.
func NewListener(pool *pgxpool.Pool, cache Cache) *Listener {
	return &Listener{pool: pool, cache: cache}
}

// Start begins listening for NOTIFY events.
func (l *Listener) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.lifecycleMu.Lock()
	if l.started {
		l.lifecycleMu.Unlock()
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true
	l.lifecycleMu.Unlock()

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "definition cache listener started")
}

// Stop gracefully stops the listener.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	logger.Info(context.Background(), "definition cache listener stopped")
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		// Acquire dedicated connection for LISTEN
		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		_, err = conn.Exec(l.ctx, "LISTEN "+Channel)
		if err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *Listener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		// Wait with timeout so Stop() is not blocked indefinitely.
		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return // shutting down
			}
			if ctx.Err() != nil {
				// Timeout is expected, keep waiting.
				continue
			}
			// Broken connection, re-acquire.
			logger.Warn(l.ctx, "notification wait failed", "error", err)
			return
		}

		l.handleNotification(notification.Payload)
	}
}

func (l *Listener) handleNotification(payload string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return
	}

	key := "definitions:" + payload
	l.cache.Delete(l.ctx, key)
	logger.Debug(l.ctx, "invalidated definition cache from notification", "key", key)
}
