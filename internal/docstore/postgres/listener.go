package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"waterledger/internal/docstore"
)

// Listen relays acknowledged changes made by other processes into the local
// change feed. It holds a dedicated connection on LISTEN and reconnects
// with a flat backoff until the context is cancelled. Changes originating
// from this process are skipped; the write path already echoed them.
func (s *Store) Listen(ctx context.Context, dsn string) {
	for {
		if err := s.listenOnce(ctx, dsn); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Printf("docstore listener error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, `LISTEN `+changeChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var payload notifyPayload
		if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
			s.logger.Printf("docstore listener: bad payload: %v", err)
			continue
		}
		if payload.Origin == s.origin {
			continue
		}
		s.hub.Publish(docstore.Change{
			Collection: payload.Collection,
			ID:         payload.ID,
			Kind:       payload.Kind,
		})
	}
}
