package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Listen holds a dedicated connection on the notify channel and forwards
// every change to the subscriber of that session. It reconnects after
// failures and returns when ctx is cancelled.
func (p *Postgres) Listen(ctx context.Context) error {
	for {
		err := p.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		p.log.Warn("listener disconnected", zap.Error(err), zap.Duration("retry", p.retry))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.retry):
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", p.channel, err)
	}
	p.log.Info("listening for session changes", zap.String("channel", p.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.dispatch(ctx, n.Payload)
	}
}

func (p *Postgres) dispatch(ctx context.Context, payload string) {
	var msg notification
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		p.log.Warn("bad notification payload", zap.String("payload", payload), zap.Error(err))
		return
	}

	fn := p.subscriber(msg.ID)
	if fn == nil {
		return
	}

	if msg.Deleted {
		fn(Update{Record: Record{ID: msg.ID}, Origin: msg.Origin, Deleted: true})
		return
	}

	rec, err := p.Load(ctx, msg.ID)
	if errors.Is(err, ErrNotFound) {
		// Deleted before we got to read it.
		fn(Update{Record: Record{ID: msg.ID}, Origin: msg.Origin, Deleted: true})
		return
	}
	if err != nil {
		p.log.Warn("reload after notification failed", zap.Int64("session", msg.ID), zap.Error(err))
		return
	}
	fn(Update{Record: rec, Origin: msg.Origin})
}
