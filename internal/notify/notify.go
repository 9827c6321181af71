// Package notify surfaces order-status changes while a chat session is open.
// It prefers a push socket from the backend and falls back to polling the
// orders resource on a schedule when no socket is configured.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	robcron "github.com/robfig/cron/v3"
	"nhooyr.io/websocket"

	"shop_assistant/internal/applog"
	"shop_assistant/internal/shop"
)

// Notification is one order-status change to show the user.
type Notification struct {
	OrderID     int       `json:"order_id"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

// Display renders the notification as a single chat line.
func (n Notification) Display() string {
	msg := strings.TrimSpace(n.Message)
	if msg != "" {
		return msg
	}
	label := strings.TrimSpace(n.StatusLabel)
	if label == "" {
		label = shop.StatusLabel(n.Status)
	}
	return fmt.Sprintf("주문 %d번 상태가 '%s'(으)로 변경되었어요.", n.OrderID, label)
}

type Options struct {
	// SocketURL is the backend push socket. Empty means poll only.
	SocketURL string
	// PollSpec is a cron expression or @every descriptor for the poll
	// fallback.
	PollSpec string
	Shop     *shop.Client
	Logger   *applog.Logger
	OnNotify func(Notification)
}

type Listener struct {
	socketURL string
	schedule  robcron.Schedule
	shop      *shop.Client
	logger    *applog.Logger
	onNotify  func(Notification)

	lastStatus map[int]string
}

func NewListener(opts Options) (*Listener, error) {
	if opts.OnNotify == nil {
		return nil, errors.New("notify callback is required")
	}
	socketURL := strings.TrimSpace(opts.SocketURL)

	var schedule robcron.Schedule
	if socketURL == "" {
		spec := strings.TrimSpace(opts.PollSpec)
		if spec == "" {
			spec = "@every 5m"
		}
		if opts.Shop == nil {
			return nil, errors.New("shop client is required for polling")
		}
		parser := robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)
		parsed, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parse poll spec: %w", err)
		}
		schedule = parsed
	}

	return &Listener{
		socketURL:  socketURL,
		schedule:   schedule,
		shop:       opts.Shop,
		logger:     opts.Logger,
		onNotify:   opts.OnNotify,
		lastStatus: make(map[int]string),
	}, nil
}

// Run blocks until the context is cancelled, delivering notifications
// through the callback. Socket disconnects reconnect with backoff.
func (l *Listener) Run(ctx context.Context) error {
	if l == nil {
		return errors.New("nil listener")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if l.socketURL == "" {
		return l.pollLoop(ctx)
	}

	backoff := 1 * time.Second
	const backoffMax = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.listenOnce(ctx)
		if err == nil {
			backoff = 1 * time.Second
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		l.logger.Logf(applog.KindNotify, "socket disconnected: %v", err)

		jitter := time.Duration(rand.IntN(500)) * time.Millisecond
		sleep := backoff + jitter
		if sleep > backoffMax {
			sleep = backoffMax
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, l.socketURL, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(256 << 10)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	l.logger.Logf(applog.KindNotify, "socket connected url=%s", l.socketURL)

	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if mt != websocket.MessageText {
			continue
		}
		n, err := parseSocketMessage(data)
		if err != nil {
			l.logger.Logf(applog.KindWarn, "notify message dropped: %v raw=%s", err, applog.Preview(string(data), 200))
			continue
		}
		l.onNotify(n)
	}
}

// socket frames carry a type discriminator so the backend can multiplex
// other message kinds on the same socket later.
func parseSocketMessage(data []byte) (Notification, error) {
	var msg struct {
		Type        string `json:"type"`
		OrderID     int    `json:"order_id"`
		Status      string `json:"status"`
		StatusLabel string `json:"status_label"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return Notification{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type != "order_status" {
		return Notification{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.OrderID <= 0 {
		return Notification{}, errors.New("order_id is missing")
	}
	status := strings.TrimSpace(msg.Status)
	if status == "" {
		return Notification{}, errors.New("status is missing")
	}
	label := strings.TrimSpace(msg.StatusLabel)
	if label == "" {
		label = shop.StatusLabel(status)
	}
	return Notification{
		OrderID:     msg.OrderID,
		Status:      status,
		StatusLabel: label,
		Message:     strings.TrimSpace(msg.Message),
		At:          time.Now().UTC(),
	}, nil
}

func (l *Listener) pollLoop(ctx context.Context) error {
	// Seed the baseline quietly so startup does not replay every known
	// order as a "change".
	if orders, err := l.shop.Orders(ctx); err == nil {
		for _, o := range orders {
			l.lastStatus[o.ID] = o.Status
		}
	}

	for {
		next := l.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		orders, err := l.shop.Orders(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Logf(applog.KindNotify, "poll skipped: %v", err)
			continue
		}
		for _, n := range l.diffOrders(orders) {
			l.onNotify(n)
		}
	}
}

// diffOrders compares a fresh order listing against the last seen statuses
// and returns one notification per changed order.
func (l *Listener) diffOrders(orders []shop.Order) []Notification {
	var out []Notification
	now := time.Now().UTC()
	for _, o := range orders {
		prev, seen := l.lastStatus[o.ID]
		l.lastStatus[o.ID] = o.Status
		if !seen || prev == o.Status {
			continue
		}
		out = append(out, Notification{
			OrderID:     o.ID,
			Status:      o.Status,
			StatusLabel: shop.StatusLabel(o.Status),
			At:          now,
		})
	}
	return out
}
