// Package leech subscribes to the tracker's websocket event hub and
// relays every event into the hub event stream, where the processor
// worker picks them up. The relay carries the tracker event id as the
// hub event hash, so reconnect replays deduplicate server-side.
package leech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// RelayTopic is the hub topic leeched tracker events land on.
const RelayTopic = "ftrack.leech"

// Leecher relays one tracker server's events.
type Leecher struct {
	client  *ayon.Client
	tracker ftrack.Config
	sender  string
	logger  *slog.Logger
}

// New builds a leecher.
func New(client *ayon.Client, tracker ftrack.Config, sender string, logger *slog.Logger) (*Leecher, error) {
	if err := tracker.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Leecher{client: client, tracker: tracker, sender: sender, logger: logger}, nil
}

// Run connects, subscribes, and relays until ctx is cancelled.
// Connection loss reconnects with a capped backoff.
func (l *Leecher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("event hub connection lost", "error", err, "retryIn", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// handshake opens a socket session and returns its id. The endpoint
// answers "sessionid:heartbeat:timeout:transports".
func (l *Leecher) handshake(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/socket.io/1/?api_user=%s&api_key=%s",
		strings.TrimRight(l.tracker.ServerURL, "/"),
		url.QueryEscape(l.tracker.Username),
		url.QueryEscape(l.tracker.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("event hub handshake: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("event hub handshake returned status %d", resp.StatusCode)
	}
	sessionID, _, ok := strings.Cut(string(body), ":")
	if !ok || sessionID == "" {
		return "", fmt.Errorf("malformed handshake response %q", string(body))
	}
	return sessionID, nil
}

func (l *Leecher) listenOnce(ctx context.Context) error {
	sessionID, err := l.handshake(ctx)
	if err != nil {
		return err
	}

	wsURL := strings.TrimRight(l.tracker.ServerURL, "/") + "/socket.io/1/websocket/" + sessionID
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial event hub: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(-1)

	if err := l.subscribe(ctx, conn); err != nil {
		return err
	}
	l.logger.Info("subscribed to tracker event hub")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read event hub frame: %w", err)
		}
		frame := string(data)
		switch {
		case strings.HasPrefix(frame, "2::"):
			// Heartbeat; echo it to keep the session alive.
			if err := conn.Write(ctx, websocket.MessageText, []byte("2::")); err != nil {
				return fmt.Errorf("answer heartbeat: %w", err)
			}
		case strings.HasPrefix(frame, "5:::"):
			l.handlePacket(ctx, frame[len("5:::"):])
		case strings.HasPrefix(frame, "0::"):
			return fmt.Errorf("event hub disconnected the session")
		}
	}
}

// subscribe emits the wildcard subscription so every event reaches
// this session.
func (l *Leecher) subscribe(ctx context.Context, conn *websocket.Conn) error {
	packet := map[string]any{
		"name": "ftrack.meta.subscribe",
		"args": []any{map[string]any{
			"topic": "topic=*",
			"subscriber": map[string]any{
				"id":            l.sender,
				"applicationId": "ftrack-sync",
			},
		}},
	}
	encoded, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, append([]byte("5:::"), encoded...)); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}
	return nil
}

// trackerEvent is the slice of an event-hub payload the relay needs.
type trackerEvent struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func (l *Leecher) handlePacket(ctx context.Context, payload string) {
	var packet struct {
		Name string            `json:"name"`
		Args []json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal([]byte(payload), &packet); err != nil {
		l.logger.Debug("unparseable event hub packet", "error", err)
		return
	}
	if packet.Name != "ftrack.event" || len(packet.Args) == 0 {
		return
	}
	var event trackerEvent
	if err := json.Unmarshal(packet.Args[0], &event); err != nil {
		l.logger.Debug("unparseable tracker event", "error", err)
		return
	}
	if event.ID == "" {
		return
	}
	l.relay(ctx, event, packet.Args[0])
}

func (l *Leecher) relay(ctx context.Context, event trackerEvent, raw json.RawMessage) {
	_, err := l.client.DispatchEvent(ctx, ayon.DispatchRequest{
		Topic:       RelayTopic,
		Hash:        event.ID,
		Sender:      l.sender,
		Description: "tracker event " + event.Topic,
		Payload:     raw,
		Finished:    true,
		Store:       true,
	})
	if err != nil {
		l.logger.Warn("event relay failed", "trackerEvent", event.ID, "error", err)
		return
	}
	l.logger.Debug("event relayed", "trackerEvent", event.ID, "topic", event.Topic)
}
