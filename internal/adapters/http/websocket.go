package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/canvass/internal/adapters/nats"
	"github.com/samirrijal/canvass/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to runs.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	RunID  string `json:"runId"`  // "" = every run
}

func wsSubject(runID string) string {
	if runID == "" {
		return natsadapter.SubjectAll
	}
	return natsadapter.RunSubjects(runID)
}

// WebSocketHandler returns a handler that relays enumeration progress
// events from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","runId":"<uuid>"}, or connect
// with ?run=<uuid> to be subscribed on arrival.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote_addr", remoteAddr)
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(subject string) error {
			if nc == nil {
				return nats.ErrConnectionClosed
			}
			s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if run := c.Query("run"); run != "" {
			if err := subscribe(wsSubject(run)); err != nil {
				log.Warn("ws initial subscribe", "error", err)
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			subject := wsSubject(m.RunID)

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}
