package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Outbound frames that are not bus events.
const (
	TypeSession = "session"
)

// Client is one operator connection bound to a session.
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	session     input.SessionHandler
	logger      output.LoggerPort
	limiter     *rate.Limiter
	unsubscribe func()

	// replies that bypass the bus: greeting and request errors
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.unsubscribe()
		c.conn.Close()
	})
}

// greet tells the client its session ID and the current script state.
func (c *Client) greet() {
	if data, err := encode(TypeSession, map[string]string{"id": c.session.ID()}); err == nil {
		c.queue(data)
	}
	state := c.session.State()
	if data, err := encode(string(entity.EventScriptState), &state); err == nil {
		c.queue(data)
	}
}

func (c *Client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, dropping reply")
	}
}

func (c *Client) replyError(err error) {
	data, encErr := encode(TypeError, err.Error())
	if encErr != nil {
		return
	}
	c.queue(data)
}

// readPump is the only reader of the connection.
func (c *Client) readPump(ctx context.Context) {
	defer c.stop()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket read error", "error", err)
			}
			return
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("Malformed frame", "error", err)
			c.replyError(fmt.Errorf("malformed frame: %w", err))
			continue
		}

		if err := c.route(ctx, env); err != nil {
			c.logger.Warn("Request rejected", "type", env.Type, "error", err)
			c.replyError(err)
		}
	}
}

func (c *Client) route(ctx context.Context, env Envelope) error {
	c.logger.Debug("Received frame", "type", env.Type)

	switch env.Type {
	case TypeUserMessage:
		history, err := decodeHistory(env.Payload)
		if err != nil {
			return err
		}
		return c.session.HandleMessages(ctx, history)
	case TypeUserScript:
		text, err := decodeString(env.Payload)
		if err != nil {
			return err
		}
		return c.session.SubmitScript(ctx, text)
	case TypeNextStep:
		return c.session.NextStep(ctx)
	case TypeSwitchToAuto:
		return c.session.SwitchMode(ctx, entity.ModeAuto)
	case TypeSwitchToManual:
		return c.session.SwitchMode(ctx, entity.ModeManual)
	case TypeAbortExecution:
		c.session.Abort(ctx)
		return nil
	case TypeEditStep:
		var p editPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid edit payload: %w", err)
		}
		return c.session.EditStep(ctx, p.Text)
	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
}

// writePump is the only writer of the connection.
func (c *Client) writePump(events <-chan entity.Event) {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.stop()
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			data, err := encodeEvent(e)
			if err != nil {
				c.logger.Warn("Dropping unencodable event", "type", e.Type, "error", err)
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
	return c.conn.WriteMessage(kind, data)
}
