package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// TextMessageType is the reserved envelope type carrying plain text.
// Every other type value is user-defined and routed to OnJSON.
const TextMessageType = "$text$"

// Envelope is the wire format of the JSON sub-protocol.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JSONHandlers holds the user callbacks of the JSON layer. Both are
// optional and default to diagnostic logging.
type JSONHandlers struct {
	OnText func(msg string)
	OnJSON func(typ string, data json.RawMessage)
}

// JSONConn layers the {type, data} envelope sub-protocol on top of a
// Conn. It is plain composition: the JSONConn holds the base Conn and
// installs itself as its message handler. Binary frames and control
// frames pass through the base Conn untouched.
//
// Construct it before calling Run on the base Conn.
type JSONConn struct {
	conn     *Conn
	handlers JSONHandlers
	logger   *slog.Logger
}

func NewJSONConn(conn *Conn, handlers JSONHandlers) *JSONConn {
	j := &JSONConn{
		conn:     conn,
		handlers: handlers,
		logger:   conn.logger,
	}
	conn.handlers.OnMessage = j.handleMessage
	return j
}

// Conn returns the wrapped base connection.
func (j *JSONConn) Conn() *Conn {
	return j.conn
}

// SendJSON wraps data in a {type, data} envelope and sends it as a
// text frame. A payload that cannot be serialized fails with an error
// wrapping ErrEncoding before anything is sent.
func (j *JSONConn) SendJSON(typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	envelope, err := json.Marshal(Envelope{Type: typ, Data: payload})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return j.conn.SendText(string(envelope))
}

// SendText sends a plain-text message through the envelope protocol,
// using the reserved text type.
func (j *JSONConn) SendText(msg string) error {
	return j.SendJSON(TextMessageType, msg)
}

// handleMessage decodes inbound text frames. Malformed input is logged
// and discarded; a parse failure must never take the read loop down
// with it.
func (j *JSONConn) handleMessage(msg string) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg), &env); err != nil {
		j.logger.Error("discarding malformed JSON message", "error", err, "raw", msg)
		return
	}

	if env.Type == TextMessageType {
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			j.logger.Error("discarding text envelope with non-string data", "error", err, "raw", msg)
			return
		}
		if j.handlers.OnText == nil {
			j.logger.Info("text message received", "text", text)
			return
		}
		j.handlers.OnText(text)
		return
	}

	if j.handlers.OnJSON == nil {
		j.logger.Info("json message received", "type", env.Type, "data", string(env.Data))
		return
	}
	j.handlers.OnJSON(env.Type, env.Data)
}
