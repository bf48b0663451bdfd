package server

import (
	"encoding/json"
	"strings"
	"time"
)

// Message is the wire envelope. Every line on a connection is one Message.
type Message struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Message types.
const (
	TypeSessionStart   = "session_start"
	TypeSessionStarted = "session_started"
	TypeSessionEnd     = "session_end"
	TypeSessionEnded   = "session_ended"
	TypeToolResponse   = "tool_call_response"
	TypeQueryResponse  = "query_response"
	TypeAck            = "ack"
	TypeError          = "error"

	TypeQueryReload     = "query_reload"
	TypeQueryDefinition = "query_definition"
	TypeQueryReferences = "query_references"
	TypeQueryCompletion = "query_completion"
	TypeQuerySymbols    = "query_symbols"
)

// Error codes carried in ErrorData.Code.
const (
	CodeInvalidJSON        = "INVALID_JSON"
	CodeMissingType        = "MISSING_TYPE"
	CodeMissingSessionID   = "MISSING_SESSION_ID"
	CodeInvalidSession     = "INVALID_SESSION"
	CodeInvalidArguments   = "INVALID_ARGUMENTS"
	CodeQueryError         = "QUERY_ERROR"
	CodeToolError          = "TOOL_ERROR"
	CodeUnknownTool        = "UNKNOWN_TOOL"
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
)

// ErrorData is the payload of an "error" reply.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CallID  string `json:"call_id,omitempty"`
}

// messageClass groups message types by routing prefix.
type messageClass int

const (
	classUnknown messageClass = iota
	classSession
	classTool
	classQuery
	classPassthrough
)

func classify(typ string) messageClass {
	switch {
	case typ == TypeSessionStart || typ == TypeSessionEnd:
		return classSession
	case strings.HasPrefix(typ, "tool_"):
		return classTool
	case strings.HasPrefix(typ, "query_"):
		return classQuery
	case strings.HasPrefix(typ, "message_"), strings.HasPrefix(typ, "content_block_"):
		return classPassthrough
	default:
		return classUnknown
	}
}

// reply builds a response to req with data marshalled as the payload.
func reply(req *Message, typ, session string, data any) *Message {
	m := &Message{
		Type:      typ,
		SessionID: session,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if req != nil {
		m.CorrelationID = req.CorrelationID
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			raw, _ = json.Marshal(ErrorData{Code: CodeQueryError, Message: err.Error()})
			m.Type = TypeError
		}
		m.Data = raw
	}
	return m
}

func errorReply(req *Message, session, code, msg string) *Message {
	return reply(req, TypeError, session, ErrorData{Code: code, Message: msg})
}

// decodeData unmarshals the payload of m into v. An absent payload leaves
// v untouched.
func decodeData(m *Message, v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}
