package app

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidCommand is returned for payloads that are not a JSON object
	ErrInvalidCommand = errors.New("invalid command payload")
	// ErrMissingCommand is returned when the object has no "command" field
	ErrMissingCommand = errors.New("missing command field")
)

// CommandKind identifies a client command
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdSendMessage
	CmdPrivateMessage
	CmdCall
	CmdAnswer
	CmdReject
	CmdHangup
	CmdWho
	CmdHistory
	CmdSubscribe
	CmdUnsubscribe
	CmdPublish
	CmdSign
	CmdRefresh
)

var commandNames = map[string]CommandKind{
	"send-message":    CmdSendMessage,
	"private-message": CmdPrivateMessage,
	"call":            CmdCall,
	"answer":          CmdAnswer,
	"reject":          CmdReject,
	"hangup":          CmdHangup,
	"who":             CmdWho,
	"history":         CmdHistory,
	"subscribe":       CmdSubscribe,
	"unsubscribe":     CmdUnsubscribe,
	"publish":         CmdPublish,
	"sign":            CmdSign,
	"refresh":         CmdRefresh,
}

// ParseCommandKind maps a wire name to its kind
func ParseCommandKind(name string) CommandKind {
	return commandNames[name]
}

func (k CommandKind) String() string {
	for name, kind := range commandNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Command is a decoded client message of the form
// {"command": "...", "data": {...}}. Arguments may also sit at the top level.
type Command struct {
	Kind CommandKind
	Name string
	raw  gjson.Result
}

// ParseCommand decodes a text payload
func ParseCommand(payload []byte) (*Command, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidCommand
	}
	raw := gjson.ParseBytes(payload)
	if !raw.IsObject() {
		return nil, ErrInvalidCommand
	}
	name := raw.Get("command").String()
	if name == "" {
		return nil, ErrMissingCommand
	}
	return &Command{Kind: ParseCommandKind(name), Name: name, raw: raw}, nil
}

// Arg looks a field up under "data" first, then at the top level
func (c *Command) Arg(path string) gjson.Result {
	if v := c.raw.Get("data." + path); v.Exists() {
		return v
	}
	return c.raw.Get(path)
}

// String returns a string argument
func (c *Command) String(path string) string {
	return c.Arg(path).String()
}

// Strings returns an argument that may be a single string or an array
func (c *Command) Strings(path string) []string {
	v := c.Arg(path)
	if !v.Exists() {
		return nil
	}
	if !v.IsArray() {
		if s := v.String(); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Data returns the "data" object as a map, empty when absent
func (c *Command) Data() map[string]any {
	if m, ok := c.raw.Get("data").Value().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
