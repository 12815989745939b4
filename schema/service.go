package schema

import "fmt"

// CommandKind tells requests (answered by a response) from events.
type CommandKind uint8

// Command kinds.
const (
	CommandRequest CommandKind = iota
	CommandEvent
)

// String returns the schema spelling of the kind.
func (k CommandKind) String() string {
	if k == CommandEvent {
		return "event"
	}
	return "request"
}

// ParseCommandKind parses a schema command kind.
func ParseCommandKind(s string) (CommandKind, error) {
	switch s {
	case "request", "":
		return CommandRequest, nil
	case "event":
		return CommandEvent, nil
	default:
		return 0, fmt.Errorf("schema: unknown command kind %q", s)
	}
}

// Service is a named set of commands.
type Service struct {
	Name     string     `msgpack:"name"`
	Commands []*Command `msgpack:"commands,omitempty"`
	Options  []Option   `msgpack:"options,omitempty"`
	Pos      Position   `msgpack:"pos"`

	Resolved OptionSet `msgpack:"-"`
}

// Command is one request or event of a service. Request and Response name
// ordinary messages; Response is empty for events.
type Command struct {
	Name        string      `msgpack:"name"`
	ID          int         `msgpack:"id"`
	Kind        CommandKind `msgpack:"kind"`
	Request     string      `msgpack:"request"`
	Response    string      `msgpack:"response,omitempty"`
	RequestRef  *Ref        `msgpack:"request_ref,omitempty"`
	ResponseRef *Ref        `msgpack:"response_ref,omitempty"`
	Options     []Option    `msgpack:"options,omitempty"`
	Pos         Position    `msgpack:"pos"`

	Resolved OptionSet `msgpack:"-"`
}

// Command returns the command with the given name.
func (s *Service) Command(name string) (*Command, bool) {
	for _, c := range s.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
