package bot

// Event is one inbound chat event delivered by the transport layer.
// Exactly four kinds exist; HandleEvent consumes them in one switch.
type Event interface {
	kind() string
}

// RoomMessage is a message broadcast to all room participants.
type RoomMessage struct {
	Author string
	Body   string
}

// DirectMessage is a one-to-one message sent to the bot.
type DirectMessage struct {
	Sender string
	Body   string
}

// JoinNotice reports that a participant entered the room.
type JoinNotice struct {
	Nick string
}

// LeaveNotice reports that a participant left the room.
type LeaveNotice struct {
	Nick string
}

func (RoomMessage) kind() string   { return "room_message" }
func (DirectMessage) kind() string { return "direct_message" }
func (JoinNotice) kind() string    { return "join" }
func (LeaveNotice) kind() string   { return "leave" }

// Scope says how an outgoing message is delivered.
type Scope int

const (
	// ScopeRoom broadcasts to the whole room; To is ignored.
	ScopeRoom Scope = iota
	// ScopeDirect sends privately to the nick in To.
	ScopeDirect
)

// OutgoingMessage is a response the transport layer must deliver.
type OutgoingMessage struct {
	To    string
	Body  string
	Scope Scope
}
