package audit

import "time"

// Event is the category of a security-relevant action.
type Event string

// Event categories recorded by the trail.
const (
	EventAuthentication      Event = "authentication"
	EventAuthorization       Event = "authorization"
	EventConfiguration       Event = "configuration"
	EventPrivilegedOperation Event = "privileged_operation"
	EventEncryption          Event = "encryption"
	EventConnection          Event = "connection"
	EventFileAccess          Event = "file_access"
	EventCommandExecution    Event = "command_execution"
	EventSystem              Event = "system"
)

// Action is the verb describing what was done.
type Action string

// Action verbs recorded by the trail.
const (
	ActionLogin      Action = "login"
	ActionAccess     Action = "access"
	ActionCreate     Action = "create"
	ActionModify     Action = "modify"
	ActionDelete     Action = "delete"
	ActionExecute    Action = "execute"
	ActionEncrypt    Action = "encrypt"
	ActionDecrypt    Action = "decrypt"
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionReboot     Action = "reboot"
	ActionInitialize Action = "initialize"
	ActionShutdown   Action = "shutdown"
)

// Result is the outcome of the recorded action.
type Result string

// Possible outcomes.
const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
	ResultError   Result = "error"
)

// Entry is one immutable record of a security-relevant action. Entries are
// serialized as single-line JSON to the current rotation file and are never
// mutated or deleted individually; retention removes whole files.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Event     Event             `json:"event"`
	Action    Action            `json:"action"`
	Result    Result            `json:"result"`
	Details   string            `json:"details"`
	User      string            `json:"user,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// newEntry constructs an Entry stamped with the current UTC instant.
func newEntry(event Event, action Action, details string, result Result) Entry {
	return Entry{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Action:    action,
		Result:    result,
		Details:   details,
	}
}
