package service

// Event kinds carried in the "event" field of the input object.
const (
	EventRegister   = "ApplePushService"
	EventMessageNew = "MessageNew"
)

// Event is one decoded input object plus the id assigned to this invocation.
type Event struct {
	ID     string
	Fields map[string]any
}

// String returns the named field if it is present and a JSON string.
func (e Event) String(name string) (string, bool) {
	v, ok := e.Fields[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
