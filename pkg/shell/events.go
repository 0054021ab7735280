package shell

// EventType names a session event.
type EventType string

const (
	EventConnect           EventType = "connect"
	EventReady             EventType = "ready"
	EventData              EventType = "data"
	EventPipe              EventType = "pipe"
	EventUnpipe            EventType = "unpipe"
	EventCommandProcessing EventType = "commandProcessing"
	EventCommandComplete   EventType = "commandComplete"
	EventCommandTimeout    EventType = "commandTimeout"
	EventMsg               EventType = "msg"
	EventError             EventType = "error"
	EventEnd               EventType = "end"
	EventClose             EventType = "close"
)

// Event is delivered to handlers. Only the fields relevant to Type are set.
type Event struct {
	Type EventType
	Host string // user@host the event came from

	Data     []byte // data, commandProcessing
	Command  string // commandProcessing, commandComplete, commandTimeout
	Response string // buffered output, banner for ready, transcript for end
	Message  string
	Err      error
}

// Handler receives session events. Handlers run on the session goroutine and
// must not block for long; they may call Pipe, Unpipe and On.
type Handler func(Event)

// emit delivers e to the handlers registered for its type, in order.
func (s *Session) emit(e Event) {
	s.mu.Lock()
	hs := make([]Handler, len(s.handlers[e.Type]))
	copy(hs, s.handlers[e.Type])
	s.mu.Unlock()

	for _, h := range hs {
		h(e)
	}
}
