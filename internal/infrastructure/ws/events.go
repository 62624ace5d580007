package ws

// ConnectedEvent greets a session once it is registered. Every other event
// name is chosen by the caller of SendToUser. Clients never send application
// frames; anything they do send is read and discarded.
const ConnectedEvent = "connected"

// Message is the frame written to a client: a named event and its data.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

func NewMessage(event string, data any) *Message {
	return &Message{
		Event: event,
		Data:  data,
	}
}

func NewConnected(connID, userID string) *Message {
	return &Message{
		Event: ConnectedEvent,
		Data: ConnectedPayload{
			ConnectionID: connID,
			UserID:       userID,
		},
	}
}
