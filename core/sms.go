package core

type (
	SMSMessage struct {
		To   string // E.164
		Body string
	}

	// SMSService is any service that can send text messages
	SMSService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*SMSMessage)
	}
)

func (m *SMSMessage) IsValid() bool { return m.To != "" && m.Body != "" }
