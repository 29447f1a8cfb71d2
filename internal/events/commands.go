package events

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// FieldWriter writes a field from its text form. driver.Registry
// implements it.
type FieldWriter interface {
	WriteField(moniker, name, text string) (field.Result, error)
}

// TopicParser extracts the target of a write command from its topic.
type TopicParser func(topic string) (moniker, name string, ok bool)

// CommandHandler applies field writes that arrive on the message bus.
// Its Handle method has the mqtt.MessageHandler signature.
type CommandHandler struct {
	writer FieldWriter
	parse  TopicParser
	logger Logger
}

// NewCommandHandler creates a handler writing through w.
func NewCommandHandler(w FieldWriter, parse TopicParser) *CommandHandler {
	return &CommandHandler{writer: w, parse: parse, logger: noopLogger{}}
}

// SetLogger sets the logger for the handler.
func (h *CommandHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Handle writes the payload text to the field named by topic. Surrounding
// whitespace in the payload is ignored.
func (h *CommandHandler) Handle(topic string, payload []byte) error {
	moniker, name, ok := h.parse(topic)
	if !ok {
		return fmt.Errorf("not a field write topic: %q", topic)
	}
	text := strings.TrimSpace(string(payload))

	res, err := h.writer.WriteField(moniker, name, text)
	if err != nil {
		return fmt.Errorf("writing %s.%s: %w", moniker, name, err)
	}
	h.logger.Debug("field written from bus", "moniker", moniker, "field", name, "text", text, "result", res.String())
	return nil
}
