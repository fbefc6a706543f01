package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mpalumbo7/receipt-parser/internal/common"
)

// Message is one inbound parse job. Container and Blob locate the source
// image in the object store.
type Message struct {
	ReceiptID string `json:"receiptId"`
	Container string `json:"container"`
	Blob      string `json:"blob"`
}

// DecodeMessage parses and validates a queued delivery. A malformed message
// is fatal for that delivery; the queue's own poison handling takes over.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, common.NewAppError("MALFORMED_MESSAGE",
			fmt.Sprintf("unparsable message body: %v", err), common.ErrInvalidInput)
	}
	if _, err := uuid.Parse(msg.ReceiptID); err != nil {
		return Message{}, common.NewAppError("MALFORMED_MESSAGE",
			fmt.Sprintf("receiptId %q is not a valid uuid", msg.ReceiptID), common.ErrInvalidInput)
	}
	if msg.Container == "" || msg.Blob == "" {
		return Message{}, common.NewAppError("MALFORMED_MESSAGE",
			"message is missing container or blob", common.ErrInvalidInput)
	}
	return msg, nil
}
