// Package delivery owns the outbound message queue: enqueueing typed
// payloads, the periodic worker that drains them through a channel
// instance, and retry/dead-letter bookkeeping.
package delivery

import (
	"encoding/json"
	"fmt"

	"github.com/homelead/distributor/internal/models"
)

// TextPayload is a plain text message.
type TextPayload struct {
	Text string `json:"text"`
}

// MediaPayload is an image or document message.
type MediaPayload struct {
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Button is one quick-reply option.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ButtonsPayload is a text message with quick-reply buttons.
type ButtonsPayload struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons"`
}

// ListRow is one selectable row in a list message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ListPayload is a sectioned selection list message.
type ListPayload struct {
	Text     string        `json:"text"`
	Sections []ListSection `json:"sections"`
}

// payloadKind maps a payload value to its message type.
func payloadKind(payload interface{}) (string, error) {
	switch payload.(type) {
	case TextPayload, *TextPayload:
		return models.PayloadText, nil
	case MediaPayload, *MediaPayload:
		return models.PayloadMedia, nil
	case ButtonsPayload, *ButtonsPayload:
		return models.PayloadButtons, nil
	case ListPayload, *ListPayload:
		return models.PayloadList, nil
	default:
		return "", fmt.Errorf("delivery: unsupported payload type %T", payload)
	}
}

// NewMessage builds an unsaved DeliveryMessage for the given typed payload.
func NewMessage(address string, payload interface{}) (*models.DeliveryMessage, error) {
	if address == "" {
		return nil, fmt.Errorf("delivery: target address is required")
	}
	kind, err := payloadKind(payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("delivery: encode payload: %w", err)
	}
	return &models.DeliveryMessage{
		TargetAddress: address,
		PayloadType:   kind,
		Payload:       string(data),
		Status:        models.DeliveryPending,
	}, nil
}
