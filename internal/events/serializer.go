// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Metadata keys set on every message.
const (
	MetadataUserID = "user_id"
	MetadataSource = "source"
)

// Marshal validates and encodes an event.
func Marshal(event *InteractionRecorded) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates an event.
func Unmarshal(data []byte) (*InteractionRecorded, error) {
	var event InteractionRecorded
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// ToMessage encodes event as a Watermill message whose UUID is the event ID.
func ToMessage(event *InteractionRecorded) (*message.Message, error) {
	data, err := Marshal(event)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set(MetadataUserID, event.UserID)
	if event.Source != "" {
		msg.Metadata.Set(MetadataSource, event.Source)
	}
	return msg, nil
}

// FromMessage decodes the event carried by msg.
func FromMessage(msg *message.Message) (*InteractionRecorded, error) {
	return Unmarshal(msg.Payload)
}
