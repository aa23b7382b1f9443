// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/nook-im/nook/lib/ref"
)

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// MessageContent is the content body of an m.room.message event.
// Text messages carry only MsgType and Body; audio messages add the
// uploaded content URL and its FileInfo.
type MessageContent struct {
	MsgType string    `json:"msgtype"`
	Body    string    `json:"body"`
	URL     string    `json:"url,omitempty"`
	Info    *FileInfo `json:"info,omitempty"`
}

// FileInfo describes an uploaded attachment.
type FileInfo struct {
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewAudioMessage creates an audio message referencing uploaded
// content. body is the fallback text shown by clients that cannot
// play audio.
func NewAudioMessage(body, contentURI string, size int64, mimeType string) MessageContent {
	return MessageContent{
		MsgType: "m.audio",
		Body:    body,
		URL:     contentURI,
		Info: &FileInfo{
			Size:     size,
			MimeType: mimeType,
		},
	}
}

// Event is a Matrix event from the server.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitempty"`
}

// Body returns the event content's "body" field, or "" when absent.
func (e Event) Body() string {
	body, _ := e.Content["body"].(string)
	return body
}

// SyncOptions controls the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch from the previous sync; empty for initial
	Timeout    int    // long-poll hold in milliseconds; 0 returns immediately
	SetTimeout bool   // send the timeout parameter ("not set" differs from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level /sync response.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups per-room sync data by membership state. Keys
// are validated room IDs via ref.RoomID's TextUnmarshaler.
type RoomsSection struct {
	Join map[ref.RoomID]JoinedRoom `json:"join,omitempty"`
}

// JoinedRoom is sync data for a joined room.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection holds the timeline events from one sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// SendEventResponse is returned by SendMessage.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// UploadResponse is returned by UploadMedia.
type UploadResponse struct {
	ContentURI string `json:"content_uri"`
}

// ProfileResponse is a user's display metadata from the /profile
// endpoint. Both fields are optional server-side.
type ProfileResponse struct {
	AvatarURL   string `json:"avatar_url,omitempty"`
	DisplayName string `json:"displayname,omitempty"`
}
