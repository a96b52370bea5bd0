// Package pending keeps recorded takes that have not been confirmed by the
// catalog yet. Every take is written to durable storage before any network
// call, and survives restarts until it is delivered or discarded.
package pending

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("pending upload not found")
	ErrRetriesExhausted = errors.New("upload retries exhausted")
	ErrInFlight         = errors.New("upload already in flight")
	ErrEmptyPayload     = errors.New("upload has no audio data")
)

type Status string

const (
	StatusUploading Status = "uploading"
	StatusFailed    Status = "failed"
)

// Upload is one take waiting for confirmation. Field names match the JSON
// records written by earlier versions of the queue.
type Upload struct {
	TempID      string `json:"tempId"`
	Title       string `json:"title"`
	SongID      string `json:"songId"`
	SongColumn  string `json:"songColumn"`
	UploaderID  string `json:"uploaderId"`
	NextAudioID int64  `json:"nextAudioId"`
	MimeType    string `json:"mimeType"`
	Base64Data  string `json:"base64Data"`
	Status      Status `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	RetryCount  int    `json:"retryCount"`

	// ObjectPath and Uploaded let a retry skip re-uploading the object.
	ObjectPath  string `json:"objectPath,omitempty"`
	Uploaded    bool   `json:"uploaded,omitempty"`
	Error       string `json:"error,omitempty"`
	LastAttempt int64  `json:"lastAttempt,omitempty"`
}

// Payload decodes the stored audio bytes.
func (u *Upload) Payload() ([]byte, error) {
	if u.Base64Data == "" {
		return nil, ErrEmptyPayload
	}

	data, err := base64.StdEncoding.DecodeString(u.Base64Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", u.TempID, err)
	}

	return data, nil
}

func (u *Upload) Failed() bool {
	return u.Status == StatusFailed
}

// Created returns CreatedAt as a time.
func (u *Upload) Created() time.Time {
	return time.UnixMilli(u.CreatedAt)
}

// Draft is what the recorder hands over when a take is saved.
type Draft struct {
	Title      string
	SongID     string
	UploaderID string
	MimeType   string
	Data       []byte
}

// NewTempID returns "pending-<unix ms>-<uuid>".
func NewTempID(now time.Time) string {
	return "pending-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()
}

func newUpload(d Draft, now time.Time) Upload {
	return Upload{
		TempID:      NewTempID(now),
		Title:       d.Title,
		SongID:      d.SongID,
		SongColumn:  "",
		UploaderID:  d.UploaderID,
		NextAudioID: 0,
		MimeType:    d.MimeType,
		Base64Data:  base64.StdEncoding.EncodeToString(d.Data),
		Status:      StatusUploading,
		CreatedAt:   now.UnixMilli(),
		RetryCount:  0,
		ObjectPath:  "",
		Uploaded:    false,
		Error:       "",
		LastAttempt: 0,
	}
}
