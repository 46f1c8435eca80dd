// Package events implements the event bus (C4): a Kafka producer/consumer
// carrying the lifecycle event catalogue between the API and worker roles.
package events

import "time"

// EventType selects the handler a message is dispatched to.
type EventType string

const (
	EventOperationRefresh   EventType = "operation.refresh"
	EventCacheInvalidate    EventType = "cache.invalidate"
	EventCertificateParse   EventType = "certificate.parse"
	EventFolderDelete       EventType = "folder.delete"
	EventFileOrFolderDelete EventType = "file_or_folder.delete"
	EventCertificateExport  EventType = "certificate.export"
)

// eventTypeHeaderKey is the Kafka message header carrying the EventType,
// mirroring the original producer's EVENT_TYPE_HEADER_KEY convention.
const eventTypeHeaderKey = "event_type"

// RefreshPayload is the body of an operation.refresh event.
type RefreshPayload struct {
	Store     string    `json:"store"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"_timestamp"`
}

// CacheInvalidatePayload is the body of a cache.invalidate event.
type CacheInvalidatePayload struct {
	Stores    []string  `json:"stores"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"_timestamp"`
}

// CertificateParsePayload is the body of a certificate.parse event.
type CertificateParsePayload struct {
	CertificateID string    `json:"certificate_id"`
	Timestamp     time.Time `json:"_timestamp"`
}

// FolderDeletePayload is the body of a folder.delete event.
type FolderDeletePayload struct {
	Store      string    `json:"store"`
	FolderName string    `json:"folder_name"`
	Timestamp  time.Time `json:"_timestamp"`
}

// FileOrFolderDeletePayload is the body of a file_or_folder.delete event.
type FileOrFolderDeletePayload struct {
	Store     string    `json:"store"`
	Path      string    `json:"path"`
	ItemType  string    `json:"item_type"`
	Timestamp time.Time `json:"_timestamp"`
}

// CertificateExportPayload is the body of a certificate.export event.
type CertificateExportPayload struct {
	CertificateID string    `json:"certificate_id"`
	Timestamp     time.Time `json:"_timestamp"`
}

// TriggerEvent is a distinguished trigger value. The refresh handler
// re-emits cache.invalidate only when its own trigger is not "event".
const TriggerEvent = "event"

// timestamped is implemented by every payload type so Publish can inject
// the wire _timestamp centrally at send time. stamped returns a copy
// with the field filled only when the caller left it zero; a caller that
// set its own timestamp keeps it.
type timestamped interface {
	stamped(now time.Time) interface{}
}

func (p RefreshPayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p CacheInvalidatePayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p CertificateParsePayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p FolderDeletePayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p FileOrFolderDeletePayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

func (p CertificateExportPayload) stamped(now time.Time) interface{} {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}
