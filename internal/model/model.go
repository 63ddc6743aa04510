// Package model holds the shared data types that flow between the
// supervisor's components: point descriptors, controller descriptors,
// persisted point readings, the device status snapshot, and the actor
// message envelope.
package model

import (
	"crypto/sha1" //nolint:gosec // UUIDv5 requires SHA-1 per RFC 4122, not used for security
	"time"

	"github.com/google/uuid"

	"github.com/openbms-io/supervisor/internal/bacnet"
)

// pointIDNamespace is a fixed namespace UUID for deriving
// iot_device_point_id values. Any stable, agent-wide constant works here;
// it only needs to be consistent across restarts (the design invariant:
// "iot_device_point_id is a pure function of (controller_id, point_id)").
var pointIDNamespace = uuid.MustParse("6f1cb536-64de-4d37-9f5a-0b1f6a8e9c12")

// DerivePointID computes the deterministic iot_device_point_id for a
// (controller_id, point_id) pair, as a UUIDv5 over
// "{controller_id}-{point_id}".
func DerivePointID(controllerID, pointID string) string {
	name := controllerID + "-" + pointID
	return uuid.NewSHA1(pointIDNamespace, []byte(name)).String()
}

// PointDescriptor is one monitored point within a ControllerDescriptor
//.
type PointDescriptor struct {
	IoTDevicePointID     string
	PointID              string
	ObjectType           bacnet.ObjectType
	ObjectInstance       uint32
	AvailableProperties  map[bacnet.PropertyName]any
}

// ControllerDescriptor is fetched from the latest persisted configuration
// snapshot.
type ControllerDescriptor struct {
	ControllerID   string
	IP             string
	DeviceInstance uint32
	Points         []PointDescriptor
}

// The blank reference to sha1.Sum exists only to document why UUIDv5 construction is safe to use
// here: it is a content-derivation function, not a cryptographic
// protection, so SHA-1's collision weaknesses are irrelevant to this use.
var _ = sha1.Sum

// MonitoringStatus is the Monitor actor's state machine value, mirrored
// into DeviceStatus (the design, §4.2).
type MonitoringStatus string

const (
	MonitoringInitializing MonitoringStatus = "INITIALIZING"
	MonitoringActive       MonitoringStatus = "ACTIVE"
	MonitoringStopped      MonitoringStatus = "STOPPED"
	MonitoringError        MonitoringStatus = "ERROR"
)

// ConnectionStatus describes MQTT/BACnet link health.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "CONNECTED"
	ConnectionDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionError        ConnectionStatus = "ERROR"
)

// ControllerPoint is one persisted point reading row (the design "Point
// reading"). JSON-valued optional properties are stored pre-serialized
// as strings (matching the point store's TEXT columns); internal/uploader
// re-parses them into structured values when it builds the upload
// payload.
type ControllerPoint struct {
	ID uint64 `json:"-"` // zero until persisted; see pointstore.BulkInsert

	// Identity
	IoTDevicePointID   string `json:"iot_device_point_id"`
	ControllerID       string `json:"controller_id"`
	ObjectType         string `json:"object_type"`
	ObjectInstance     uint32 `json:"object_instance"`
	ControllerIP       string `json:"controller_ip"`
	ControllerPort     int    `json:"controller_port"`
	ControllerDeviceID uint32 `json:"controller_device_id"`

	// Value
	PresentValue      string `json:"present_value"`
	Units             string `json:"units"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedAtUnixMilli int64    `json:"created_at_unix_milli_timestamp"`

	// Upload state
	IsUploaded bool      `json:"is_uploaded"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Health
	StatusFlags  string `json:"status_flags"` // semicolon-joined
	EventState   string `json:"event_state"`
	OutOfService bool   `json:"out_of_service"`
	Reliability  string `json:"reliability"`
	ErrorInfo    string `json:"error_info,omitempty"` // opaque JSON, empty if none

	// Optional properties (~23), complex ones JSON-encoded strings.
	MinPresValue                 *float64 `json:"min_pres_value,omitempty"`
	MaxPresValue                 *float64 `json:"max_pres_value,omitempty"`
	HighLimit                    *float64 `json:"high_limit,omitempty"`
	LowLimit                     *float64 `json:"low_limit,omitempty"`
	Resolution                   *float64 `json:"resolution,omitempty"`
	PriorityArray                string   `json:"priority_array,omitempty"` // JSON
	RelinquishDefault             *float64 `json:"relinquish_default,omitempty"`
	CovIncrement                  *float64 `json:"cov_increment,omitempty"`
	TimeDelay                     *int     `json:"time_delay,omitempty"`
	TimeDelayNormal               *int     `json:"time_delay_normal,omitempty"`
	NotificationClass             *int     `json:"notification_class,omitempty"`
	NotifyType                    string   `json:"notify_type,omitempty"`
	Deadband                      *float64 `json:"deadband,omitempty"`
	LimitEnable                   string   `json:"limit_enable,omitempty"` // JSON
	EventEnable                   string   `json:"event_enable,omitempty"` // JSON
	AckedTransitions              string   `json:"acked_transitions,omitempty"` // JSON
	EventTimeStamps               string   `json:"event_time_stamps,omitempty"` // JSON
	EventMessageTexts             string   `json:"event_message_texts,omitempty"` // JSON
	EventMessageTextsConfig       string   `json:"event_message_texts_config,omitempty"` // JSON
	EventAlgorithmInhibit         *bool    `json:"event_algorithm_inhibit,omitempty"`
	EventAlgorithmInhibitRef      string   `json:"event_algorithm_inhibit_ref,omitempty"` // JSON
	ReliabilityEvaluationInhibit  *bool    `json:"reliability_evaluation_inhibit,omitempty"`
	Description                   string   `json:"description,omitempty"`
	ObjectName                    string   `json:"object_name,omitempty"`
}

// ObjectKey returns the "{object_type}:{object_instance}" composite key
// used both for BACnet read_multiple_points responses and for matching a
// ControllerPoint back to its PointDescriptor.
func (c ControllerPoint) ObjectKey() string {
	t, _ := bacnet.ParseObjectType(c.ObjectType)
	return bacnet.ObjectKey(t, c.ObjectInstance)
}

// DeviceStatus is the single logical row per IoT device (the design
// "Device status snapshot").
type DeviceStatus struct {
	CPUPercent    *float64
	MemoryPercent *float64
	DiskPercent   *float64
	Temperature   *float64
	UptimeSeconds *int64
	LoadAverage   *float64

	MonitoringStatus       MonitoringStatus
	MQTTConnectionStatus   ConnectionStatus
	BACnetConnectionStatus ConnectionStatus

	ConnectedDeviceCount int
	MonitoredPointCount  int

	UpdatedAt time.Time
}
