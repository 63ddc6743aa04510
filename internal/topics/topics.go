// Package topics compiles the supervisor's MQTT topic strings from a
// declarative JSON schema: five-placeholder substitution and
// optional-identifier suppression rules, expressed as a Go embed.FS
// plus a small string replacer, with the compiled Schema exposing each
// topic as a struct field.
package topics

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed schema.json
var schemaFS embed.FS

// TopicConfig is one leaf of the declarative schema: a topic template
// plus its QoS and retain flag.
type TopicConfig struct {
	Topic  string `json:"topic"`
	QoS    byte   `json:"qos"`
	Retain bool   `json:"retain"`
}

// CommandEntry pairs a command's request/response topics.
type CommandEntry struct {
	Request  TopicConfig `json:"request"`
	Response TopicConfig `json:"response"`
}

// CommandSection holds the six supported commands.
type CommandSection struct {
	GetConfig       CommandEntry `json:"get_config"`
	ConfigUpload    CommandEntry `json:"config_upload"`
	Reboot          CommandEntry `json:"reboot"`
	SetValueToPoint CommandEntry `json:"set_value_to_point"`
	StartMonitoring CommandEntry `json:"start_monitoring"`
	StopMonitoring  CommandEntry `json:"stop_monitoring"`
}

// StatusSection holds the heartbeat topic.
type StatusSection struct {
	Heartbeat TopicConfig `json:"heartbeat"`
}

// DataSection holds the bulk and single-point data topics. Point is nil
// whenever controller_device_id or iot_device_point_id was not supplied
// at compile time (the design: "data.point: present only when both
// controller and point identifiers are supplied").
type DataSection struct {
	Point     *TopicConfig `json:"point,omitempty"`
	PointBulk TopicConfig  `json:"point_bulk"`
}

// AlertManagementSection holds the two alert-lifecycle topics.
type AlertManagementSection struct {
	Acknowledge TopicConfig `json:"acknowledge"`
	Resolve     TopicConfig `json:"resolve"`
}

// Schema is the fully-compiled topic set for one device identity.
type Schema struct {
	Command         CommandSection         `json:"command"`
	Status          StatusSection          `json:"status"`
	Data            DataSection            `json:"data"`
	AlertManagement AlertManagementSection `json:"alert_management"`
}

// Identifiers are the placeholder values substituted into the raw
// schema template. OrganizationID, SiteID, and IoTDeviceID are
// required; ControllerDeviceID and IoTDevicePointID are optional and,
// when absent, suppress data.point.
type Identifiers struct {
	OrganizationID     string
	SiteID             string
	IoTDeviceID        string
	ControllerDeviceID string
	IoTDevicePointID   string
}

// rawTemplate is the unsubstituted schema document, loaded once.
var rawTemplate []byte

func init() {
	data, err := schemaFS.ReadFile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("topics: embedded schema.json missing: %v", err))
	}
	rawTemplate = data
}

// Compile builds the full set of topic strings for one device identity.
// Missing required identifiers are a hard error; optional
// ones merely suppress the derived data.point topic.
func Compile(ids Identifiers) (*Schema, error) {
	if ids.OrganizationID == "" || ids.SiteID == "" || ids.IoTDeviceID == "" {
		return nil, fmt.Errorf("topics: organization_id, site_id, and iot_device_id are all required to compile the topic schema")
	}

	values := map[string]string{
		"organization_id": ids.OrganizationID,
		"site_id":         ids.SiteID,
		"iot_device_id":   ids.IoTDeviceID,
	}
	havePointIdentifiers := ids.ControllerDeviceID != "" && ids.IoTDevicePointID != ""
	if ids.ControllerDeviceID != "" {
		values["controller_device_id"] = ids.ControllerDeviceID
	}
	if ids.IoTDevicePointID != "" {
		values["iot_device_point_id"] = ids.IoTDevicePointID
	}

	substituted := substitutePlaceholders(string(rawTemplate), values)

	var schema Schema
	if err := json.Unmarshal([]byte(substituted), &schema); err != nil {
		return nil, fmt.Errorf("topics: parsing compiled schema: %w", err)
	}

	if !havePointIdentifiers {
		schema.Data.Point = nil
	}

	return &schema, nil
}

// substitutePlaceholders replaces every "{key}" present in values;
// placeholders with no corresponding value are left untouched, matching
// the Python loader's Default-dict __missing__ behavior.
func substitutePlaceholders(template string, values map[string]string) string {
	var pairs []string
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
