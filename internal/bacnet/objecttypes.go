// Package bacnet models the BACnet/IP object-type and property vocabulary,
// and owns the reader pool that multiplexes read/write operations across a
// set of local protocol endpoints. The wire protocol itself is treated as
// an external library (see Client) — this package only defines the
// canonical vocabulary the rest of the supervisor speaks in, and the
// pooling/load-balancing logic layered on top of it.
package bacnet

import "fmt"

// ObjectType is the canonical, agent-side BACnet object type enumeration.
// The underlying protocol library may use its own vocabulary (e.g. the
// hyphenated "analog-value"); Wrapper is responsible for translating
// between the two — nothing outside this package should see library-native
// object type strings.
type ObjectType uint32

// BACnet standard object types, numbered per the ASHRAE 135 object type
// enumeration. The first 25 standard object types are named here;
// ParseObjectType resolves only these names, and any other object-type
// number has no canonical name (String renders it as "objectType(N)").
const (
	ObjectAnalogInput ObjectType = iota
	ObjectAnalogOutput
	ObjectAnalogValue
	ObjectBinaryInput
	ObjectBinaryOutput
	ObjectBinaryValue
	ObjectCalendar
	ObjectCommand
	ObjectDevice
	ObjectEventEnrollment
	ObjectFile
	ObjectGroup
	ObjectLoop
	ObjectMultiStateInput
	ObjectMultiStateOutput
	ObjectNotificationClass
	ObjectProgram
	ObjectSchedule
	ObjectAveraging
	ObjectMultiStateValue
	ObjectTrendLog
	ObjectLifeSafetyPoint
	ObjectLifeSafetyZone
	ObjectAccumulator
	ObjectPulseConverter
)

// objectTypeNames maps the canonical enum to its agent-side string form —
// camelCase, matching the vocabulary the cloud platform expects in
// ControllerPoint.ObjectType and in MQTT bulk-point payloads.
var objectTypeNames = map[ObjectType]string{
	ObjectAnalogInput:       "analogInput",
	ObjectAnalogOutput:      "analogOutput",
	ObjectAnalogValue:       "analogValue",
	ObjectBinaryInput:       "binaryInput",
	ObjectBinaryOutput:      "binaryOutput",
	ObjectBinaryValue:       "binaryValue",
	ObjectCalendar:          "calendar",
	ObjectCommand:           "command",
	ObjectDevice:            "device",
	ObjectEventEnrollment:   "eventEnrollment",
	ObjectFile:              "file",
	ObjectGroup:             "group",
	ObjectLoop:              "loop",
	ObjectMultiStateInput:   "multiStateInput",
	ObjectMultiStateOutput:  "multiStateOutput",
	ObjectNotificationClass: "notificationClass",
	ObjectProgram:           "program",
	ObjectSchedule:          "schedule",
	ObjectAveraging:         "averaging",
	ObjectMultiStateValue:   "multiStateValue",
	ObjectTrendLog:          "trendLog",
	ObjectLifeSafetyPoint:   "lifeSafetyPoint",
	ObjectLifeSafetyZone:    "lifeSafetyZone",
	ObjectAccumulator:       "accumulator",
	ObjectPulseConverter:    "pulseConverter",
}

// libraryObjectTypeNames maps the canonical enum to the hyphenated form
// the underlying BACnet library is assumed to use in its own requests and
// responses (e.g. "analog-value"). Wrapper.ReadMultiplePoints maps
// library-native reply keys back to canonical keys; requests carry
// ObjectRef values holding the enum, so they need no string translation.
var libraryObjectTypeNames = map[ObjectType]string{
	ObjectAnalogInput:       "analog-input",
	ObjectAnalogOutput:      "analog-output",
	ObjectAnalogValue:       "analog-value",
	ObjectBinaryInput:       "binary-input",
	ObjectBinaryOutput:      "binary-output",
	ObjectBinaryValue:       "binary-value",
	ObjectCalendar:          "calendar",
	ObjectCommand:           "command",
	ObjectDevice:            "device",
	ObjectEventEnrollment:   "event-enrollment",
	ObjectFile:              "file",
	ObjectGroup:             "group",
	ObjectLoop:              "loop",
	ObjectMultiStateInput:   "multi-state-input",
	ObjectMultiStateOutput:  "multi-state-output",
	ObjectNotificationClass: "notification-class",
	ObjectProgram:           "program",
	ObjectSchedule:          "schedule",
	ObjectAveraging:         "averaging",
	ObjectMultiStateValue:   "multi-state-value",
	ObjectTrendLog:          "trend-log",
	ObjectLifeSafetyPoint:   "life-safety-point",
	ObjectLifeSafetyZone:    "life-safety-zone",
	ObjectAccumulator:       "accumulator",
	ObjectPulseConverter:    "pulse-converter",
}

var nameToObjectType = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(objectTypeNames))
	for k, v := range objectTypeNames {
		m[v] = k
	}
	return m
}()

var libraryNameToObjectType = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(libraryObjectTypeNames))
	for k, v := range libraryObjectTypeNames {
		m[v] = k
	}
	return m
}()

// String returns the canonical agent-side name, e.g. "analogValue".
func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("objectType(%d)", uint32(t))
}

// LibraryName returns the hyphenated form the underlying BACnet library
// is expected to use, e.g. "analog-value".
func (t ObjectType) LibraryName() string {
	if name, ok := libraryObjectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("object-type-%d", uint32(t))
}

// ParseObjectType resolves an agent-side canonical name back to its enum.
func ParseObjectType(name string) (ObjectType, bool) {
	t, ok := nameToObjectType[name]
	return t, ok
}

// ParseLibraryObjectType resolves a library-native hyphenated name (as
// returned by the underlying BACnet library in a read_multiple_points
// response key) back to the canonical enum.
func ParseLibraryObjectType(name string) (ObjectType, bool) {
	t, ok := libraryNameToObjectType[name]
	return t, ok
}

// ObjectKey formats the "{object_type}:{object_id}" key used both in
// read_multiple_points responses and in point-store identity columns.
func ObjectKey(t ObjectType, instance uint32) string {
	return fmt.Sprintf("%s:%d", t, instance)
}
