package bacnet

// PropertyName is the canonical agent-side name for a BACnet property, as
// it appears in a PointDescriptor's AvailableProperties map and in a
// ControllerPoint row. Names are camelCase to match the cloud platform's
// wire vocabulary, mirroring the PropertyNames table in the reference
// BACnet library vocabulary (object/property identifiers per ASHRAE 135).
type PropertyName string

// Always-requested property.
const (
	PropPresentValue PropertyName = "presentValue"
)

// Health/status properties. Requested whenever present and non-null in
// the point descriptor; surfaced on every ControllerPoint row.
const (
	PropStatusFlags    PropertyName = "statusFlags"
	PropEventState     PropertyName = "eventState"
	PropOutOfService   PropertyName = "outOfService"
	PropReliability    PropertyName = "reliability"
	PropUnits          PropertyName = "units"
	PropDescription    PropertyName = "description"
	PropObjectName     PropertyName = "objectName"
)

// Optional/config properties (~23 per spec §3). These are requested only
// when the point descriptor's AvailableProperties map already carries a
// non-null value for them — absence is itself meaningful (the point's
// object type doesn't support the property).
const (
	PropMinPresValue             PropertyName = "minPresValue"
	PropMaxPresValue             PropertyName = "maxPresValue"
	PropHighLimit                PropertyName = "highLimit"
	PropLowLimit                 PropertyName = "lowLimit"
	PropResolution                PropertyName = "resolution"
	PropPriorityArray            PropertyName = "priorityArray"
	PropRelinquishDefault        PropertyName = "relinquishDefault"
	PropCovIncrement             PropertyName = "covIncrement"
	PropTimeDelay                PropertyName = "timeDelay"
	PropTimeDelayNormal          PropertyName = "timeDelayNormal"
	PropNotificationClass        PropertyName = "notificationClass"
	PropNotifyType               PropertyName = "notifyType"
	PropDeadband                 PropertyName = "deadband"
	PropLimitEnable              PropertyName = "limitEnable"
	PropEventEnable              PropertyName = "eventEnable"
	PropAckedTransitions         PropertyName = "ackedTransitions"
	PropEventTimeStamps          PropertyName = "eventTimeStamps"
	PropEventMessageTexts        PropertyName = "eventMessageTexts"
	PropEventMessageTextsConfig  PropertyName = "eventMessageTextsConfig"
	PropEventAlgorithmInhibit    PropertyName = "eventAlgorithmInhibit"
	PropEventAlgorithmInhibitRef PropertyName = "eventAlgorithmInhibitRef"
	PropReliabilityEvaluationInhibit PropertyName = "reliabilityEvaluationInhibit"
)

// OptionalProperties lists every property eligible for inclusion once
// present and non-null in a point descriptor — the ~27 health/config
// properties named in the design (health group plus optional group).
// AvailableDeviceProperties consults this list; order does not matter for
// correctness but is kept stable to make read requests deterministic and
// diffable in logs.
var OptionalProperties = []PropertyName{
	PropStatusFlags,
	PropEventState,
	PropOutOfService,
	PropReliability,
	PropUnits,
	PropDescription,
	PropObjectName,
	PropMinPresValue,
	PropMaxPresValue,
	PropHighLimit,
	PropLowLimit,
	PropResolution,
	PropPriorityArray,
	PropRelinquishDefault,
	PropCovIncrement,
	PropTimeDelay,
	PropTimeDelayNormal,
	PropNotificationClass,
	PropNotifyType,
	PropDeadband,
	PropLimitEnable,
	PropEventEnable,
	PropAckedTransitions,
	PropEventTimeStamps,
	PropEventMessageTexts,
	PropEventMessageTextsConfig,
	PropEventAlgorithmInhibit,
	PropEventAlgorithmInhibitRef,
	PropReliabilityEvaluationInhibit,
}

// JSONProperties lists the properties whose values are stored (and
// uploaded) as JSON-encoded strings rather than native scalar columns,
// — these hold structured BACnet values (arrays,
// bitfields, timestamp lists) that don't fit a primitive column.
var JSONProperties = map[PropertyName]bool{
	PropPriorityArray:           true,
	PropLimitEnable:             true,
	PropEventEnable:             true,
	PropAckedTransitions:        true,
	PropEventTimeStamps:         true,
	PropEventMessageTexts:       true,
	PropEventMessageTextsConfig: true,
	PropEventAlgorithmInhibitRef: true,
}

// AvailableDeviceProperties computes which properties to request for one
// object, given the point descriptor's last-known "available properties"
// map (name -> last value, possibly nil). presentValue is always
// included. Any optional property present in the map with a non-nil
// value is added. If the result is just presentValue alone, the caller
// should log a warning (the design step 3) — signalled here via the
// onlyPresentValue return so Monitor doesn't need to recompute it.
func AvailableDeviceProperties(available map[PropertyName]any) (props []PropertyName, onlyPresentValue bool) {
	props = make([]PropertyName, 0, len(OptionalProperties)+1)
	props = append(props, PropPresentValue)

	for _, name := range OptionalProperties {
		v, ok := available[name]
		if ok && v != nil {
			props = append(props, name)
		}
	}

	return props, len(props) == 1
}
