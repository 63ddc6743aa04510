package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/model"
)

// buildControllerPoint translates one read's raw property values into a
// persistable ControllerPoint row, normalizing the health and optional
// property groups. errorInfo is set only on the present-value-only
// fallback path.
func buildControllerPoint(controller model.ControllerDescriptor, pd model.PointDescriptor, props bacnet.PropertyValues, errorInfo string) model.ControllerPoint {
	now := time.Now().UTC()

	return model.ControllerPoint{
		IoTDevicePointID:   pd.IoTDevicePointID,
		ControllerID:       controller.ControllerID,
		ObjectType:         pd.ObjectType.String(),
		ObjectInstance:     pd.ObjectInstance,
		ControllerIP:       controller.IP,
		ControllerPort:     defaultControllerPort,
		ControllerDeviceID: controller.DeviceInstance,

		PresentValue:       propString(props[bacnet.PropPresentValue]),
		Units:              propString(props[bacnet.PropUnits]),
		CreatedAt:          now,
		CreatedAtUnixMilli: now.UnixMilli(),
		IsUploaded:         false,
		UpdatedAt:          now,

		StatusFlags:  propString(props[bacnet.PropStatusFlags]),
		EventState:   propString(props[bacnet.PropEventState]),
		OutOfService: propBool(props[bacnet.PropOutOfService]),
		Reliability:  propString(props[bacnet.PropReliability]),
		ErrorInfo:    errorInfo,
		Description:  propString(props[bacnet.PropDescription]),
		ObjectName:   propString(props[bacnet.PropObjectName]),

		MinPresValue:      propFloatPtr(props[bacnet.PropMinPresValue]),
		MaxPresValue:      propFloatPtr(props[bacnet.PropMaxPresValue]),
		HighLimit:         propFloatPtr(props[bacnet.PropHighLimit]),
		LowLimit:          propFloatPtr(props[bacnet.PropLowLimit]),
		Resolution:        propFloatPtr(props[bacnet.PropResolution]),
		PriorityArray:     propJSON(props[bacnet.PropPriorityArray]),
		RelinquishDefault: propFloatPtr(props[bacnet.PropRelinquishDefault]),

		CovIncrement:      propFloatPtr(props[bacnet.PropCovIncrement]),
		TimeDelay:         propIntPtr(props[bacnet.PropTimeDelay]),
		TimeDelayNormal:   propIntPtr(props[bacnet.PropTimeDelayNormal]),
		NotificationClass: propIntPtr(props[bacnet.PropNotificationClass]),
		NotifyType:        propString(props[bacnet.PropNotifyType]),
		Deadband:          propFloatPtr(props[bacnet.PropDeadband]),
		LimitEnable:       propJSON(props[bacnet.PropLimitEnable]),

		EventEnable:             propJSON(props[bacnet.PropEventEnable]),
		AckedTransitions:        propJSON(props[bacnet.PropAckedTransitions]),
		EventTimeStamps:         propJSON(props[bacnet.PropEventTimeStamps]),
		EventMessageTexts:       propJSON(props[bacnet.PropEventMessageTexts]),
		EventMessageTextsConfig: propJSON(props[bacnet.PropEventMessageTextsConfig]),

		EventAlgorithmInhibit:        propBoolPtr(props[bacnet.PropEventAlgorithmInhibit]),
		EventAlgorithmInhibitRef:     propJSON(props[bacnet.PropEventAlgorithmInhibitRef]),
		ReliabilityEvaluationInhibit: propBoolPtr(props[bacnet.PropReliabilityEvaluationInhibit]),
	}
}

func propString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func propBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func propFloatPtr(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func propIntPtr(v any) *int {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	i := int(f)
	return &i
}

func propBoolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// propJSON re-encodes a structured property value (arrays, bitfield
// maps) as the JSON string model.ControllerPoint stores complex fields
// as.
func propJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
