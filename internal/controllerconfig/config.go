// Package controllerconfig decodes the persisted bacnet_config JSON
// document into the model.ControllerDescriptor list both
// the Monitor and Writer actors iterate over, so the two actors share
// one parsing of "the latest configuration" rather than each carrying
// its own copy.
package controllerconfig

import (
	"encoding/json"
	"fmt"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/model"
)

// document is the JSON shape persisted in the bacnet_config table: a
// list of devices, each carrying its BACnet/IP endpoint and a list of
// point objects. Field names are snake_case to match the rest of the
// agent's persisted-document conventions (internal/topics,
// internal/model.ControllerPoint).
type document struct {
	Devices []device `json:"devices"`
}

type device struct {
	ControllerID       string   `json:"controller_id"`
	ControllerIP       string   `json:"controller_ip_address"`
	ControllerDeviceID uint32   `json:"controller_device_id"`
	ObjectList         []object `json:"object_list"`
}

type object struct {
	Type             string         `json:"type"`
	PointID          uint32         `json:"point_id"`
	IoTDevicePointID string         `json:"iot_device_point_id"`
	Properties       map[string]any `json:"properties"`
}

// Parse decodes a persisted bacnet_config document into the
// ControllerDescriptor list monitor_all_devices and the Writer both
// iterate over (the design step 1, §4.3). An empty or "{}" document
// (pointstore.DB's zero-value default) decodes to an empty slice, not
// an error.
func Parse(raw []byte) ([]model.ControllerDescriptor, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("controllerconfig: parsing bacnet config: %w", err)
	}

	descriptors := make([]model.ControllerDescriptor, 0, len(doc.Devices))
	for _, d := range doc.Devices {
		points := make([]model.PointDescriptor, 0, len(d.ObjectList))
		for _, o := range d.ObjectList {
			objType, ok := bacnet.ParseObjectType(o.Type)
			if !ok {
				continue
			}
			pointID := fmt.Sprintf("%d", o.PointID)
			iotDevicePointID := o.IoTDevicePointID
			if iotDevicePointID == "" {
				iotDevicePointID = model.DerivePointID(d.ControllerID, pointID)
			}
			points = append(points, model.PointDescriptor{
				IoTDevicePointID:    iotDevicePointID,
				PointID:             pointID,
				ObjectType:          objType,
				ObjectInstance:      o.PointID,
				AvailableProperties: parseAvailableProperties(o.Properties),
			})
		}
		descriptors = append(descriptors, model.ControllerDescriptor{
			ControllerID:   d.ControllerID,
			IP:             d.ControllerIP,
			DeviceInstance: d.ControllerDeviceID,
			Points:         points,
		})
	}
	return descriptors, nil
}

func parseAvailableProperties(raw map[string]any) map[bacnet.PropertyName]any {
	out := make(map[bacnet.PropertyName]any, len(raw))
	for k, v := range raw {
		out[bacnet.PropertyName(k)] = v
	}
	return out
}

// FindPoint looks up one controller/point pair by (controllerID,
// pointInstanceID), the lookup the Writer performs before a write
// (the design: "look up the target controller and object in the
// latest configuration by (controller_id, point_instance_id)").
func FindPoint(descriptors []model.ControllerDescriptor, controllerID, pointInstanceID string) (model.ControllerDescriptor, model.PointDescriptor, bool) {
	for _, c := range descriptors {
		if c.ControllerID != controllerID {
			continue
		}
		for _, p := range c.Points {
			if p.PointID == pointInstanceID {
				return c, p, true
			}
		}
	}
	return model.ControllerDescriptor{}, model.PointDescriptor{}, false
}
