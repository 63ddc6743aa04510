package uploader

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openbms-io/supervisor/internal/model"
)

// jsonStringFields are the ControllerPoint fields stored at rest as
// opaque JSON strings that get re-parsed into structured values before
// upload (the design step 2).
var jsonStringFields = []string{
	"priority_array",
	"limit_enable",
	"event_enable",
	"acked_transitions",
	"event_time_stamps",
	"event_message_texts",
	"event_message_texts_config",
	"event_algorithm_inhibit_ref",
}

type bulkEnvelope struct {
	Points []map[string]any `json:"points"`
}

// serializeBatch builds the upload-time wire document for a batch of
// points: status_flags split on ";" into a list, the ~8 JSON-string
// fields re-parsed into structured values, wrapped in a {"points": [...]}
// envelope (the design steps 2-3). Datetimes need no extra handling:
// time.Time already marshals as ISO-8601/RFC3339, and
// created_at_unix_milli_timestamp is already a plain field on
// ControllerPoint.
func serializeBatch(points []model.ControllerPoint) ([]byte, error) {
	docs := make([]map[string]any, 0, len(points))
	for _, p := range points {
		doc, err := serializePoint(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return json.Marshal(bulkEnvelope{Points: docs})
}

func serializePoint(p model.ControllerPoint) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("uploader: marshaling point %s: %w", p.IoTDevicePointID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("uploader: round-tripping point %s: %w", p.IoTDevicePointID, err)
	}

	if p.StatusFlags != "" {
		doc["status_flags"] = strings.Split(p.StatusFlags, ";")
	}

	for _, field := range jsonStringFields {
		s, ok := doc[field].(string)
		if !ok || s == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			// Leave the raw string in place rather than fail the whole
			// batch over one malformed field.
			continue
		}
		doc[field] = parsed
	}

	return doc, nil
}
