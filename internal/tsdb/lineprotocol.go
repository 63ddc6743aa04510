package tsdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

const measurementBACnetPoint = "bacnet_point"

// pointTags builds the tag set both sinks index a ControllerPoint row
// by. Tags are low-cardinality identity fields, never the value itself.
func pointTags(p model.ControllerPoint) map[string]string {
	return map[string]string{
		"iot_device_point_id": p.IoTDevicePointID,
		"controller_id":       p.ControllerID,
		"object_type":         p.ObjectType,
	}
}

// pointValue parses present_value into the numeric field a time-series
// store can index. A point whose present_value doesn't parse (binary
// states stored as "active"/"inactive" and the like) carries no
// meaningful series point and is skipped by the caller.
func pointValue(p model.ControllerPoint) (float64, bool) {
	v, err := strconv.ParseFloat(p.PresentValue, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// formatLineProtocol formats a data point as an InfluxDB line protocol
// string: measurement,tag1=val1 field1=val1 timestamp_ns. Used by
// VictoriaMetricsSink, which speaks line protocol over HTTP directly.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))

	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	first := true
	for _, k := range fieldKeys {
		v := fields[k]
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch val := v.(type) {
		case float64:
			b.WriteString(fmt.Sprintf("%g", val))
		case int:
			b.WriteString(fmt.Sprintf("%di", val))
		case int64:
			b.WriteString(fmt.Sprintf("%di", val))
		case bool:
			if val {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case string:
			b.WriteString(fmt.Sprintf("%q", val))
		default:
			b.WriteString(fmt.Sprintf("%v", val))
		}
	}

	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))

	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line
// protocol: commas, equals signs, and spaces are backslash-escaped;
// newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
