package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/utils"
)

// unixMillisThreshold separates epoch seconds from epoch milliseconds
const unixMillisThreshold = 1e11

var ErrEmptyPayload = errors.New("empty payload")

// DecodeSensorPayload parses a device message. Devices send either one object
// or an array of objects; metric values may be numbers or numeric strings and
// the timestamp may be RFC 3339 or epoch seconds/milliseconds under
// "timestamp" or "ts". A missing timestamp means the reading was taken at
// received. Unknown keys are ignored.
func DecodeSensorPayload(payload []byte, received time.Time) ([]models.Reading, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var objects []map[string]interface{}
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &objects); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
	} else {
		var obj map[string]interface{}
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		objects = append(objects, obj)
	}

	readings := make([]models.Reading, 0, len(objects))
	for i, obj := range objects {
		r, err := decodeObject(obj, received)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func decodeObject(obj map[string]interface{}, received time.Time) (models.Reading, error) {
	r := models.Reading{Timestamp: received}

	for key, raw := range obj {
		switch strings.ToLower(key) {
		case "timestamp", "ts":
			ts, err := parseTimestamp(raw)
			if err != nil {
				return r, err
			}
			r.Timestamp = ts
			continue
		case "id":
			if id, ok := raw.(string); ok {
				r.ID = id
			}
			continue
		}

		metric, err := models.ParseMetric(key)
		if err != nil || raw == nil {
			continue
		}
		value, ok := utils.ToFloat64(raw)
		if !ok {
			return r, fmt.Errorf("%s: not a number: %v", metric, raw)
		}
		r.SetValue(metric, value)
	}
	return r, nil
}

func parseTimestamp(raw interface{}) (time.Time, error) {
	if s, ok := raw.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, nil
		}
	}

	f, ok := utils.ToFloat64(raw)
	if !ok || f <= 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp: %v", raw)
	}
	if f >= unixMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
