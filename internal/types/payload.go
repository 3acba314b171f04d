package types

import (
	"bytes"
	"encoding/json"
)

// HourlyPayload is the decoded response of the remote air-quality API for
// one location. Only the hourly section is of interest to the pipeline;
// the remaining top-level fields are carried through for raw archival but
// not modeled here.
type HourlyPayload struct {
	City   string        `json:"city,omitempty"`
	Lat    float64       `json:"latitude,omitempty"`
	Lon    float64       `json:"longitude,omitempty"`
	Hourly *HourlySeries `json:"hourly,omitempty"`
}

// HourlySeries holds the parallel hourly arrays returned by the API: one
// time array plus one array per requested variable. The arrays are nominally
// the same length but may be ragged due to upstream inconsistency; elements
// are individually nullable.
type HourlySeries struct {
	Time            []*string  `json:"time"`
	PM10            []*float64 `json:"pm10"`
	PM25            []*float64 `json:"pm2_5"`
	CarbonMonoxide  []*float64 `json:"carbon_monoxide"`
	NitrogenDioxide []*float64 `json:"nitrogen_dioxide"`
	SulphurDioxide  []*float64 `json:"sulphur_dioxide"`
	Ozone           []*float64 `json:"ozone"`
	UVIndex         []*float64 `json:"uv_index"`
}

// DecodePayload parses a raw API response body. The endpoint normally
// returns a single JSON object, but some deployments wrap it in a
// one-element array; in that case the first element is used. An empty
// array decodes to a nil payload, which the Transformer treats as the
// non-fatal "no data" condition. Any other shape is a malformed payload.
func DecodePayload(body []byte) (*HourlyPayload, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []HourlyPayload
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, NewAppError(ErrCodePayloadMalformed, "payload array is not decodable", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var payload HourlyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewAppError(ErrCodePayloadMalformed, "payload is not a JSON object", err)
	}
	return &payload, nil
}
