package eventlog

import (
	"fmt"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// normalizeLegacy rewrites a raw decoded line in place so that decodeEvent
// only ever has to handle the current wire shape (spec §6 Legacy
// normalisation):
//   - a top-level "data" key is renamed to "payload"
//   - action "run.init" becomes "run.start" with payload.status forced to
//     "initialized" if absent
//   - a missing schema_version defaults to the legacy version string
//   - a legacy payload.verify_status of "fail" is rewritten to "mismatch"
func normalizeLegacy(raw map[string]any) {
	if data, ok := raw["data"]; ok {
		if _, hasPayload := raw["payload"]; !hasPayload {
			raw["payload"] = data
		}
		delete(raw, "data")
	}

	if raw["action"] == model.ActionRunInit {
		raw["action"] = model.ActionRunStart
		payload, _ := raw["payload"].(map[string]any)
		if payload == nil {
			payload = map[string]any{}
		}
		if _, ok := payload["status"]; !ok {
			payload["status"] = "initialized"
		}
		raw["payload"] = payload
	}

	if _, ok := raw["schema_version"]; !ok {
		raw["schema_version"] = model.LegacySchemaVersion
	}

	if payload, ok := raw["payload"].(map[string]any); ok {
		if vs, ok := payload["verify_status"].(string); ok {
			payload["verify_status"] = model.NormalizeVerifyStatus(vs)
		}
	}
}

// requiredFields lists the seven top-level fields every event must carry
// once normalized (spec §3). event_id is allowed to be absent only for
// legacy lines, which decodeEvent compensates for by synthesizing one
// after seq validation (spec §6).
var requiredFields = []string{"schema_version", "event_seq", "ts", "actor", "action", "payload"}

// decodeEvent converts a normalized raw line into a model.Event, checking
// that every required field is present and of the right shape.
func decodeEvent(raw map[string]any, line int) (model.Event, *ParseError) {
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return model.Event{}, &ParseError{
				Code:    model.CodeEventMissingFields,
				Message: fmt.Sprintf("missing field %q", field),
				Line:    line,
			}
		}
	}

	evt := model.Event{}

	schemaVersion, ok := raw["schema_version"].(string)
	if !ok || schemaVersion == "" {
		return model.Event{}, &ParseError{Code: model.CodeEventMissingFields, Message: "schema_version must be a non-empty string", Line: line}
	}
	evt.SchemaVersion = schemaVersion

	if id, ok := raw["event_id"].(string); ok {
		evt.EventID = id
	}

	seqFloat, ok := raw["event_seq"].(float64)
	if !ok || seqFloat != float64(int(seqFloat)) || int(seqFloat) < 1 {
		return model.Event{}, &ParseError{Code: model.CodeEventSeqInvalid, Message: fmt.Sprintf("event_seq %v is not a positive integer", raw["event_seq"]), Line: line}
	}
	evt.EventSeq = int(seqFloat)

	ts, ok := raw["ts"].(string)
	if !ok || ts == "" {
		return model.Event{}, &ParseError{Code: model.CodeEventMissingFields, Message: "ts must be a non-empty string", Line: line}
	}
	evt.TS = ts

	actor, ok := raw["actor"].(string)
	if !ok || actor == "" {
		return model.Event{}, &ParseError{Code: model.CodeEventMissingFields, Message: "actor must be a non-empty string", Line: line}
	}
	evt.Actor = actor

	action, ok := raw["action"].(string)
	if !ok || action == "" {
		return model.Event{}, &ParseError{Code: model.CodeEventMissingFields, Message: "action must be a non-empty string", Line: line}
	}
	evt.Action = action

	payload, ok := raw["payload"].(map[string]any)
	if !ok {
		return model.Event{}, &ParseError{Code: model.CodeEventMissingFields, Message: "payload must be an object", Line: line}
	}
	evt.Payload = payload

	return evt, nil
}
