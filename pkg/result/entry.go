package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the role of an Entry in a batch response.
type Kind string

const (
	// KindRecord carries a parsed StudentResult.
	KindRecord Kind = "record"

	// KindSeparator follows every record to group the flattened output.
	KindSeparator Kind = "separator"

	// KindError stands in for a registration number or sub-batch that failed.
	KindError Kind = "error"
)

// Entry is one element of a batch response.
// The JSON form depends on Kind: a record is the bare StudentResult object,
// a separator is {"separator": "***..."} and an error is {"error": "..."}.
type Entry struct {
	Kind   Kind
	Result *StudentResult
	Error  string
}

// Record wraps a parsed result.
func Record(r *StudentResult) Entry {
	return Entry{Kind: KindRecord, Result: r}
}

// Separator returns the sentinel that follows each record.
func Separator() Entry {
	return Entry{Kind: KindSeparator}
}

// Failure returns an error entry carrying msg.
func Failure(msg string) Entry {
	return Entry{Kind: KindError, Error: msg}
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindRecord:
		if e.Result == nil {
			return nil, fmt.Errorf("record entry without result")
		}
		return json.Marshal(e.Result)
	case KindSeparator:
		return json.Marshal(map[string]string{"separator": SeparatorText})
	case KindError:
		return json.Marshal(map[string]string{"error": e.Error})
	default:
		return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
// Objects with a "separator" key decode as separators, objects with an
// "error" key as errors, and anything else as a record.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if _, ok := fields["separator"]; ok {
		*e = Separator()
		return nil
	}

	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Non-string error payloads are kept verbatim.
			msg = string(bytes.TrimSpace(raw))
		}
		*e = Failure(msg)
		return nil
	}

	var r StudentResult
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*e = Record(&r)
	return nil
}

// Records returns the StudentResults contained in entries, in order.
func Records(entries []Entry) []*StudentResult {
	out := make([]*StudentResult, 0, len(entries)/2)
	for _, e := range entries {
		if e.Kind == KindRecord && e.Result != nil {
			out = append(out, e.Result)
		}
	}
	return out
}

// Errors returns the messages of all error entries, in order.
func Errors(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Kind == KindError {
			out = append(out, e.Error)
		}
	}
	return out
}
