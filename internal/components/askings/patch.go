package askings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Patch is a partial update as received on the wire, keyed by field name.
type Patch map[string]json.RawMessage

var (
	restrictedFields = map[string]bool{"title": true, "description": true, "state": true}
	permissiveFields = map[string]bool{
		"title": true, "description": true, "state": true,
		"user_id": true, "mentor_id": true,
		"start_date": true, "end_date": true,
	}
)

// Apply merges p into a according to mode. Identity and bookkeeping keys
// (id, _id, created_at, updated_at) and unknown keys are ignored. Restricted
// mode rejects the other known fields instead of ignoring them.
func (p Patch) Apply(a *Asking, mode PatchMode) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !permissiveFields[k] {
			continue
		}
		if mode == PatchRestricted && !restrictedFields[k] {
			return validationErr(k, "field is not mutable")
		}

		raw := p[k]
		var err error
		switch k {
		case "title":
			err = decodeString(raw, &a.Title)
		case "description":
			err = decodeString(raw, &a.Description)
		case "state":
			err = decodeString(raw, &a.State)
		case "user_id":
			err = decodeString(raw, &a.UserID)
		case "mentor_id":
			err = decodeString(raw, &a.MentorID)
		case "start_date":
			err = decodeTime(raw, &a.StartDate)
		case "end_date":
			err = decodeTime(raw, &a.EndDate)
		}
		if err != nil {
			return validationErr(k, err.Error())
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeString clears dst on an explicit null.
func decodeString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		*dst = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("must be a string")
	}
	*dst = s
	return nil
}

func decodeTime(raw json.RawMessage, dst *time.Time) error {
	if isNull(raw) {
		return fmt.Errorf("must not be null")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("must be an RFC 3339 timestamp")
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*dst = t
	return nil
}

// ParseTime accepts RFC 3339 timestamps with or without fractional seconds,
// and a bare date taken as midnight UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("must not be empty")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
