package homework

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	FieldHomeworks   = "homeworks"
	FieldCurrentDate = "current_date"
)

// RawResponse is the decoded top-level object of a status API answer.
// Values stay undecoded so shape problems can be reported precisely.
type RawResponse map[string]json.RawMessage

// Submission is one record of the homeworks list. Only Name and Status are
// used for messages; the rest is decoded when the API sends it.
type Submission struct {
	ID              int64
	Name            string
	Status          string
	LessonName      string
	ReviewerComment string
	DateUpdated     string
}

type submissionRecord struct {
	ID              int64  `json:"id"`
	HomeworkName    string `json:"homework_name"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	LessonName      string `json:"lesson_name"`
	ReviewerComment string `json:"reviewer_comment"`
	DateUpdated     string `json:"date_updated"`
}

// Extract returns the tracked submission of resp: the first element of the
// homeworks list. Later elements are neither decoded nor validated.
//
// Errors are always either ErrMalformedResponse (wrapped with detail) or
// ErrNoPendingSubmissions.
func Extract(resp RawResponse) (Submission, error) {
	if resp == nil {
		return Submission{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	raw, ok := resp[FieldHomeworks]
	if !ok {
		return Submission{}, fmt.Errorf("%w: field %q is missing", ErrMalformedResponse, FieldHomeworks)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return Submission{}, fmt.Errorf("%w: field %q is not a list", ErrMalformedResponse, FieldHomeworks)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return Submission{}, fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, FieldHomeworks, err)
	}
	if len(items) == 0 {
		return Submission{}, ErrNoPendingSubmissions
	}

	first := bytes.TrimSpace(items[0])
	if len(first) == 0 || first[0] != '{' {
		return Submission{}, fmt.Errorf("%w: %s[0] is not an object", ErrMalformedResponse, FieldHomeworks)
	}
	var rec submissionRecord
	if err := json.Unmarshal(first, &rec); err != nil {
		return Submission{}, fmt.Errorf("%w: %s[0]: %v", ErrMalformedResponse, FieldHomeworks, err)
	}
	name := rec.HomeworkName
	if name == "" {
		name = rec.Name
	}
	return Submission{
		ID:              rec.ID,
		Name:            name,
		Status:          rec.Status,
		LessonName:      rec.LessonName,
		ReviewerComment: rec.ReviewerComment,
		DateUpdated:     rec.DateUpdated,
	}, nil
}

// CurrentDate returns the server timestamp used to advance the cursor.
// ok is false when the field is absent or not an integer.
func CurrentDate(resp RawResponse) (ts int64, ok bool) {
	raw, found := resp[FieldCurrentDate]
	raw = bytes.TrimSpace(raw)
	if !found || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if err := json.Unmarshal(raw, &ts); err != nil {
		return 0, false
	}
	return ts, true
}
