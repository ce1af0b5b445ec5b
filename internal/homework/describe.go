package homework

import "fmt"

const messageTemplate = "Изменился статус проверки работы \"%s\". %s"

// Describe renders the notification text for a submission.
// It fails with *UnknownStatusError when the status is not in the catalog,
// and with ErrMalformedResponse when the record has no name.
func Describe(s Submission) (string, error) {
	verdict, ok := Verdict(s.Status)
	if !ok {
		return "", &UnknownStatusError{Status: s.Status}
	}
	if s.Name == "" {
		return "", fmt.Errorf("%w: submission has no name", ErrMalformedResponse)
	}
	return fmt.Sprintf(messageTemplate, s.Name, verdict), nil
}
