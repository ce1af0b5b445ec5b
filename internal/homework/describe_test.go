package homework

import (
	"errors"
	"testing"
)

func TestDescribeKnownStatuses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status string
		want   string
	}{
		{status: StatusReviewing, want: `Изменился статус проверки работы "X". Работа взята на проверку ревьюером.`},
		{status: StatusApproved, want: `Изменился статус проверки работы "X". Работа проверена: ревьюеру всё понравилось. Ура!`},
		{status: StatusRejected, want: `Изменился статус проверки работы "X". Работа проверена: у ревьюера есть замечания.`},
	}
	for _, tt := range tests {
		got, err := Describe(Submission{Name: "X", Status: tt.status})
		if err != nil {
			t.Fatalf("Describe(%s) error: %v", tt.status, err)
		}
		if got != tt.want {
			t.Fatalf("Describe(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestDescribeIsPure(t *testing.T) {
	t.Parallel()
	s := Submission{Name: "X", Status: StatusApproved}
	first, _ := Describe(s)
	for i := 0; i < 5; i++ {
		got, err := Describe(s)
		if err != nil || got != first {
			t.Fatalf("Describe call %d = (%q, %v), want (%q, nil)", i, got, err, first)
		}
	}
}

func TestDescribeUnknownStatus(t *testing.T) {
	t.Parallel()
	_, err := Describe(Submission{Name: "X", Status: "weird"})
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("error = %v, want ErrUnknownStatus", err)
	}
	var us *UnknownStatusError
	if !errors.As(err, &us) || us.Status != "weird" {
		t.Fatalf("error = %#v, want *UnknownStatusError{weird}", err)
	}
	if Classify(err) != KindUnknownStatus {
		t.Fatalf("Classify = %v, want %v", Classify(err), KindUnknownStatus)
	}
}

func TestDescribeMissingName(t *testing.T) {
	t.Parallel()
	_, err := Describe(Submission{Status: StatusApproved})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestCatalogCoversStatuses(t *testing.T) {
	t.Parallel()
	for _, s := range Statuses() {
		if v, ok := Verdict(s); !ok || v == "" {
			t.Fatalf("Verdict(%q) missing", s)
		}
	}
	if _, ok := Verdict("weird"); ok {
		t.Fatal("Verdict(weird) should not exist")
	}
}
