package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestCustomFormatter_Format(t *testing.T) {
	f := &CustomFormatter{SystemName: "taskflow-api"}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "Event ID: TEST, Description: something happened",
		Data:    logrus.Fields{},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	line := string(out)

	for _, want := range []string{
		"Date: 2026-03-14, Time: 09:26:53, ",
		"Event Source: taskflow-api, ",
		"Event Type: WARNING, ",
		"Message: Event ID: TEST, Description: something happened",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted line %q does not contain %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("formatted line should end with a newline")
	}
}

func TestCustomFormatter_UsesRequestID(t *testing.T) {
	f := &CustomFormatter{SystemName: "taskflow-api"}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Data:    logrus.Fields{"request_id": "req-42"},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(string(out), "Event ID: req-42, ") {
		t.Errorf("expected request id as event id, got %q", out)
	}
}
