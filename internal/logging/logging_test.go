package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{name: "defaults", level: "", format: "", wantLevel: logrus.InfoLevel},
		{name: "debug json", level: "debug", format: "JSON", wantLevel: logrus.DebugLevel, wantJSON: true},
		{name: "invalid level", level: "loud", format: "text", wantLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.format)
			if log.GetLevel() != tt.wantLevel {
				t.Fatalf("expected level %s, got %s", tt.wantLevel, log.GetLevel())
			}
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.wantJSON {
				t.Fatalf("expected json formatter %t, got %T", tt.wantJSON, log.Formatter)
			}
		})
	}
}
