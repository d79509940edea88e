package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want logrus.Level
	}{
		{"DEBUG", logrus.DebugLevel},
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"WARNING", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"CRITICAL", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNamed_CarriesComponent(t *testing.T) {
	e := Named("trader")
	if e.Data["component"] != "trader" {
		t.Fatalf("component field = %v", e.Data["component"])
	}
}
