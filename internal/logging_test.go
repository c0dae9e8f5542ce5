package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	l := NewLogger()

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Error("info should be hidden at the default level:", buf.String())
		return
	}
	l.Warnf("shown %d", 1)
	if !strings.Contains(buf.String(), "shown 1") {
		t.Error("warning missing:", buf.String())
		return
	}

	old := l.SetLogLevel(LevelInfo)
	if old != LogLevelDefault {
		t.Error("wrong old level", old)
	}
	buf.Reset()
	l.Event(LevelInfo).Str("key", "latArr").Msg("structured")
	out := buf.String()
	if !strings.Contains(out, `"key":"latArr"`) || !strings.Contains(out, "structured") {
		t.Error("structured event missing:", out)
	}
}

func TestFatalEventAtLowestLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	l := NewLogger()
	l.SetLogLevel(LevelFatal)

	l.Event(LevelError).Msg("filtered")
	if buf.Len() != 0 {
		t.Error("error should be hidden at the fatal level:", buf.String())
		return
	}
	l.Event(LevelFatal).Str("key", "tpwGrid").Msg("cannot continue")
	out := buf.String()
	if !strings.Contains(out, `"level":"fatal"`) || !strings.Contains(out, "cannot continue") {
		t.Error("fatal event missing:", out)
	}
}

func TestSetPackageLevel(t *testing.T) {
	l := NewLogger()
	old := SetPackageLevel(l, 3)
	if old != int(LogLevelDefault) {
		t.Error("wrong old level", old)
	}
	if l.LogLevel() != LevelInfo {
		t.Error("level not applied", l.LogLevel())
	}
	SetPackageLevel(l, 0)
	if l.LogLevel() != LevelFatal {
		t.Error("level not applied", l.LogLevel())
	}
}

func TestInvalidLevelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewLogger().SetLogLevel(LevelMax + 1)
}
