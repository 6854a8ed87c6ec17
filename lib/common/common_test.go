package common

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := logOutput
	logOutput = &buf
	defer func() { logOutput = prev }()

	l := CreateLogger("zstore")
	l.SetLevel(logger.WARNING)

	l.Infof("hidden %d", 1)
	l.Warningf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warning level: %q", out)
	}
	if !strings.Contains(out, "WARN  | zstore   | shown 2") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestLoggerPanicf(t *testing.T) {
	var buf bytes.Buffer
	prev := logOutput
	logOutput = &buf
	defer func() { logOutput = prev }()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Panicf did not panic")
		}
	}()
	CreateLogger("lsm").Panicf("boom")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"maple without dir", func(c *Config) { c.Engine, c.DataDir = db.ImplMaple, "" }, false},
		{"lsm without dir", func(c *Config) { c.DataDir = "" }, true},
		{"unknown engine", func(c *Config) { c.Engine = "btree" }, true},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, true},
		{"negative interval", func(c *Config) { c.GCInterval = -time.Second }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			tt.modify(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigOpensStore(t *testing.T) {
	for _, engine := range []db.Implementation{db.ImplLSM, db.ImplMaple} {
		t.Run(string(engine), func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			c.Engine = engine
			c.SyncWrites = false
			c.GCInterval = 0

			database, err := c.DBFactory()()
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			defer database.Close()

			if got := database.GetInfo().DbType; got != engine {
				t.Errorf("DbType = %q, want %q", got, engine)
			}

			opts := c.StoreOptions()
			if opts.Namespace != c.Namespace || opts.GCInterval != 0 {
				t.Errorf("unexpected store options: %+v", opts)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	c := DefaultConfig("/var/lib/zkv")
	s := c.String()
	for _, want := range []string{"STORAGE", "/var/lib/zkv", "NAMESPACE", "default", "LOGGING"} {
		if !strings.Contains(strings.ToUpper(s), strings.ToUpper(want)) {
			t.Errorf("String() misses %q:\n%s", want, s)
		}
	}

	c.GCInterval = 0
	if !strings.Contains(c.String(), "disabled") {
		t.Errorf("String() does not show the disabled collector:\n%s", c.String())
	}
}
