package output

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type sessionRow struct {
	ID       string    `json:"id"`
	Primary  bool      `json:"primary"`
	Created  time.Time `json:"created_at"`
	Attrs    []string  `json:"attrs" table:"wide"`
	internal string
	Secret   string `json:"secret" table:"-"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json: want *JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml: want *YAMLFormatter")
	}
	tf, ok := NewFormatter("other", true).(*TableFormatter)
	if !ok {
		t.Fatal("fallback: want *TableFormatter")
	}
	if !tf.Wide {
		t.Error("wide flag not carried over")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, map[string]int{"sessions": 3}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"sessions": 3`) {
		t.Errorf("Format() = %q", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	data := struct {
		Context string           `json:"context"`
		Members []string         `json:"members"`
		Sent    map[string]int64 `json:"sent"`
	}{
		Context: "shop",
		Members: []string{"node-b@10.0.0.2:7100"},
		Sent:    map[string]int64{"SESSION_DELTA": 4},
	}

	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"context: shop",
		"members:\n  - node-b@10.0.0.2:7100",
		"sent:\n  SESSION_DELTA: 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []sessionRow{
		{ID: "s1", Primary: true, Attrs: []string{"a", "b"}, Secret: "x"},
		{ID: "s2"},
	}

	tests := []struct {
		name    string
		wide    bool
		want    []string
		notWant []string
	}{
		{
			name:    "narrow",
			want:    []string{"ID", "PRIMARY", "CREATED_AT", "s1", "true", "s2"},
			notWant: []string{"ATTRS", "SECRET", "INTERNAL"},
		},
		{
			name:    "wide",
			wide:    true,
			want:    []string{"ATTRS", "a,b"},
			notWant: []string{"SECRET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&TableFormatter{Wide: tt.wide}).Format(&buf, rows); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestTableFormatter_PointerSlice(t *testing.T) {
	var buf bytes.Buffer
	rows := []*sessionRow{{ID: "p1"}, nil}
	if err := (&TableFormatter{}).Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "p1") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestTableFormatter_MapSorted(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i, key := range []string{"alpha", "mid", "zeta"} {
		if !strings.HasPrefix(lines[i+1], key) {
			t.Errorf("line %d = %q, want prefix %q", i+1, lines[i+1], key)
		}
	}
}

func TestTableFormatter_Struct(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, &sessionRow{ID: "s1", Secret: "x"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "FIELD") || !strings.Contains(out, "s1") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("hidden field shown: %q", out)
	}
}

func TestTableFormatter_FallbackAndNil(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Fatalf("Format(nil) = %q, %v", buf.String(), err)
	}
	if err := (&TableFormatter{}).Format(&buf, 42); err != nil {
		t.Fatalf("Format(42) error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("Format(42) = %q", buf.String())
	}
}

func TestTable_Render(t *testing.T) {
	table := &Table{}
	table.SetHeaders("NAME", "SERVER")
	table.AddRow("local", "http://127.0.0.1:8080")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "NAME   SERVER\nlocal  http://127.0.0.1:8080\n"
	if buf.String() != want {
		t.Errorf("Render() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := table.RenderWithOptions(&buf, true); err != nil {
		t.Fatalf("RenderWithOptions() error = %v", err)
	}
	if strings.Contains(buf.String(), "NAME") {
		t.Errorf("headers not suppressed: %q", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)
	var nilPtr *string
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"empty string", "", "-"},
		{"string", "abc", "abc"},
		{"int", int64(-7), "-7"},
		{"uint", uint8(7), "7"},
		{"float", 1.5, "1.50"},
		{"bool", true, "true"},
		{"zero time", time.Time{}, "-"},
		{"time", now, "2026-03-01 12:30:00"},
		{"duration", 90 * time.Second, "1m30s"},
		{"nil pointer", nilPtr, "-"},
		{"string slice", []string{"a", "b"}, "a,b"},
		{"int slice", []int{1, 2}, "[2 items]"},
		{"empty map", map[string]int{}, "-"},
		{"map", map[string]int{"a": 1}, "{1 keys}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tt.in)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":               "id",
		"MaxInactive":      "max_inactive",
		"primary":          "primary",
		"ReceivedQueueLen": "received_queue_len",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf syncBuffer
		s := NewSpinner(&buf, "waiting for state transfer")
		s.interval = time.Millisecond
		s.Start()
		s.Start()
		time.Sleep(10 * time.Millisecond)
		s.SetMessage("almost there")
		s.Success("complete")
		s.Fail("ignored")

		out := buf.String()
		if !strings.Contains(out, "waiting for state transfer") {
			t.Errorf("animation not written: %q", out)
		}
		if !strings.HasSuffix(out, "✓ complete\n") {
			t.Errorf("output should end with success line: %q", out)
		}
		if strings.Contains(out, "ignored") {
			t.Errorf("second finish wrote output: %q", out)
		}
	})

	t.Run("stop without start", func(t *testing.T) {
		var buf syncBuffer
		s := NewSpinner(&buf, "idle")
		s.Stop()
		s.Start()
		if strings.Contains(buf.String(), "idle") {
			t.Errorf("stopped spinner animated: %q", buf.String())
		}
	})

	t.Run("fail", func(t *testing.T) {
		var buf syncBuffer
		s := NewSpinner(&buf, "x")
		s.Start()
		s.Fail("timed out")
		if !strings.HasSuffix(buf.String(), "✗ timed out\n") {
			t.Errorf("output = %q", buf.String())
		}
	})
}
