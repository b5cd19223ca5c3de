package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestExtractor(opts ...Option) *Extractor {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { return "evt-1" }),
	}
	return NewExtractor(append(base, opts...)...)
}

func TestExtract_EmbeddedInProse(t *testing.T) {
	replies := []string{
		`{"Event":"Dentist appointment","Time":"15:00","Priority":"Medium","Date":"2024-06-02"}`,
		`Sure! Here is your event: {"Event":"Dentist appointment","Time":"15:00","Priority":"Medium","Date":"2024-06-02"} Let me know if you need anything else.`,
		"```json\n{\n  \"Event\": \"Dentist appointment\",\n  \"Time\": \"15:00\",\n  \"Priority\": \"Medium\",\n  \"Date\": \"2024-06-02\"\n}\n```",
		`{"Date":"2024-06-02","Priority":"Medium","Time":"15:00","Event":"Dentist appointment"}`,
	}

	want := event.CalendarEvent{
		ID:        "evt-1",
		Event:     "Dentist appointment",
		Time:      "15:00",
		Priority:  event.PriorityMedium,
		Date:      "2024-06-02",
		Timestamp: fixedNow.UnixMilli(),
	}

	e := newTestExtractor()
	for _, reply := range replies {
		got, ok := e.Extract(reply)
		if !ok {
			t.Errorf("Extract(%q) found nothing", reply)
			continue
		}
		if got != want {
			t.Errorf("Extract(%q) = %+v, want %+v", reply, got, want)
		}
	}
}

func TestExtract_NotAnEvent(t *testing.T) {
	replies := []string{
		"",
		"Hello! How can I help you today?",
		`{"Event":"Lunch","Time":"12:00"}`,
		`The keys are Event, Time, Priority and Date.`,
		`{"event":"Lunch","time":"12:00","priority":"low","date":"2024-06-02"}`,
	}

	e := newTestExtractor()
	for _, reply := range replies {
		if got, ok := e.Extract(reply); ok {
			t.Errorf("Extract(%q) = %+v, want none", reply, got)
		}
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	e := newTestExtractor()
	_, ok := e.Extract(`{"Event": "Lunch", "Time": "12:00", "Priority": "low", "Date": "2024-06-02",}`)
	if ok {
		t.Error("trailing comma should fail parsing and yield none")
	}
}

func TestExtract_MissingOrEmptyField(t *testing.T) {
	e := newTestExtractor()
	cases := []string{
		`{"Event":"","Time":"12:00","Priority":"low","Date":"2024-06-02"}`,
		`{"Event":"Lunch","Time":"12:00","Priority":"","Date":"2024-06-02"}`,
		`{"Event":"Lunch","Time":"12:00","Priority":null,"Date":"2024-06-02"}`,
		`{"Event":42,"Time":"12:00","Priority":"low","Date":"2024-06-02"}`,
	}
	for _, c := range cases {
		if _, ok := e.Extract(c); ok {
			t.Errorf("Extract(%q) should be rejected", c)
		}
	}
}

func TestExtract_PriorityNormalization(t *testing.T) {
	e := newTestExtractor()
	tests := map[string]event.Priority{
		"HIGH":     event.PriorityHigh,
		"Low":      event.PriorityLow,
		"critical": event.PriorityLow,
	}
	for in, want := range tests {
		got, ok := e.Extract(`{"Event":"x","Time":"08:00","Priority":"` + in + `","Date":"2024-06-02"}`)
		if !ok {
			t.Fatalf("Extract with priority %q found nothing", in)
		}
		if got.Priority != want {
			t.Errorf("priority %q -> %q, want %q", in, got.Priority, want)
		}
	}
}

func TestExtract_StrictValidation(t *testing.T) {
	e := newTestExtractor()

	got, ok := e.Extract(`{"Event":"Run","Time":"7:05","Priority":"low","Date":"2024-06-02"}`)
	if !ok || got.Time != "07:05" {
		t.Errorf("single-digit hour: got %+v ok=%v, want time 07:05", got, ok)
	}

	rejected := []string{
		`{"Event":"Run","Time":"3pm","Priority":"low","Date":"2024-06-02"}`,
		`{"Event":"Run","Time":"24:00","Priority":"low","Date":"2024-06-02"}`,
		`{"Event":"Run","Time":"10:60","Priority":"low","Date":"2024-06-02"}`,
		`{"Event":"Run","Time":"10:00","Priority":"low","Date":"tomorrow"}`,
		`{"Event":"Run","Time":"10:00","Priority":"low","Date":"2024-02-30"}`,
	}
	for _, r := range rejected {
		if _, ok := e.Extract(r); ok {
			t.Errorf("strict Extract(%q) should reject", r)
		}
	}
}

func TestExtract_LenientKeepsVerbatim(t *testing.T) {
	e := newTestExtractor(WithStrict(false))
	got, ok := e.Extract(`{"Event":"Run","Time":"3pm","Priority":"low","Date":"tomorrow"}`)
	if !ok {
		t.Fatal("lenient Extract should accept")
	}
	if got.Time != "3pm" || got.Date != "tomorrow" {
		t.Errorf("lenient Extract altered fields: %+v", got)
	}
}

func TestFindCandidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "skips unrelated object",
			in:   `{"a":1} then {"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "brace inside string",
			in:   `{"Event":"a } b","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"a } b","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "escaped quote inside string",
			in:   `{"Event":"say \"hi\" {","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"say \"hi\" {","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "stray open brace in prose",
			in:   `use { carefully: {"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "long run of open braces",
			in:   strings.Repeat("{", 100000) + `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "quote in prose before object",
			in:   `it's 6" long: {"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "nested keyless object is skipped whole",
			in:   `{"meta":{"a":"b"}} {"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			want: `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"}`,
			ok:   true,
		},
		{
			name: "unbalanced",
			in:   `{"Event":"x","Time":"1:00","Priority":"low","Date":"d"`,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCandidate(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("FindCandidate = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	good := map[string]string{"00:00": "00:00", "9:30": "09:30", "23:59": "23:59", " 12:00 ": "12:00"}
	for in, want := range good {
		got, err := NormalizeTime(in)
		if err != nil || got != want {
			t.Errorf("NormalizeTime(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "12", "12:0", "123:00", "-1:00", "ab:cd", "12:000"} {
		if _, err := NormalizeTime(bad); err == nil {
			t.Errorf("NormalizeTime(%q) should fail", bad)
		}
	}
}
