package vtt

import (
	"reflect"
	"testing"
)

func TestParse_SpeakerScenario(t *testing.T) {
	input := "00:00:42.000 --> 00:00:44.000\nFord: Hey.\n\n00:00:44.000 --> 00:00:46.000\nDanny: What up?"

	segments := Parse(input)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}

	want := []struct{ ts, speaker, text string }{
		{"0:42", "Ford", "Hey."},
		{"0:44", "Danny", "What up?"},
	}
	for i, w := range want {
		got := segments[i]
		if got.Timestamp != w.ts || got.Speaker != w.speaker || got.Text != w.text {
			t.Errorf("segment %d = %+v, want %+v", i, got, w)
		}
	}
	if segments[0].TimestampSeconds != 42 {
		t.Errorf("expected 42 seconds, got %v", segments[0].TimestampSeconds)
	}
}

func TestParse_FullDocument(t *testing.T) {
	input := "WEBVTT\r\n\r\nNOTE exported transcript\r\n\r\n1\r\n00:01:02.500 --> 00:01:05.000\r\n<v Alice Smith>Welcome &amp; hello</v>\r\n\r\n" +
		"2\r\n01:00:00.000 --> 01:00:03.000\r\nno speaker here\r\nsecond line\r\n\r\n3\r\n00:00:10.000 --> 00:00:11.000\r\n\r\n"

	segments := Parse(input)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}

	if segments[0].Speaker != "Alice Smith" || segments[0].Text != "Welcome & hello" {
		t.Errorf("unexpected voice-tag segment: %+v", segments[0])
	}
	if segments[0].Timestamp != "1:02" {
		t.Errorf("expected label 1:02, got %q", segments[0].Timestamp)
	}
	if segments[1].Timestamp != "1:00:00" {
		t.Errorf("expected hour label, got %q", segments[1].Timestamp)
	}
	if segments[1].Speaker != "" || segments[1].Text != "no speaker here second line" {
		t.Errorf("unexpected multi-line segment: %+v", segments[1])
	}
}

func TestParse_Idempotent(t *testing.T) {
	input := "WEBVTT\n\n00:00:05.000 --> 00:00:06.000\nBob: one\n\n00:00:01.000 --> 00:00:02.000\nAmy: two\n"

	first := Parse(input)
	second := Parse(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing twice differed:\n%+v\n%+v", first, second)
	}
	if first[0].TimestampSeconds > first[1].TimestampSeconds {
		t.Error("segments should be ordered by start time")
	}
}

func TestParse_Garbage(t *testing.T) {
	if got := Parse("not a caption file\n\nat all"); len(got) != 0 {
		t.Errorf("expected no segments, got %+v", got)
	}
	if got := Parse(""); len(got) != 0 {
		t.Errorf("expected no segments for empty input, got %+v", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		label string
		want  float64
		ok    bool
	}{
		{"0:42", 42, true},
		{"12:05", 725, true},
		{"1:02:03", 3723, true},
		{"00:00:42.000", 42, true},
		{"00:01:02,5", 62.5, true},
		{"1:75", UnknownTimestamp, false},
		{"soon", UnknownTimestamp, false},
		{"", UnknownTimestamp, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseClock(tt.label)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseClock(%q) = (%v, %v), want (%v, %v)", tt.label, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := map[float64]string{
		0:      "0:00",
		42:     "0:42",
		725.9:  "12:05",
		3723:   "1:02:03",
		-5:     "0:00",
	}
	for in, want := range tests {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestToResult(t *testing.T) {
	result := ToResult(Parse("00:00:01.000 --> 00:00:02.000\nFord: Hey.\n\n00:00:03.000 --> 00:00:04.000\nFord: Again.\n\n00:00:05.000 --> 00:00:06.000\nDanny: Hi"))

	if result.SegmentCount != 3 {
		t.Errorf("expected 3 segments, got %d", result.SegmentCount)
	}
	if !reflect.DeepEqual(result.Speakers, []string{"Ford", "Danny"}) {
		t.Errorf("unexpected speakers %v", result.Speakers)
	}
	want := "0:01 Ford: Hey.\n0:03 Ford: Again.\n0:05 Danny: Hi"
	if result.Transcript != want {
		t.Errorf("unexpected transcript:\n%s", result.Transcript)
	}
}
