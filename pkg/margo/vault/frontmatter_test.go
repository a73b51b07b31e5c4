package vault

import (
	"testing"
)

func TestParseFrontmatter(t *testing.T) {
	t.Parallel()

	doc := []byte(`---
title: Call the bank
date: 2025-06-10
startTime: "14:00"
completed: false
status: todo
---
Body text here.
`)
	fm := ParseFrontmatter(doc, nil)
	if fm["title"] != "Call the bank" {
		t.Errorf("title = %v", fm["title"])
	}
	if fm["startTime"] != "14:00" {
		t.Errorf("startTime = %v", fm["startTime"])
	}
	if fm["status"] != "todo" {
		t.Errorf("status = %v", fm["status"])
	}
}

func TestParseFrontmatterNoBlock(t *testing.T) {
	t.Parallel()

	cases := [][]byte{
		[]byte("just a note\n"),
		[]byte("---\nunterminated: yes\n"),
		[]byte("---\n{not yaml\n---\n"),
		[]byte("\n---\ntitle: late\n---\n"),   // block must open the document
		[]byte("\r\n---\ntitle: late\n---\n"), // same, CRLF
		[]byte("intro\n---\ntitle: mid\n---\n"),
		nil,
	}
	for _, doc := range cases {
		fm := ParseFrontmatter(doc, nil)
		if fm == nil || len(fm) != 0 {
			t.Errorf("ParseFrontmatter(%q) = %v, want empty map", doc, fm)
		}
	}
}

func TestNormalizeClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		// minutes since midnight
		{510, "08:30", true},
		{0, "00:00", true},
		{int64(75), "01:15", true},
		{870.0, "14:30", true},

		// HH:MM strings
		{"14:00", "14:00", true},
		{"8:5", "08:05", true},
		{"  9:30 ", "09:30", true},
		{"25:99", "", false},
		{"12:60", "", false},
		{"-1:00", "", false},

		// 4-digit strings
		{"0830", "08:30", true},
		{"2359", "23:59", true},
		{"2460", "", false},
		{"08300", "", false},

		// unsupported
		{"noonish", "", false},
		{true, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeClock(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeClock(%v) = (%q, %v), want (%q, %v)",
				tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeClockIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []any{510, "0830", "8:5", "14:00", 0}
	for _, in := range inputs {
		first, ok := NormalizeClock(in)
		if !ok {
			t.Fatalf("NormalizeClock(%v) failed", in)
		}
		second, ok := NormalizeClock(first)
		if !ok || second != first {
			t.Errorf("normalize(normalize(%v)) = %q, want %q unchanged", in, second, first)
		}
	}
}

func TestParseFrontmatterAcceptsBOM(t *testing.T) {
	t.Parallel()

	doc := append([]byte("\xef\xbb\xbf"), []byte("---\ntitle: BOM doc\n---\n")...)
	fm := ParseFrontmatter(doc, nil)
	if fm["title"] != "BOM doc" {
		t.Fatalf("title = %v, want BOM doc", fm["title"])
	}
}

func TestParseFrontmatterMalformedTime(t *testing.T) {
	t.Parallel()

	doc := []byte("---\ndate: 2025-06-10\nstartTime: \"25:99\"\n---\n")
	fm := ParseFrontmatter(doc, nil)
	if fm["startTime"] != nil {
		t.Fatalf("startTime = %v, want nil", fm["startTime"])
	}
}
