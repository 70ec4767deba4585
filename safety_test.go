package oread

import (
	"strings"
	"testing"
)

func TestDetectCrisis(t *testing.T) {
	positive := []string{
		"I want to kill myself",
		"I've been feeling suicidal",
		"maybe everyone would be better off without me",
		"I keep thinking about hurting myself",
		"there's no reason to go on",
	}
	for _, msg := range positive {
		if !DetectCrisis(msg) {
			t.Fatalf("crisis missed: %q", msg)
		}
	}
	negative := []string{
		"this deadline is killing me",
		"I'm dying to see that movie",
		"my phone died again",
		"how was your day?",
	}
	for _, msg := range negative {
		if DetectCrisis(msg) {
			t.Fatalf("false crisis: %q", msg)
		}
	}
}

func TestDetectUnderage(t *testing.T) {
	positive := []string{
		"I'm 15",
		"im 13 years old",
		"i am a minor btw",
		"I'm in high school",
		"i'm 20 years old",
		"im 22",
		"I am 24",
	}
	for _, msg := range positive {
		if !DetectUnderage(msg) {
			t.Fatalf("underage statement missed: %q", msg)
		}
	}
	negative := []string{
		"I'm 25",
		"I'm 30",
		"I was 15 when that happened",
		"my niece is 12",
	}
	for _, msg := range negative {
		if DetectUnderage(msg) {
			t.Fatalf("false underage detection: %q", msg)
		}
	}
}

func TestRedirectGuidance(t *testing.T) {
	if got := RedirectGuidance("I'm 14"); got != AgeRedirectGuidance {
		t.Fatalf("redirect missing: %q", got)
	}
	if got := RedirectGuidance("I'm 20"); got != AgeRedirectGuidance {
		t.Fatalf("under-25 redirect missing: %q", got)
	}
	if got := RedirectGuidance("how was your day?"); got != "" {
		t.Fatalf("unexpected redirect: %q", got)
	}
}

func TestStarterMessage(t *testing.T) {
	msg := StarterMessage("Sam", 0)
	if !strings.HasPrefix(msg, StarterPrefix) {
		t.Fatalf("starter missing prefix: %q", msg)
	}
	if !strings.Contains(msg, "Sam") {
		t.Fatalf("starter missing user name: %q", msg)
	}
	if StarterMessage("Sam", 0) == StarterMessage("Sam", 1) {
		t.Fatal("topic rotation has no effect")
	}
	// Negative indexes must not panic.
	_ = StarterMessage("Sam", -3)
}
