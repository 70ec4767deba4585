package oread

import (
	"context"
	"strings"
	"testing"

	"github.com/sleddd/oread-companion/generator"
	"github.com/sleddd/oread-companion/profile"
)

func testEngine(t *testing.T, gen generator.Generator) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{Generator: gen})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func echoGenerator(reply string) generator.Func {
	return func(ctx context.Context, req generator.Request) (string, error) {
		return reply, nil
	}
}

func testCharacter() *profile.Character {
	return &profile.Character{
		Name:          "Lyra",
		CompanionType: profile.TypeRomantic,
		Persona:       "A night-shift botanist.",
		SelectedTags:  []string{"warm_supportive", "respects_boundaries"},
		Interests:     []string{"orchids", "astronomy"},
	}
}

func TestRespondFullTurn(t *testing.T) {
	var captured generator.Request
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		captured = req
		return "*smiles* It was quiet. I repotted the orchids.", nil
	})
	e := testEngine(t, gen)

	resp, err := e.Respond(context.Background(), ChatRequest{
		Character: testCharacter(),
		User:      &profile.User{Name: "Sam"},
		Message:   "how was your day?",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("turn id not assigned")
	}
	if resp.Crisis {
		t.Fatal("normal turn flagged as crisis")
	}
	if !strings.Contains(resp.Text, "(smiles)") {
		t.Fatalf("reply not sanitized: %q", resp.Text)
	}
	if !strings.Contains(captured.Prompt, "You are Lyra") {
		t.Fatalf("prompt missing identity: %q", captured.Prompt)
	}
	if captured.MaxTokens == 0 || captured.Temperature == 0 {
		t.Fatalf("params not applied: %+v", captured)
	}
	if len(captured.Stop) == 0 {
		t.Fatal("stop sequences not set")
	}
}

func TestCrisisSkipsGeneration(t *testing.T) {
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		t.Fatal("generation ran for crisis message")
		return "", nil
	})
	e := testEngine(t, gen)

	resp, err := e.Respond(context.Background(), ChatRequest{
		Character: testCharacter(),
		Message:   "I've been thinking about killing myself",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !resp.Crisis || resp.Text != CrisisMessage {
		t.Fatalf("crisis reply wrong: %+v", resp)
	}
}

func TestCancelledContextDiscardsReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		cancel()
		return "a reply that must never surface", nil
	})
	e := testEngine(t, gen)

	_, err := e.Respond(ctx, ChatRequest{
		Character: testCharacter(),
		Message:   "hello",
	})
	if err == nil {
		t.Fatal("cancelled turn returned a reply")
	}
}

func TestCancelledBeforeGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		t.Fatal("generation ran after cancellation")
		return "", nil
	})
	e := testEngine(t, gen)
	if _, err := e.Respond(ctx, ChatRequest{Character: testCharacter(), Message: "hi"}); err == nil {
		t.Fatal("cancelled turn did not error")
	}
}

func TestAvoidWordsAppliedPerTurn(t *testing.T) {
	e := testEngine(t, echoGenerator("Of course, darling. I'm here."))
	char := testCharacter()

	resp, err := e.Respond(context.Background(), ChatRequest{Character: char, Message: "hey"})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(strings.ToLower(resp.Text), "darling") {
		t.Fatalf("word removed without avoid list: %q", resp.Text)
	}

	// Avoid words take effect immediately: nothing about the previous turn
	// may cache them away.
	char.AvoidWords = []string{"darling"}
	resp, err = e.Respond(context.Background(), ChatRequest{Character: char, Message: "hey"})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if strings.Contains(strings.ToLower(resp.Text), "darling") {
		t.Fatalf("avoid word survived: %q", resp.Text)
	}
}

func TestCatalogCacheInvalidation(t *testing.T) {
	e := testEngine(t, echoGenerator("ok"))
	char := testCharacter()

	first := e.catalog(char)
	if first.ByID("warm_supportive") == nil {
		t.Fatal("selected tag missing from catalog")
	}
	if first.ByID("identity_lyra") == nil {
		t.Fatal("identity chunk missing from catalog")
	}
	if again := e.catalog(char); again != first {
		t.Fatal("catalog rebuilt without profile change")
	}

	char.SelectedTags = []string{"dry_sarcastic"}
	rebuilt := e.catalog(char)
	if rebuilt == first {
		t.Fatal("catalog not rebuilt after tag change")
	}
	if rebuilt.ByID("dry_sarcastic") == nil || rebuilt.ByID("warm_supportive") != nil {
		t.Fatal("rebuilt catalog has stale tags")
	}
}

type stubMemory struct{ text string }

func (s stubMemory) Recall(context.Context, string, string) (string, error) {
	return s.text, nil
}

type stubSearch struct{ text string }

func (s stubSearch) Lookup(context.Context, string) (string, error) {
	return s.text, nil
}

func TestContextSourcesReachPrompt(t *testing.T) {
	var captured generator.Request
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		captured = req
		return "ok", nil
	})
	e, err := NewEngine(EngineConfig{
		Generator: gen,
		Memory:    stubMemory{text: "RELEVANT CONTEXT (from earlier conversations):\nPreviously, Sam mentioned: a trip"},
		Search:    stubSearch{text: "- Portland forecast: rain"},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = e.Respond(context.Background(), ChatRequest{
		Character: testCharacter(),
		User:      &profile.User{Name: "Sam"},
		Message:   "what's the weather today?",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(captured.Prompt, "a trip") {
		t.Fatalf("memory context missing from prompt:\n%s", captured.Prompt)
	}
	if !strings.Contains(captured.Prompt, "Portland forecast") {
		t.Fatalf("search context missing from prompt:\n%s", captured.Prompt)
	}
}

func TestStarterUsesStarterParams(t *testing.T) {
	var captured generator.Request
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		captured = req
		return "Hey Sam, I found a new orchid today.", nil
	})
	e := testEngine(t, gen)

	resp, err := e.Starter(context.Background(), ChatRequest{
		Character: testCharacter(),
		User:      &profile.User{Name: "Sam"},
	}, 0)
	if err != nil {
		t.Fatalf("starter: %v", err)
	}
	if captured.MaxTokens != 120 {
		t.Fatalf("starter params not applied: %+v", captured)
	}
	if resp.Params.Rule != "starter" {
		t.Fatalf("rule = %q, want starter", resp.Params.Rule)
	}
}

func TestUnderageRedirectReachesPrompt(t *testing.T) {
	var captured generator.Request
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		captured = req
		return "ok", nil
	})
	e := testEngine(t, gen)
	_, err := e.Respond(context.Background(), ChatRequest{
		Character: testCharacter(),
		Message:   "I'm 22 by the way",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(captured.Prompt, "under 25") {
		t.Fatalf("age redirect missing from prompt:\n%s", captured.Prompt)
	}
}
