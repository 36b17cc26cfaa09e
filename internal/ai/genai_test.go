package ai

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestToContentsMapsRoles(t *testing.T) {
	contents := toContents([]Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	})
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) || contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("roles = %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[1].Parts[0].Text != "hi there" {
		t.Fatalf("text = %q", contents[1].Parts[0].Text)
	}
}

func TestToConfig(t *testing.T) {
	plain := toConfig(Request{})
	if plain.SystemInstruction != nil || len(plain.Tools) != 0 {
		t.Fatalf("empty request should produce an empty config: %+v", plain)
	}

	grounded := toConfig(Request{System: "be brief", Search: true})
	if grounded.SystemInstruction == nil || len(grounded.Tools) != 1 || grounded.Tools[0].GoogleSearch == nil {
		t.Fatalf("expected system instruction and search tool: %+v", grounded)
	}
}

func TestNewGenAIRequiresKey(t *testing.T) {
	if _, err := NewGenAI(context.Background(), "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("NewGenAI() error = %v, want ErrNotConfigured", err)
	}
}

func TestDisabledClient(t *testing.T) {
	var client Client = Disabled{}
	if _, err := client.Generate(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := client.Stream(context.Background(), Request{}, func(string) error { return nil }); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Stream() error = %v", err)
	}
}
