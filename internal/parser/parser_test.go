package parser

import "testing"

func TestClassifierIsTotal(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"ls -la",
		`ls "a b".txt`,
		"ls | wc -l",
		"cat a.txt | grep foo | wc -l",
		"fs.listDir('.')",
		"for x in range(10): pass",
		"echo 'hello | world'",
		"ls ||",
		`echo "unterminated`,
	}
	for _, in := range inputs {
		plan, err := Parse(in)
		if err == nil && plan == nil {
			t.Fatalf("Parse(%q) returned nil plan with nil error", in)
		}
		if err != nil {
			if _, ok := err.(interface{ Error() string }); !ok {
				t.Fatalf("Parse(%q) returned non-error-shaped error", in)
			}
		}
	}
}

func TestQuotedArgumentTokenizesAsSingleArg(t *testing.T) {
	plan, err := Parse(`ls "a b".txt`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeTraditional {
		t.Fatalf("expected traditional mode, got %v", plan.Mode)
	}
	if len(plan.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(plan.Commands))
	}
	cmd := plan.Commands[0]
	if cmd.Name != "ls" {
		t.Fatalf("expected command name ls, got %q", cmd.Name)
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "a b.txt" {
		t.Fatalf("expected single arg %q, got %v", "a b.txt", cmd.Args)
	}
}

func TestPipelineSplitsIntoCommands(t *testing.T) {
	plan, err := Parse("cat a.txt | grep foo | wc -l")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeTraditional {
		t.Fatalf("expected traditional mode, got %v", plan.Mode)
	}
	if len(plan.Commands) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(plan.Commands))
	}
	if plan.Commands[0].Name != "cat" || plan.Commands[1].Name != "grep" || plan.Commands[2].Name != "wc" {
		t.Fatalf("unexpected command sequence: %+v", plan.Commands)
	}
}

func TestLogicalOrIsNotAPipeline(t *testing.T) {
	plan, err := Parse("true || echo fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeTraditional {
		t.Fatalf("expected traditional mode, got %v", plan.Mode)
	}
	if len(plan.Commands) != 1 {
		t.Fatalf("expected || to not split into a pipeline, got %d commands", len(plan.Commands))
	}
}

func TestDottedMethodCallIsScripted(t *testing.T) {
	plan, err := Parse(`fs.listDir(".")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeScripted {
		t.Fatalf("expected scripted mode, got %v", plan.Mode)
	}
	if plan.Script != `fs.listDir(".")` {
		t.Fatalf("expected script to equal input, got %q", plan.Script)
	}
}

func TestMixedPipelinePromotesToScripted(t *testing.T) {
	plan, err := Parse(`cat a.txt | proc.exec("wc", ["-l"])`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeScripted {
		t.Fatalf("expected a pipeline with any scripted segment to promote to scripted, got %v", plan.Mode)
	}
}

func TestKeywordInsideStringIsNotScripted(t *testing.T) {
	plan, err := Parse(`echo "for loop demo"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeTraditional {
		t.Fatalf("expected quoted keyword text to stay traditional, got %v", plan.Mode)
	}
}

func TestLongFlagWithValue(t *testing.T) {
	plan, err := Parse("grep --color=auto foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := plan.Commands[0]
	if v, ok := cmd.Flags["color"]; !ok || v != "auto" {
		t.Fatalf("expected flag color=auto, got %v", cmd.Flags)
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "foo" {
		t.Fatalf("expected positional arg foo, got %v", cmd.Args)
	}
}

func TestBundledShortFlags(t *testing.T) {
	plan, err := Parse("ls -la")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := plan.Commands[0]
	if _, ok := cmd.Flags["l"]; !ok {
		t.Fatalf("expected flag l set, got %v", cmd.Flags)
	}
	if _, ok := cmd.Flags["a"]; !ok {
		t.Fatalf("expected flag a set, got %v", cmd.Flags)
	}
}

func TestBackgroundSuffix(t *testing.T) {
	plan, err := Parse("sleep 10 &")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := plan.Commands[0]
	if !cmd.Background {
		t.Fatal("expected Background to be true")
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "10" {
		t.Fatalf("expected arg 10, got %v", cmd.Args)
	}
}

func TestUnterminatedQuoteIsSyntaxError(t *testing.T) {
	_, err := Parse(`echo "unterminated`)
	if err == nil {
		t.Fatal("expected syntax error for unterminated quote")
	}
}

func TestValidAndSyntaxErrorsAgree(t *testing.T) {
	if !Valid("ls -la") {
		t.Fatal("expected ls -la to be valid")
	}
	if len(SyntaxErrors("ls -la")) != 0 {
		t.Fatal("expected no syntax errors for ls -la")
	}
	if Valid(`echo "unterminated`) {
		t.Fatal("expected unterminated quote to be invalid")
	}
	if len(SyntaxErrors(`echo "unterminated`)) == 0 {
		t.Fatal("expected syntax errors for unterminated quote")
	}
}

func TestCompletionsPrefixMatch(t *testing.T) {
	known := []string{"echo", "env", "exit", "ls"}
	got := Completions("ec", 2, known)
	if len(got) != 1 || got[0] != "echo" {
		t.Fatalf("expected [echo], got %v", got)
	}
}

func TestHighlightMarksScriptedKeyword(t *testing.T) {
	spans := Highlight("for x in range(3): pass")
	foundFor, foundPass := false, false
	for _, s := range spans {
		switch s.Role {
		case "keyword":
			if s.Start == 0 && s.End == 3 {
				foundFor = true
			}
		}
	}
	_ = foundPass
	if !foundFor {
		t.Fatalf("expected a keyword span for 'for', got %+v", spans)
	}
}

func TestEmptyInputIsTraditionalNoop(t *testing.T) {
	plan, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != ModeTraditional || len(plan.Commands) != 0 {
		t.Fatalf("expected empty traditional plan, got %+v", plan)
	}
}
