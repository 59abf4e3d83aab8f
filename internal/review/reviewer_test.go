package review

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ngenesis/ngenesis/internal/domain"
)

func TestReviewFile_FixedPenalties(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		code      string
		wantScore int
	}{
		{
			name:      "clean script",
			filename:  "agent.py",
			code:      "try:\n    run()\nexcept Exception:\n    pass\n",
			wantScore: 100,
		},
		{
			name:      "eval and no error handling",
			filename:  "agent.py",
			code:      "eval('1+1')\n",
			wantScore: 70, // 100 - 20 - 10
		},
		{
			name:      "agentql without playwright idioms",
			filename:  "agent.py",
			code:      "import agentql\ntry:\n    go()\nexcept Exception:\n    pass\n",
			wantScore: 85, // 100 - 10 - 5
		},
		{
			name:      "long file",
			filename:  "agent.py",
			code:      "try/except " + strings.Repeat("x", 5001),
			wantScore: 95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReviewFile(tt.filename, tt.code)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestReviewFile_Deterministic(t *testing.T) {
	code := "import agentql\neval('x')\nfor i in range(3):\n    pass\n"

	first := ReviewFile("agent.py", code)
	for i := 0; i < 5; i++ {
		again := ReviewFile("agent.py", code)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("review #%d differs from first: %+v vs %+v", i, again, first)
		}
	}
}

func TestReviewFile_ScoreFloor(t *testing.T) {
	// Stack every penalty; score must not go below zero
	code := "import agentql\neval('x')" + strings.Repeat("#", 5001)
	got := ReviewFile("agent.py", code)
	if got.Score < 0 {
		t.Errorf("Score = %d, must be >= 0", got.Score)
	}
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name string
		code string
		want domain.Complexity
	}{
		{"tiny", "print('hi')", domain.ComplexityLow},
		{"many branches", strings.Repeat("if x and y:\n    pass\n", 12), domain.ComplexityHigh},
		{"long but flat", strings.Repeat("x = 1\n", 200), domain.ComplexityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyComplexity(tt.code)
			if got != tt.want {
				t.Errorf("classifyComplexity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReviewAgent_Average(t *testing.T) {
	files := []domain.FileDefinition{
		{Filename: "a.py", CodeContent: "try:\n    pass\nexcept Exception:\n    pass\n"}, // 100
		{Filename: "b.py", CodeContent: "eval('x')\n"},                                   // 70
	}

	rev := ReviewAgent(files)
	if rev.OverallScore != 85 {
		t.Errorf("OverallScore = %d, want 85", rev.OverallScore)
	}
	if len(rev.FileReviews) != 2 {
		t.Errorf("FileReviews = %d entries, want 2", len(rev.FileReviews))
	}
	if rev.Summary == "" {
		t.Error("Summary should not be empty")
	}
}
