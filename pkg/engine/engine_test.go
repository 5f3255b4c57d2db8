package engine

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	wg, evalErrs, err := eng.Evaluate("")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if wg != nil {
		t.Fatal("expected nil waveguide for empty source")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for empty source")
	}
	if !strings.Contains(evalErrs[0].Message, "no waveguide") {
		t.Errorf("unexpected message: %q", evalErrs[0].Message)
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng := NewEngine()

	wg, evalErrs, err := eng.Evaluate("   \n\t  \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if wg != nil {
		t.Fatal("expected nil waveguide for whitespace source")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for whitespace source")
	}
}

func TestEvaluateExpressionWithoutWaveguide(t *testing.T) {
	eng := NewEngine()

	// Valid Lisp that never calls (waveguide ...).
	wg, evalErrs, err := eng.Evaluate("(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if wg != nil {
		t.Fatal("expected nil waveguide")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error when no waveguide is defined")
	}
	if !strings.Contains(evalErrs[0].Message, "no waveguide") {
		t.Errorf("unexpected message: %q", evalErrs[0].Message)
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	// Unmatched paren is a parse error.
	wg, evalErrs, err := eng.Evaluate("(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if wg != nil {
		t.Fatal("expected nil waveguide on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine()

	wg, evalErrs, err := eng.Evaluate("(+ 1 undefined-symbol)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if wg != nil {
		t.Fatal("expected nil waveguide on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()

	source := `
(def lat (lattice-square :a 295e-9))
(def c (crystal :lattice lat
                :background (material :eps 12.2521)
                :features (list (circle :fill 0.16 :lattice lat :material (air)))))
(waveguide :cladding (air)
           :layers (list (layer :name "pc" :thickness 220e-9
                                :material (material :eps 12.2521)
                                :crystal c)))
`
	var firstThickness float64
	for i := 0; i < 5; i++ {
		wg, evalErrs, err := eng.Evaluate(source)
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("iteration %d: unexpected eval errors: %v", i, evalErrs)
		}
		if wg == nil {
			t.Fatalf("iteration %d: expected non-nil waveguide", i)
		}
		if i == 0 {
			firstThickness = wg.Stack.Thickness()
		} else if wg.Stack.Thickness() != firstThickness {
			t.Errorf("iteration %d: thickness %g differs from first %g",
				i, wg.Stack.Thickness(), firstThickness)
		}
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Col: 0, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	// No line info.
	e2 := EvalError{Line: 0, Col: 0, Message: "no location"}
	s2 := e2.Error()
	if strings.Contains(s2, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s2)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	// Test the timeout plumbing directly with a channel that never sends,
	// rather than constructing a script that actually runs for EvalTimeout.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult)

	done := make(chan struct{})
	var resultErr error

	go func() {
		defer close(done)
		_, _, resultErr = waitWithTimeout(ch, 1, &mu, &gen)
	}()

	select {
	case <-done:
		if resultErr == nil {
			t.Fatal("expected timeout error, got nil")
		}
		if !strings.Contains(resultErr.Error(), "timed out") {
			t.Errorf("expected timeout error message, got: %v", resultErr)
		}
	case <-time.After(EvalTimeout + 2*time.Second):
		t.Fatal("test itself timed out waiting for evaluation timeout")
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // current generation

	ch := make(chan evalResult, 1)
	ch <- evalResult{}

	// Pass generation 1 (stale).
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

// Separate Engine instances never supersede each other; concurrent
// evaluations on independent engines all succeed.
func TestIndependentEnginesEvaluateConcurrently(t *testing.T) {
	const source = `
		(waveguide
			:layers (list
				(layer :name "slab" :thickness 220e-9
					:material (material :eps 12.7449))))`

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, evalErrs, err := NewEngine().Evaluate(source)
			if err != nil {
				errs <- err
				return
			}
			if len(evalErrs) != 0 {
				errs <- fmt.Errorf("eval errors: %v", evalErrs)
				return
			}
			if got == nil {
				errs <- fmt.Errorf("nil waveguide")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent evaluate: %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
