package scoring

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-interviewer/internal/interview"
)

const validPayload = `{
	"rating": 1650.4,
	"tier": "Noteworthy",
	"verdict": "NOT HIRED",
	"summary": "  Solid fundamentals, shaky on system design.  ",
	"dimensions": [
		{"name": "communication", "score": 8, "feedback": "Clear and structured."},
		{"name": "technicalSkills", "score": 6.5, "feedback": "Knows Go well."},
		{"name": "problemSolving", "score": 7, "feedback": "Methodical."},
		{"name": "experience", "score": 5, "feedback": "Mostly side projects."},
		{"name": "cultureFit", "score": 7, "feedback": "Collaborative."}
	],
	"moments": [
		{"type": "strong_answer", "question": "Why channels?", "quote": "They make ownership explicit.", "explanation": "Precise."},
		{"type": "red_flag", "question": "Biggest failure?", "quote": "I never fail.", "explanation": "Lacks self-reflection."}
	],
	"isPartial": false,
	"note": "   "
}`

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return data
}

func TestValidateCanonicalizesValidPayload(t *testing.T) {
	t.Parallel()

	result, err := NewValidator(zap.NewNop()).Validate(decodePayload(t, validPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Rating != 1650 {
		t.Fatalf("expected rating 1650, got %d", result.Rating)
	}
	if result.Tier != interview.TierNoteworthy || result.Verdict != interview.VerdictNotHired {
		t.Fatalf("unexpected tier/verdict: %s/%s", result.Tier, result.Verdict)
	}
	if result.Summary != "Solid fundamentals, shaky on system design." {
		t.Fatalf("expected trimmed summary, got %q", result.Summary)
	}
	if len(result.Dimensions) != 5 {
		t.Fatalf("expected 5 dimensions, got %d", len(result.Dimensions))
	}
	for i, key := range interview.DimensionKeys {
		if result.Dimensions[i].Name != key {
			t.Fatalf("dimension %d: expected %s, got %s", i, key, result.Dimensions[i].Name)
		}
	}
	if len(result.Moments) != 2 || result.Moments[1].Type != interview.MomentRedFlag {
		t.Fatalf("unexpected moments: %+v", result.Moments)
	}
	if result.Note != "" {
		t.Fatalf("expected blank note to be omitted, got %q", result.Note)
	}
}

func TestValidateIsIdempotentOnCanonicalResult(t *testing.T) {
	t.Parallel()

	validator := NewValidator(zap.NewNop())
	first, err := validator.Validate(decodePayload(t, validPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Note = "Ended a bit early."

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}

	second, err := validator.Validate(decodePayload(t, string(encoded)))
	if err != nil {
		t.Fatalf("unexpected error on re-validation: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-validation changed the result:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestValidateSelfHealsTierAndVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rating  float64
		tier    any
		verdict any
		expectT interview.Tier
		expectV interview.Verdict
		logs    int
	}{
		{name: "wrong verdict", rating: 2300, tier: "Exceptional", verdict: "NOT HIRED", expectT: interview.TierExceptional, expectV: interview.VerdictHired, logs: 1},
		{name: "wrong tier", rating: 1450, tier: "Impressive", verdict: "NOT HIRED", expectT: interview.TierNoteworthy, expectV: interview.VerdictNotHired, logs: 1},
		{name: "verdict outside categories", rating: 2199.6, tier: "Exceptional", verdict: "MAYBE", expectT: interview.TierExceptional, expectV: interview.VerdictHired, logs: 1},
		{name: "non-string tier", rating: 900, tier: 3, verdict: "NOT HIRED", expectT: interview.TierDeveloping, expectV: interview.VerdictNotHired, logs: 1},
		{name: "both wrong", rating: 2199, tier: "Legendary", verdict: "HIRED", expectT: interview.TierImpressive, expectV: interview.VerdictNotHired, logs: 2},
		{name: "absent", rating: 2200, tier: nil, verdict: nil, expectT: interview.TierExceptional, expectV: interview.VerdictHired, logs: 0},
		{name: "consistent", rating: 2600, tier: "Legendary", verdict: "HIRED", expectT: interview.TierLegendary, expectV: interview.VerdictHired, logs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, observed := observer.New(zapcore.InfoLevel)
			payload := decodePayload(t, validPayload)
			payload["rating"] = tt.rating
			payload["tier"] = tt.tier
			payload["verdict"] = tt.verdict
			if tt.tier == nil {
				delete(payload, "tier")
			}
			if tt.verdict == nil {
				delete(payload, "verdict")
			}

			result, err := NewValidator(zap.New(core)).Validate(payload)
			if err != nil {
				t.Fatalf("self-healing must not fail: %v", err)
			}
			if result.Tier != tt.expectT {
				t.Fatalf("expected tier %s, got %s", tt.expectT, result.Tier)
			}
			if result.Verdict != tt.expectV {
				t.Fatalf("expected verdict %s, got %s", tt.expectV, result.Verdict)
			}

			corrections := observed.FilterMessage("scoring field corrected").All()
			if len(corrections) != tt.logs {
				t.Fatalf("expected %d correction logs, got %d", tt.logs, len(corrections))
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p map[string]any)
		reason string
	}{
		{name: "not an object", reason: "payload"},
		{name: "rating 3001", mutate: func(p map[string]any) { p["rating"] = 3001.0 }, reason: "outside"},
		{name: "rating 99", mutate: func(p map[string]any) { p["rating"] = 99.0 }, reason: "outside"},
		{name: "rating 99.6 rounds into range but is rejected", mutate: func(p map[string]any) { p["rating"] = 99.6 }, reason: "outside"},
		{name: "rating NaN", mutate: func(p map[string]any) { p["rating"] = math.NaN() }, reason: "finite"},
		{name: "rating infinite", mutate: func(p map[string]any) { p["rating"] = math.Inf(1) }, reason: "finite"},
		{name: "rating string", mutate: func(p map[string]any) { p["rating"] = "1500" }, reason: "rating"},
		{name: "rating missing", mutate: func(p map[string]any) { delete(p, "rating") }, reason: "rating"},
		{name: "summary empty", mutate: func(p map[string]any) { p["summary"] = "   " }, reason: "summary"},
		{name: "summary not string", mutate: func(p map[string]any) { p["summary"] = 5.0 }, reason: "summary"},
		{name: "dimensions not array", mutate: func(p map[string]any) { p["dimensions"] = map[string]any{} }, reason: "dimensions"},
		{name: "dimensions empty", mutate: func(p map[string]any) { p["dimensions"] = []any{} }, reason: "empty"},
		{name: "fewer than five dimensions", mutate: func(p map[string]any) { p["dimensions"] = p["dimensions"].([]any)[:4] }, reason: "missing"},
		{name: "duplicate dimension", mutate: func(p map[string]any) {
			dims := p["dimensions"].([]any)
			dims[4] = map[string]any{"name": "communication", "score": 1.0, "feedback": "again"}
		}, reason: "duplicates"},
		{name: "foreign dimension", mutate: func(p map[string]any) {
			p["dimensions"] = append(p["dimensions"].([]any), map[string]any{"name": "charisma", "score": 9.0, "feedback": "wow"})
		}, reason: "unknown name"},
		{name: "non-finite dimension score", mutate: func(p map[string]any) {
			p["dimensions"].([]any)[0].(map[string]any)["score"] = math.Inf(-1)
		}, reason: "score"},
		{name: "empty dimension feedback", mutate: func(p map[string]any) {
			p["dimensions"].([]any)[2].(map[string]any)["feedback"] = ""
		}, reason: "feedback"},
		{name: "moments missing", mutate: func(p map[string]any) { delete(p, "moments") }, reason: "moments"},
		{name: "unknown moment type", mutate: func(p map[string]any) {
			p["moments"].([]any)[0].(map[string]any)["type"] = "awkward_silence"
		}, reason: "unknown type"},
		{name: "empty moment quote", mutate: func(p map[string]any) {
			p["moments"].([]any)[1].(map[string]any)["quote"] = "  "
		}, reason: "quote"},
		{name: "moment not object", mutate: func(p map[string]any) { p["moments"] = []any{"moment"} }, reason: "moments[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var raw any = []any{"not", "an", "object"}
			if tt.mutate != nil {
				payload := decodePayload(t, validPayload)
				tt.mutate(payload)
				raw = payload
			}

			_, err := NewValidator(nil).Validate(raw)
			if !errors.Is(err, interview.ErrValidationFailed) {
				t.Fatalf("expected validation failure, got %v", err)
			}

			var vErr *interview.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(vErr.Reason, tt.reason) {
				t.Fatalf("expected reason to mention %q, got %q", tt.reason, vErr.Reason)
			}
		})
	}
}

func TestValidateLenientFields(t *testing.T) {
	t.Parallel()

	payload := decodePayload(t, validPayload)
	payload["moments"] = []any{}
	payload["isPartial"] = "true"
	payload["note"] = "  Candidate left after question 3.  "

	result, err := NewValidator(nil).Validate(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Moments) != 0 {
		t.Fatalf("expected empty moments, got %d", len(result.Moments))
	}
	if result.IsPartial {
		t.Fatalf("expected non-boolean isPartial to default to false")
	}
	if result.Note != "Candidate left after question 3." {
		t.Fatalf("unexpected note %q", result.Note)
	}

	payload["isPartial"] = true
	payload["note"] = 42.0
	result, err = NewValidator(nil).Validate(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsPartial {
		t.Fatalf("expected isPartial true")
	}
	if result.Note != "" {
		t.Fatalf("expected non-string note to be omitted")
	}
}

func TestValidateRoundsRating(t *testing.T) {
	t.Parallel()

	tests := map[float64]int{
		100:     100,
		2199.5:  2200,
		2199.49: 2199,
		3000:    3000,
	}

	for raw, want := range tests {
		payload := decodePayload(t, validPayload)
		payload["rating"] = raw
		result, err := NewValidator(nil).Validate(payload)
		if err != nil {
			t.Fatalf("rating %v: unexpected error: %v", raw, err)
		}
		if result.Rating != want {
			t.Fatalf("rating %v: expected %d, got %d", raw, want, result.Rating)
		}
		if result.Verdict != interview.DeriveVerdict(want) {
			t.Fatalf("rating %v: verdict not derived from rounded rating", raw)
		}
	}
}
