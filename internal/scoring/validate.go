package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/metrics"
)

// Validator turns an untrusted scoring payload into a canonical result.
// Tier and verdict are always derived from the rating; the raw values are
// read only to log disagreements.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate checks raw against the result schema. Any structural violation is
// reported as *interview.ValidationError.
func (v *Validator) Validate(raw any) (*interview.ScoringResult, error) {
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("payload is %s, expected an object", describe(raw))
	}

	ratingValue, ok := number(data["rating"])
	if !ok {
		return nil, invalid("rating is %s, expected a finite number", describe(data["rating"]))
	}
	if ratingValue < interview.MinRating || ratingValue > interview.MaxRating {
		return nil, invalid("rating %v is outside [%d, %d]", ratingValue, interview.MinRating, interview.MaxRating)
	}
	rating := int(math.Round(ratingValue))

	tier := interview.DeriveTier(rating)
	v.heal("tier", data["tier"], string(tier), rating)

	verdict := interview.DeriveVerdict(rating)
	v.heal("verdict", data["verdict"], string(verdict), rating)

	summary, ok := nonEmptyString(data["summary"])
	if !ok {
		return nil, invalid("summary is missing or empty")
	}

	dimensions, err := validateDimensions(data["dimensions"])
	if err != nil {
		return nil, err
	}

	moments, err := validateMoments(data["moments"])
	if err != nil {
		return nil, err
	}

	isPartial, _ := data["isPartial"].(bool)

	result := &interview.ScoringResult{
		Rating:     rating,
		Tier:       tier,
		Verdict:    verdict,
		Summary:    summary,
		Dimensions: dimensions,
		Moments:    moments,
		IsPartial:  isPartial,
	}
	if note, ok := nonEmptyString(data["note"]); ok {
		result.Note = note
	}

	return result, nil
}

func (v *Validator) heal(field string, raw any, derived string, rating int) {
	if raw == nil {
		return
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == derived {
		return
	}

	metrics.ObserveCorrection(field)
	v.logger.Info("scoring field corrected",
		zap.String("field", field),
		zap.String("raw", fmt.Sprint(raw)),
		zap.String("derived", derived),
		zap.Int("rating", rating),
	)
}

func validateDimensions(raw any) ([]interview.Dimension, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid("dimensions is %s, expected an array", describe(raw))
	}
	if len(items) == 0 {
		return nil, invalid("dimensions is empty")
	}

	byKey := make(map[interview.DimensionKey]interview.Dimension, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("dimensions[%d] is %s, expected an object", i, describe(item))
		}

		name, _ := entry["name"].(string)
		name = strings.TrimSpace(name)
		if !interview.IsDimensionKey(name) {
			return nil, invalid("dimensions[%d] has unknown name %q", i, name)
		}
		key := interview.DimensionKey(name)
		if _, dup := byKey[key]; dup {
			return nil, invalid("dimensions[%d] duplicates %q", i, name)
		}

		score, ok := number(entry["score"])
		if !ok {
			return nil, invalid("dimensions[%d] score is %s, expected a finite number", i, describe(entry["score"]))
		}

		feedback, ok := nonEmptyString(entry["feedback"])
		if !ok {
			return nil, invalid("dimensions[%d] feedback is missing or empty", i)
		}

		byKey[key] = interview.Dimension{Name: key, Score: score, Feedback: feedback}
	}

	dimensions := make([]interview.Dimension, 0, len(interview.DimensionKeys))
	for _, key := range interview.DimensionKeys {
		dimension, ok := byKey[key]
		if !ok {
			return nil, invalid("dimensions is missing %q", key)
		}
		dimensions = append(dimensions, dimension)
	}
	return dimensions, nil
}

// validateMoments accepts an empty array: fewer moments than the prompt asks
// for is not a structural violation.
func validateMoments(raw any) ([]interview.Moment, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid("moments is %s, expected an array", describe(raw))
	}

	moments := make([]interview.Moment, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("moments[%d] is %s, expected an object", i, describe(item))
		}

		typ, _ := entry["type"].(string)
		typ = strings.TrimSpace(typ)
		if !interview.IsMomentType(typ) {
			return nil, invalid("moments[%d] has unknown type %q", i, typ)
		}

		moment := interview.Moment{Type: interview.MomentType(typ)}
		for _, field := range []struct {
			name string
			dst  *string
		}{
			{"question", &moment.Question},
			{"quote", &moment.Quote},
			{"explanation", &moment.Explanation},
		} {
			value, ok := nonEmptyString(entry[field.name])
			if !ok {
				return nil, invalid("moments[%d] %s is missing or empty", i, field.name)
			}
			*field.dst = value
		}

		moments = append(moments, moment)
	}
	return moments, nil
}

func invalid(format string, args ...any) error {
	return &interview.ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// number accepts JSON numbers only; numeric strings are rejected.
func number(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "missing"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "not finite"
		}
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
