package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

const maxBalanceAttempts = 8

var (
	fenceOpen    = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*")
	fenceClose   = regexp.MustCompile("(?s)\\s*```\\s*$")
	outermostObj = regexp.MustCompile(`(?s)\{.*\}`)

	errNoObject = errors.New("no JSON object in model output")
)

// ParseJudgment recovers a judgment from model output. The steps are: strip code
// fences, parse, parse the outermost {...} span, then parse after closing any
// unterminated strings, arrays and objects.
func ParseJudgment(raw string) (domain.Judgment, error) {
	obj, err := recoverObject(raw)
	if err != nil {
		return domain.Judgment{}, err
	}
	return judgmentFromMap(obj), nil
}

func recoverObject(raw string) (map[string]any, error) {
	text := fenceClose.ReplaceAllString(fenceOpen.ReplaceAllString(raw, ""), "")
	text = strings.TrimSpace(text)

	if obj, err := decodeObject(text); err == nil {
		return obj, nil
	}

	if span := outermostObj.FindString(text); span != "" {
		if obj, err := decodeObject(span); err == nil {
			return obj, nil
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, errNoObject
	}
	candidate := text[start:]
	for attempt := 0; attempt < maxBalanceAttempts; attempt++ {
		if obj, err := decodeObject(balance(candidate)); err == nil {
			return obj, nil
		}
		// drop the last, probably partial, member and try again
		comma := strings.LastIndexByte(candidate, ',')
		if comma <= 0 {
			break
		}
		candidate = candidate[:comma]
	}
	return nil, fmt.Errorf("unrecoverable model output (%d bytes)", len(raw))
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoObject
	}
	return obj, nil
}

// balance closes an open string and every open bracket or brace, in nesting order.
func balance(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if escaped {
		trimmed := strings.TrimSuffix(b.String(), `\`)
		b.Reset()
		b.WriteString(trimmed)
	}
	if inString {
		b.WriteByte('"')
	}

	out := strings.TrimRight(b.String(), " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	var closer strings.Builder
	closer.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closer.WriteByte('}')
		} else {
			closer.WriteByte(']')
		}
	}
	return closer.String()
}

func judgmentFromMap(m map[string]any) domain.Judgment {
	j := domain.Judgment{
		IsJobApplication: asBool(field(m, "isJobApplication", "is_job_application")),
		Company:          asString(field(m, "company")),
		Position:         asString(field(m, "position", "role", "jobTitle")),
		Status:           domain.ApplicationStatus(asString(field(m, "status"))),
		Sentiment:        domain.Sentiment(asString(field(m, "sentiment"))),
		Urgency:          domain.Urgency(asString(field(m, "urgency"))),
		NextAction:       asString(field(m, "nextAction", "next_action")),
		ImportantDates:   asStrings(field(m, "importantDates", "important_dates")),
		Confidence:       asConfidence(field(m, "confidence")),
		KeyDetails:       asString(field(m, "keyDetails", "key_details")),
	}
	return j.Normalize()
}

func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// asConfidence accepts 0..1 numbers, numeric strings and 0..100 percentages.
func asConfidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
		if strings.HasSuffix(strings.TrimSpace(t), "%") {
			f /= 100
		}
	default:
		return 0
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	return f
}
