package llm

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	logx "github.com/lenden-assist/server/pkg/logger"
)

const (
	recDelim = "##"
	tupDelim = "<||>"
	endDelim = "<|COMPLETE|>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024
	maxRecords    = 50
	maxTupleLen   = 1024
	maxErrSnippet = 200
)

// ParseClassification extracts intent records from the model's delimited
// output. Malformed records are skipped and logged; the function never fails,
// an unparseable response simply yields zero labels.
func ParseClassification(content string) []LabelScore {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "classification_parser").
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	// honor completion delimiter if present
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}

	var scores []LabelScore
	records := strings.Split(content, recDelim)
	for i, rec := range records {
		if i >= maxRecords {
			logx.Warn().
				Str("component", "classification_parser").
				Int("max_records", maxRecords).
				Msg("record processing capped")
			break
		}
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}

		score, ok := parseIntentRecord(rec)
		if !ok {
			logx.Warn().
				Str("component", "classification_parser").
				Str("record", safeSnippet(rec)).
				Msg("skipping malformed intent record")
			continue
		}
		scores = append(scores, score)
	}
	return scores
}

// parseIntentRecord parses a single "(intent<||>label<||>confidence)" tuple.
func parseIntentRecord(s string) (LabelScore, bool) {
	if len(s) < 2 || len(s) > maxTupleLen {
		return LabelScore{}, false
	}
	if s[0] != '(' || s[len(s)-1] != ')' {
		return LabelScore{}, false
	}
	parts := strings.Split(s[1:len(s)-1], tupDelim)
	if len(parts) != 3 || strings.TrimSpace(parts[0]) != "intent" {
		return LabelScore{}, false
	}

	label := strings.ToLower(strings.TrimSpace(parts[1]))
	if label == "" {
		return LabelScore{}, false
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || math.IsNaN(conf) || math.IsInf(conf, 0) || conf < 0 || conf > 1 {
		return LabelScore{}, false
	}

	return LabelScore{Label: label, Confidence: conf}, true
}

var confidenceLine = regexp.MustCompile(`(?mi)^\s*confidence:\s*([0-9]*\.?[0-9]+)\s*$`)

// ExtractConfidence pulls the trailing "CONFIDENCE: <0-1>" line out of a
// completion, returning the cleaned text and the clamped value. When the
// model omits the line the fallback applies.
func ExtractConfidence(text string, fallback float64) (string, float64) {
	matches := confidenceLine.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), fallback
	}

	last := matches[len(matches)-1]
	raw := text[last[2]:last[3]]
	cleaned := strings.TrimSpace(text[:last[0]] + text[last[1]:])

	conf, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return cleaned, fallback
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return cleaned, conf
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
