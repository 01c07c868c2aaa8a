package codec

import (
	"regexp"
	"strconv"
	"strings"
)

// LUTExplanation is the structured rendering of the free-text
// LUTExplanation attribute emitted by calibration-aware modalities,
// e.g. "Kerma uGy (SF=100) InCalibRange:1.00-54.56 OutLUTRange:100-5456".
type LUTExplanation struct {
	FullText     string    `json:"full_text"`
	Explanation  string    `json:"explanation,omitempty"`
	InCalibRange []float64 `json:"in_calib_range,omitempty"`
	OutLUTRange  []float64 `json:"out_lut_range,omitempty"`
}

var lutExplanationRe = regexp.MustCompile(`^(.*?)(?:InCalibRange:\s*([0-9.\-]+))?\s*(?:OutLUTRange:\s*([0-9.\-]+))?$`)

// ParseLUTExplanation splits a LUTExplanation string into its descriptive
// text and the embedded calibration ranges. Text without range markers is
// preserved verbatim in Explanation.
func ParseLUTExplanation(s string) LUTExplanation {
	out := LUTExplanation{FullText: s}
	m := lutExplanationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		out.Explanation = strings.TrimSpace(s)
		return out
	}
	out.Explanation = strings.TrimSpace(m[1])
	out.InCalibRange = parseRange(m[2])
	out.OutLUTRange = parseRange(m[3])
	return out
}

// parseRange converts "1.0-5.5" to [1.0, 5.5]. A lone number N becomes
// [N, N]. Anything else yields nil.
func parseRange(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil
		}
		return []float64{v, v}
	case 2:
		lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		return []float64{lo, hi}
	}
	return nil
}
