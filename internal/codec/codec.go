// Package codec converts between DICOM element values and plain JSON-ready
// Go values. Encoding maps parsed elements to scalars, lists, and nested
// records keyed by attribute keyword; decoding renders caller-supplied
// values into the string form DICOM expects for a given VR.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/text/encoding/charmap"

	"github.com/aotal/dicom-api-mcp-project/internal/dict"
)

var (
	tagLUTExplanation = tag.Tag{Group: 0x0028, Element: 0x3003}
	tagLUTData        = tag.Tag{Group: 0x0028, Element: 0x3006}
)

// Encode converts a single element value into a JSON-ready Go value.
// Multi-valued attributes become slices, single values become scalars,
// and absent values become nil.
func Encode(elem *dicom.Element) any {
	if elem == nil || elem.Value == nil {
		return nil
	}

	switch elem.Tag {
	case tagLUTData:
		return encodeLUTData(elem)
	case tagLUTExplanation:
		if s, ok := firstString(elem); ok {
			return ParseLUTExplanation(s)
		}
	}

	switch elem.Value.ValueType() {
	case dicom.Strings:
		return encodeStrings(elem)
	case dicom.Ints:
		return collapse(toAnySlice(intValues(elem)))
	case dicom.Floats:
		return collapse(toAnySlice(floatValues(elem)))
	case dicom.Bytes:
		return encodeBytes(elem)
	case dicom.Sequences:
		return encodeSequence(elem)
	case dicom.PixelData:
		return fmt.Sprintf("Binary pixel data (length %d), not included", elem.ValueLength)
	}
	return fmt.Sprintf("%v", elem.Value.GetValue())
}

// EncodeDataset converts every element of a dataset into a record keyed
// by attribute keyword, with pixel data elided.
func EncodeDataset(ds dicom.Dataset) map[string]any {
	return encodeElements(ds.Elements)
}

func encodeElements(elems []*dicom.Element) map[string]any {
	out := make(map[string]any, len(elems))
	for _, elem := range elems {
		if elem == nil {
			continue
		}
		out[dict.KeywordOf(elem.Tag)] = Encode(elem)
	}
	return out
}

// encodeStrings applies the numeric VR conversions before collapsing.
// IS values become integers and DS values become floats; values that do
// not parse are kept as their original strings.
func encodeStrings(elem *dicom.Element) any {
	ss, ok := elem.Value.GetValue().([]string)
	if !ok {
		return fmt.Sprintf("%v", elem.Value.GetValue())
	}

	vals := make([]any, 0, len(ss))
	for _, s := range ss {
		switch elem.RawValueRepresentation {
		case "IS":
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				vals = append(vals, n)
				continue
			}
		case "DS":
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				vals = append(vals, f)
				continue
			}
		}
		vals = append(vals, strings.TrimRight(s, "\x00 "))
	}
	return collapse(vals)
}

func encodeBytes(elem *dicom.Element) any {
	b, ok := elem.Value.GetValue().([]byte)
	if !ok {
		return nil
	}
	if s, ok := decodeText(b); ok {
		return s
	}
	return fmt.Sprintf("Binary data (length %d bytes), not included", len(b))
}

func encodeSequence(elem *dicom.Element) any {
	items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		elems, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		out = append(out, encodeElements(elems))
	}
	return out
}

// encodeLUTData summarizes LUT payloads instead of inlining them.
func encodeLUTData(elem *dicom.Element) any {
	switch elem.Value.ValueType() {
	case dicom.Ints:
		return fmt.Sprintf("Binary LUT data (length %d), not included", len(intValues(elem)))
	case dicom.Bytes:
		b, _ := elem.Value.GetValue().([]byte)
		return fmt.Sprintf("Binary LUT data (length %d), not included", len(b))
	}
	return fmt.Sprintf("Binary LUT data (length %d), not included", elem.ValueLength)
}

// Decode renders a caller-supplied value into the padded-free string form
// used on the wire for the given VR.
func Decode(vr string, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	switch vr {
	case "IS", "US", "SS", "SL", "UL":
		return decodeIntegral(vr, value)
	case "DS", "FL", "FD":
		return decodeDecimal(vr, value)
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64, float64:
		return fmt.Sprintf("%v", v), nil
	}
	return "", fmt.Errorf("cannot encode %T as VR %s", value, vr)
}

func decodeIntegral(vr string, value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("non-integral value %v for VR %s", v, vr)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return "", fmt.Errorf("value %q is not an integer for VR %s", v, vr)
		}
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("cannot encode %T as VR %s", value, vr)
}

func decodeDecimal(vr string, value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return "", fmt.Errorf("value %q is not a number for VR %s", v, vr)
		}
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("cannot encode %T as VR %s", value, vr)
}

// decodeText decodes bytes as Latin-1 when they are plausibly text.
func decodeText(b []byte) (string, bool) {
	if len(b) == 0 {
		return "", true
	}
	for _, c := range b {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			return "", false
		}
	}
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return "", false
	}
	return strings.TrimRight(s, "\x00 "), true
}

func collapse(vals []any) any {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	}
	return vals
}

func intValues(elem *dicom.Element) []int {
	v, _ := elem.Value.GetValue().([]int)
	return v
}

func floatValues(elem *dicom.Element) []float64 {
	v, _ := elem.Value.GetValue().([]float64)
	return v
}

func firstString(elem *dicom.Element) (string, bool) {
	ss, ok := elem.Value.GetValue().([]string)
	if !ok || len(ss) == 0 {
		return "", false
	}
	return ss[0], true
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
