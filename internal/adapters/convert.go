package adapters

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/one-byte-data/obd-dicom/dictionary/tags"
	"github.com/one-byte-data/obd-dicom/media"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aotal/dicom-api-mcp-project/internal/codec"
	"github.com/aotal/dicom-api-mcp-project/internal/dict"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// stringVRs hold character data. LT, ST, and UT may contain backslashes
// as text, so they are never split into multiple values.
var stringVRs = map[string]bool{
	"AE": true, "AS": true, "CS": true, "DA": true, "DS": true, "DT": true,
	"IS": true, "LO": true, "LT": true, "PN": true, "SH": true, "ST": true,
	"TM": true, "UC": true, "UI": true, "UR": true, "UT": true,
}

var noSplitVRs = map[string]bool{"LT": true, "ST": true, "UT": true}

// buildIdentifier renders a query descriptor into a wire dataset.
func buildIdentifier(desc *query.Descriptor) media.DcmObj {
	obj := media.NewEmptyDCMObj()
	for _, e := range desc.Entries() {
		obj.WriteString(obdTag(e.Attr), e.Value)
	}
	return obj
}

func obdTag(attr dict.Attribute) *tags.Tag {
	return &tags.Tag{
		Group:   attr.Tag.Group,
		Element: attr.Tag.Element,
		VR:      attr.VR,
		Name:    attr.Keyword,
	}
}

// tagLister is the part of media.DcmObj the converters read.
type tagLister interface {
	GetTags() []*media.DcmTag
}

// recordFromDcmObj converts a C-FIND response dataset into a result
// record. Command-group and file-meta elements are dropped.
func recordFromDcmObj(obj tagLister) models.ResultRecord {
	rec := make(models.ResultRecord)
	for _, t := range obj.GetTags() {
		if t.Group == 0x0000 || t.Group == 0x0002 || t.Group == 0xFFFE {
			continue
		}
		elem, err := elementFromDcmTag(t)
		if err != nil {
			continue
		}
		rec[dict.KeywordOf(elem.Tag)] = codec.Encode(elem)
	}
	return rec
}

// moveReportFromDcmObj extracts the status and sub-operation counters
// from a C-MOVE response. Counters absent from the message read as zero,
// which the aggregator's forward-only fold tolerates.
func moveReportFromDcmObj(obj tagLister) progress.Report {
	rep := progress.Report{Status: dimse.StatusPending}
	for _, t := range obj.GetTags() {
		if t.Group != 0x0000 {
			continue
		}
		v, ok := readUint16(t)
		if !ok {
			continue
		}
		switch t.Element {
		case 0x0900:
			rep.Status = v
		case 0x1021:
			rep.Completed = int(v)
		case 0x1022:
			rep.Failed = int(v)
		case 0x1023:
			rep.Warning = int(v)
		}
	}
	return rep
}

func readUint16(t *media.DcmTag) (uint16, bool) {
	if len(t.Data) < 2 {
		return 0, false
	}
	return byteOrder(t.BigEndian).Uint16(t.Data), true
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// elementFromDcmTag decodes one wire element into a typed element.
func elementFromDcmTag(t *media.DcmTag) (*dicom.Element, error) {
	skTag := tag.Tag{Group: t.Group, Element: t.Element}
	vr := t.VR
	if vr == "" {
		vr = dict.VROf(skTag)
	}

	val, err := valueFromBytes(vr, t.Data, t.BigEndian)
	if err != nil {
		return nil, err
	}
	return &dicom.Element{
		Tag:                    skTag,
		RawValueRepresentation: vr,
		ValueLength:            uint32(len(t.Data)),
		Value:                  val,
	}, nil
}

func valueFromBytes(vr string, data []byte, bigEndian bool) (dicom.Value, error) {
	ord := byteOrder(bigEndian)
	switch {
	case stringVRs[vr]:
		return dicom.NewValue(splitStrings(vr, data))
	case vr == "US" || vr == "SS" || vr == "UL" || vr == "SL" || vr == "AT":
		return dicom.NewValue(intsFromBytes(vr, data, ord))
	case vr == "FL" || vr == "FD":
		return dicom.NewValue(floatsFromBytes(vr, data, ord))
	case vr == "SQ":
		items, err := parseSequence(data, ord)
		if err != nil {
			return nil, err
		}
		return dicom.NewValue(items)
	default:
		// OB, OW, UN and friends stay opaque.
		return dicom.NewValue(data)
	}
}

func splitStrings(vr string, data []byte) []string {
	s := strings.TrimRight(string(data), "\x00 ")
	if s == "" {
		return nil
	}
	if noSplitVRs[vr] {
		return []string{s}
	}
	return strings.Split(s, "\\")
}

func intsFromBytes(vr string, data []byte, ord binary.ByteOrder) []int {
	var out []int
	switch vr {
	case "US", "AT":
		for i := 0; i+2 <= len(data); i += 2 {
			out = append(out, int(ord.Uint16(data[i:])))
		}
	case "SS":
		for i := 0; i+2 <= len(data); i += 2 {
			out = append(out, int(int16(ord.Uint16(data[i:]))))
		}
	case "UL":
		for i := 0; i+4 <= len(data); i += 4 {
			out = append(out, int(ord.Uint32(data[i:])))
		}
	case "SL":
		for i := 0; i+4 <= len(data); i += 4 {
			out = append(out, int(int32(ord.Uint32(data[i:]))))
		}
	}
	return out
}

func floatsFromBytes(vr string, data []byte, ord binary.ByteOrder) []float64 {
	var out []float64
	if vr == "FL" {
		for i := 0; i+4 <= len(data); i += 4 {
			out = append(out, float64(math.Float32frombits(ord.Uint32(data[i:]))))
		}
		return out
	}
	for i := 0; i+8 <= len(data); i += 8 {
		out = append(out, math.Float64frombits(ord.Uint64(data[i:])))
	}
	return out
}

const undefinedLength = 0xFFFFFFFF

// parseSequence walks the item framing of an SQ payload: items open with
// (FFFE,E000), undefined-length items close with (FFFE,E00D), and an
// undefined-length sequence closes with (FFFE,E0DD).
func parseSequence(data []byte, ord binary.ByteOrder) ([][]*dicom.Element, error) {
	var items [][]*dicom.Element
	pos := 0
	for pos+8 <= len(data) {
		group := ord.Uint16(data[pos:])
		element := ord.Uint16(data[pos+2:])
		length := ord.Uint32(data[pos+4:])
		pos += 8

		switch {
		case group == 0xFFFE && element == 0xE0DD:
			return items, nil
		case group == 0xFFFE && element == 0xE000:
			var (
				elems []*dicom.Element
				n     int
				err   error
			)
			if length == undefinedLength {
				elems, n, err = parseItemElements(data[pos:], ord, true)
			} else {
				if pos+int(length) > len(data) {
					return nil, fmt.Errorf("sequence item length %d overruns payload", length)
				}
				elems, n, err = parseItemElements(data[pos:pos+int(length)], ord, false)
			}
			if err != nil {
				return nil, err
			}
			pos += n
			items = append(items, elems)
		default:
			return nil, fmt.Errorf("unexpected tag (%04X,%04X) in sequence framing", group, element)
		}
	}
	return items, nil
}

// parseItemElements decodes the elements of one item. When delimited is
// true it stops at the item delimitation tag and reports the bytes
// consumed including the delimiter.
func parseItemElements(data []byte, ord binary.ByteOrder, delimited bool) ([]*dicom.Element, int, error) {
	var elems []*dicom.Element
	pos := 0
	for pos+8 <= len(data) {
		group := ord.Uint16(data[pos:])
		element := ord.Uint16(data[pos+2:])

		if delimited && group == 0xFFFE && element == 0xE00D {
			return elems, pos + 8, nil
		}

		vr, length, hdr := readElementHeader(data[pos:], ord)
		pos += hdr

		skTag := tag.Tag{Group: group, Element: element}
		if vr == "" {
			vr = dict.VROf(skTag)
		}

		var body []byte
		if length == undefinedLength {
			if vr != "SQ" {
				return nil, 0, fmt.Errorf("undefined length on non-sequence element (%04X,%04X)", group, element)
			}
			end, err := findSequenceEnd(data[pos:], ord)
			if err != nil {
				return nil, 0, err
			}
			body = data[pos : pos+end]
			pos += end + 8
		} else {
			if pos+int(length) > len(data) {
				return nil, 0, fmt.Errorf("element (%04X,%04X) length %d overruns item", group, element, length)
			}
			body = data[pos : pos+int(length)]
			pos += int(length)
		}

		val, err := valueFromBytes(vr, body, ord == binary.BigEndian)
		if err != nil {
			return nil, 0, err
		}
		elems = append(elems, &dicom.Element{
			Tag:                    skTag,
			RawValueRepresentation: vr,
			ValueLength:            uint32(len(body)),
			Value:                  val,
		})
	}
	if delimited {
		return nil, 0, fmt.Errorf("item delimitation tag missing")
	}
	return elems, pos, nil
}

// readElementHeader decodes an element header after the tag pair. It
// detects explicit VR by checking for two uppercase VR letters, falling
// back to implicit VR with a 4-byte length. Returns the VR (empty for
// implicit), the value length, and the full header size.
func readElementHeader(data []byte, ord binary.ByteOrder) (string, uint32, int) {
	if len(data) >= 8 && isVRLetter(data[4]) && isVRLetter(data[5]) {
		vr := string(data[4:6])
		switch vr {
		case "OB", "OW", "OF", "OD", "OL", "SQ", "UC", "UR", "UT", "UN":
			if len(data) >= 12 {
				return vr, ord.Uint32(data[8:12]), 12
			}
		default:
			return vr, uint32(ord.Uint16(data[6:8])), 8
		}
	}
	if len(data) >= 8 {
		return "", ord.Uint32(data[4:8]), 8
	}
	return "", 0, len(data)
}

func isVRLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// findSequenceEnd locates the sequence delimitation tag of an
// undefined-length nested sequence, honoring nested item framing.
func findSequenceEnd(data []byte, ord binary.ByteOrder) (int, error) {
	pos := 0
	depth := 0
	for pos+8 <= len(data) {
		group := ord.Uint16(data[pos:])
		element := ord.Uint16(data[pos+2:])
		length := ord.Uint32(data[pos+4:])

		if group == 0xFFFE {
			switch element {
			case 0xE0DD:
				if depth == 0 {
					return pos, nil
				}
				depth--
				pos += 8
				continue
			case 0xE000:
				pos += 8
				if length != undefinedLength {
					pos += int(length)
				}
				continue
			case 0xE00D:
				pos += 8
				continue
			}
		}

		vr, elen, hdr := readElementHeader(data[pos:], ord)
		pos += hdr
		if elen == undefinedLength {
			if vr != "SQ" {
				return 0, fmt.Errorf("undefined length on non-sequence element (%04X,%04X)", group, element)
			}
			depth++
			continue
		}
		pos += int(elen)
	}
	return 0, fmt.Errorf("sequence delimitation tag missing")
}
