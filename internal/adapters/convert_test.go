package adapters

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/one-byte-data/obd-dicom/media"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

type fakeDataset struct {
	tags []*media.DcmTag
}

func (f *fakeDataset) GetTags() []*media.DcmTag {
	return f.tags
}

func strTag(group, element uint16, vr, value string) *media.DcmTag {
	return &media.DcmTag{
		Group:   group,
		Element: element,
		VR:      vr,
		Length:  uint32(len(value)),
		Data:    []byte(value),
	}
}

func TestElementFromDcmTagString(t *testing.T) {
	elem, err := elementFromDcmTag(strTag(0x0010, 0x0010, "PN", "DOE^JOHN "))
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	if elem.Tag != tag.PatientName {
		t.Errorf("tag = %v", elem.Tag)
	}
	got, _ := elem.Value.GetValue().([]string)
	if !reflect.DeepEqual(got, []string{"DOE^JOHN"}) {
		t.Errorf("value = %v, want trailing space trimmed", got)
	}
}

func TestElementFromDcmTagMultiValue(t *testing.T) {
	elem, err := elementFromDcmTag(strTag(0x0008, 0x0061, "CS", `CT\MR`))
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	got, _ := elem.Value.GetValue().([]string)
	if !reflect.DeepEqual(got, []string{"CT", "MR"}) {
		t.Errorf("value = %v", got)
	}
}

func TestElementFromDcmTagBinary(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:], 512)
	binary.LittleEndian.PutUint16(data[2:], 512)
	elem, err := elementFromDcmTag(&media.DcmTag{
		Group: 0x0028, Element: 0x0010, VR: "US", Length: 4, Data: data,
	})
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	got, _ := elem.Value.GetValue().([]int)
	if !reflect.DeepEqual(got, []int{512, 512}) {
		t.Errorf("value = %v", got)
	}
}

func TestElementFromDcmTagImplicitVRFallsBackToDictionary(t *testing.T) {
	elem, err := elementFromDcmTag(strTag(0x0010, 0x0020, "", "12345"))
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	if elem.RawValueRepresentation != "LO" {
		t.Errorf("VR = %q, want LO from dictionary", elem.RawValueRepresentation)
	}
}

// buildItem encodes one explicit-VR element with a short-form length.
func buildItem(group, element uint16, vr, value string) []byte {
	b := make([]byte, 8+len(value))
	binary.LittleEndian.PutUint16(b[0:], group)
	binary.LittleEndian.PutUint16(b[2:], element)
	copy(b[4:6], vr)
	binary.LittleEndian.PutUint16(b[6:], uint16(len(value)))
	copy(b[8:], value)
	return b
}

func TestElementFromDcmTagSequence(t *testing.T) {
	inner := append(
		buildItem(0x0008, 0x0100, "SH", "121327"),
		buildItem(0x0008, 0x0104, "LO", "Full fidelity image ")...,
	)

	// Item header with defined length, then an undefined-length item
	// closed by the item delimiter.
	seq := make([]byte, 0, 64)
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint16(hdr[0:], 0xFFFE)
	binary.LittleEndian.PutUint16(hdr[2:], 0xE000)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(inner)))
	seq = append(seq, hdr...)
	seq = append(seq, inner...)

	elem, err := elementFromDcmTag(&media.DcmTag{
		Group: 0x0008, Element: 0x9215, VR: "SQ", Length: uint32(len(seq)), Data: seq,
	})
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	if elem.Value.ValueType() != dicom.Sequences {
		t.Fatalf("value type = %v, want Sequences", elem.Value.ValueType())
	}
	items, _ := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	elems, _ := items[0].GetValue().([]*dicom.Element)
	if len(elems) != 2 {
		t.Fatalf("item elements = %d, want 2", len(elems))
	}
	if got, _ := elems[0].Value.GetValue().([]string); !reflect.DeepEqual(got, []string{"121327"}) {
		t.Errorf("CodeValue = %v", got)
	}
}

func TestElementFromDcmTagSequenceUndefinedItemLength(t *testing.T) {
	inner := buildItem(0x0008, 0x0100, "SH", "121327")

	seq := make([]byte, 8)
	binary.LittleEndian.PutUint16(seq[0:], 0xFFFE)
	binary.LittleEndian.PutUint16(seq[2:], 0xE000)
	binary.LittleEndian.PutUint32(seq[4:], undefinedLength)
	seq = append(seq, inner...)

	delim := make([]byte, 8)
	binary.LittleEndian.PutUint16(delim[0:], 0xFFFE)
	binary.LittleEndian.PutUint16(delim[2:], 0xE00D)
	seq = append(seq, delim...)

	elem, err := elementFromDcmTag(&media.DcmTag{
		Group: 0x0040, Element: 0x0275, VR: "SQ", Length: uint32(len(seq)), Data: seq,
	})
	if err != nil {
		t.Fatalf("elementFromDcmTag: %v", err)
	}
	items, _ := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestRecordFromDcmObjSkipsCommandGroup(t *testing.T) {
	statusData := make([]byte, 2)
	binary.LittleEndian.PutUint16(statusData, 0x0000)

	rec := recordFromDcmObj(&fakeDataset{tags: []*media.DcmTag{
		{Group: 0x0000, Element: 0x0900, VR: "US", Length: 2, Data: statusData},
		strTag(0x0010, 0x0020, "LO", "12345"),
		strTag(0x0020, 0x000D, "UI", "1.2.3"),
	}})

	if len(rec) != 2 {
		t.Fatalf("record = %v, want 2 attributes", rec)
	}
	if rec["PatientID"] != "12345" {
		t.Errorf("PatientID = %v", rec["PatientID"])
	}
	if rec["StudyInstanceUID"] != "1.2.3" {
		t.Errorf("StudyInstanceUID = %v", rec["StudyInstanceUID"])
	}
}

func TestMoveReportFromDcmObj(t *testing.T) {
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}
	rep := moveReportFromDcmObj(&fakeDataset{tags: []*media.DcmTag{
		{Group: 0x0000, Element: 0x0900, VR: "US", Length: 2, Data: u16(0xFF00)},
		{Group: 0x0000, Element: 0x1021, VR: "US", Length: 2, Data: u16(3)},
		{Group: 0x0000, Element: 0x1022, VR: "US", Length: 2, Data: u16(1)},
		{Group: 0x0000, Element: 0x1023, VR: "US", Length: 2, Data: u16(2)},
	}})

	if rep.Status != 0xFF00 {
		t.Errorf("status = 0x%04X", rep.Status)
	}
	if rep.Completed != 3 || rep.Failed != 1 || rep.Warning != 2 {
		t.Errorf("counters = %+v", rep)
	}
}

func TestMoveReportDefaultsToPending(t *testing.T) {
	rep := moveReportFromDcmObj(&fakeDataset{})
	if rep.Status != dimse.StatusPending {
		t.Errorf("status = 0x%04X, want pending", rep.Status)
	}
}
