// Package query assembles C-FIND identifier datasets. A Descriptor is an
// ordered list of attribute entries with the hierarchy keys for its level
// locked so caller-supplied filters cannot corrupt them.
package query

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aotal/dicom-api-mcp-project/internal/codec"
	"github.com/aotal/dicom-api-mcp-project/internal/dict"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
)

// Entry is one attribute of a query identifier. An empty Value requests
// the attribute back as a return key (universal match).
type Entry struct {
	Attr  dict.Attribute
	Value string
}

// Descriptor is an ordered query identifier for one Q/R level.
type Descriptor struct {
	Level   models.QueryLevel
	entries []Entry
	index   map[tag.Tag]int
	locked  map[tag.Tag]bool
}

// Params carries everything needed to build a query identifier.
type Params struct {
	Level             models.QueryLevel
	StudyInstanceUID  string
	SeriesInstanceUID string

	// Named are keyword-keyed filters from the typed request fields.
	Named map[string]string
	// Generic are token-keyed filters (keyword or "GGGG,EEEE").
	Generic map[string]string
	// ExtraReturnKeys are token-keyed attributes added as universal matches.
	ExtraReturnKeys []string
}

var defaultReturnKeys = map[models.QueryLevel][]string{
	models.LevelStudy: {
		"StudyInstanceUID", "PatientID", "PatientName", "StudyDate",
		"StudyDescription", "ModalitiesInStudy", "AccessionNumber",
	},
	models.LevelSeries: {
		"SeriesInstanceUID", "Modality", "SeriesNumber", "SeriesDescription", "KVP",
	},
	models.LevelImage: {
		"SOPInstanceUID", "InstanceNumber",
	},
}

var tagQueryRetrieveLevel = tag.Tag{Group: 0x0008, Element: 0x0052}

// ValidationError marks identifier construction failures caused by the
// caller's input, as opposed to transport failures.
type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Unwrap() error { return e.err }

func invalidf(format string, args ...any) error {
	e := &ValidationError{msg: fmt.Sprintf(format, args...)}
	for _, a := range args {
		if err, ok := a.(error); ok {
			e.err = err
		}
	}
	return e
}

// Build assembles a descriptor for the given parameters. Hierarchy keys
// and the Q/R level are written first and locked; defaults, named filters,
// and generic filters follow, with generic filters taking precedence over
// named ones for the same attribute.
func Build(p Params) (*Descriptor, error) {
	if !p.Level.Valid() {
		return nil, invalidf("invalid query level %q", p.Level)
	}

	d := &Descriptor{
		Level:  p.Level,
		index:  make(map[tag.Tag]int),
		locked: make(map[tag.Tag]bool),
	}

	d.setLocked(dict.Attribute{Tag: tagQueryRetrieveLevel, Keyword: "QueryRetrieveLevel", VR: "CS"}, string(p.Level))

	switch p.Level {
	case models.LevelSeries:
		if p.StudyInstanceUID == "" {
			return nil, invalidf("series query requires a study instance UID")
		}
	case models.LevelImage:
		if p.StudyInstanceUID == "" || p.SeriesInstanceUID == "" {
			return nil, invalidf("image query requires study and series instance UIDs")
		}
	}
	if p.Level != models.LevelStudy {
		d.setLocked(mustAttr("StudyInstanceUID"), p.StudyInstanceUID)
	}
	if p.Level == models.LevelImage {
		d.setLocked(mustAttr("SeriesInstanceUID"), p.SeriesInstanceUID)
	}

	for _, kw := range defaultReturnKeys[p.Level] {
		attr, err := dict.Resolve(kw)
		if err != nil {
			return nil, invalidf("resolving default key %s: %v", kw, err)
		}
		d.set(attr, "")
	}

	for kw, val := range p.Named {
		attr, err := dict.Resolve(kw)
		if err != nil {
			return nil, invalidf("resolving filter %s: %v", kw, err)
		}
		d.set(attr, val)
	}

	// Generic filters and extra return keys are caller-supplied open maps.
	// A token that fails to resolve drops that single entry, never the
	// whole build.
	for token, val := range p.Generic {
		attr, err := dict.Resolve(token)
		if err != nil {
			log.Warn().Err(err).Str("token", token).Msg("Skipping unresolvable filter")
			continue
		}
		d.set(attr, filterValue(attr, val))
	}

	for _, token := range p.ExtraReturnKeys {
		attr, err := dict.Resolve(token)
		if err != nil {
			log.Warn().Err(err).Str("token", token).Msg("Skipping unresolvable return key")
			continue
		}
		if _, exists := d.index[attr.Tag]; !exists {
			d.set(attr, "")
		}
	}

	return d, nil
}

// filterValue normalizes a generic filter value for the attribute's VR.
// A value the codec cannot render is kept verbatim; the remote node will
// match it or not.
func filterValue(attr dict.Attribute, raw string) string {
	v, err := codec.Decode(attr.VR, raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("keyword", attr.Keyword).
			Str("vr", attr.VR).
			Msg("Keeping filter value the codec rejected")
		return raw
	}
	return v
}

// set inserts or overwrites an entry, unless the attribute is locked.
func (d *Descriptor) set(attr dict.Attribute, value string) {
	if d.locked[attr.Tag] {
		return
	}
	if i, ok := d.index[attr.Tag]; ok {
		d.entries[i].Value = value
		return
	}
	d.index[attr.Tag] = len(d.entries)
	d.entries = append(d.entries, Entry{Attr: attr, Value: value})
}

func (d *Descriptor) setLocked(attr dict.Attribute, value string) {
	d.set(attr, value)
	d.locked[attr.Tag] = true
}

// Entries returns the descriptor's entries in insertion order.
func (d *Descriptor) Entries() []Entry {
	return d.entries
}

// Get returns the value for a tag and whether the tag is present.
func (d *Descriptor) Get(t tag.Tag) (string, bool) {
	if i, ok := d.index[t]; ok {
		return d.entries[i].Value, true
	}
	return "", false
}

// BuildMove assembles a retrieve identifier. The deepest UID present
// decides the level: a SOP instance UID selects IMAGE, a series UID
// SERIES, and a study UID alone STUDY.
func BuildMove(studyUID, seriesUID, sopUID string) (*Descriptor, error) {
	if studyUID == "" {
		return nil, invalidf("retrieve requires a study instance UID")
	}
	if sopUID != "" && seriesUID == "" {
		return nil, invalidf("retrieve of a single instance requires its series instance UID")
	}

	level := models.LevelStudy
	switch {
	case sopUID != "":
		level = models.LevelImage
	case seriesUID != "":
		level = models.LevelSeries
	}

	d := &Descriptor{
		Level:  level,
		index:  make(map[tag.Tag]int),
		locked: make(map[tag.Tag]bool),
	}
	d.setLocked(dict.Attribute{Tag: tagQueryRetrieveLevel, Keyword: "QueryRetrieveLevel", VR: "CS"}, string(level))
	d.setLocked(mustAttr("StudyInstanceUID"), studyUID)
	if seriesUID != "" {
		d.setLocked(mustAttr("SeriesInstanceUID"), seriesUID)
	}
	if sopUID != "" {
		d.setLocked(mustAttr("SOPInstanceUID"), sopUID)
	}
	return d, nil
}

func mustAttr(keyword string) dict.Attribute {
	attr, err := dict.Resolve(keyword)
	if err != nil {
		panic(fmt.Sprintf("dictionary missing %s: %v", keyword, err))
	}
	return attr
}
