// Package dict resolves attribute tokens against the DICOM data dictionary.
// A token is either an attribute keyword ("PatientID") or a hex tag pair
// ("0010,0020", optionally parenthesized).
package dict

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Attribute is a resolved dictionary entry.
type Attribute struct {
	Tag     tag.Tag
	Keyword string
	VR      string
}

// ErrUnknownKeyword is returned when a token is not a known keyword and
// does not parse as a tag pair.
var ErrUnknownKeyword = errors.New("unknown attribute keyword")

// MalformedTagTokenError reports a token that looks like a hex tag pair
// but cannot be parsed as one.
type MalformedTagTokenError struct {
	Token string
}

func (e *MalformedTagTokenError) Error() string {
	return fmt.Sprintf("malformed tag token %q, expected GGGG,EEEE", e.Token)
}

var tagTokenRe = regexp.MustCompile(`^\(?\s*([0-9a-fA-F]{4})\s*,\s*([0-9a-fA-F]{4})\s*\)?$`)

// Resolve maps a token to a dictionary attribute. Keyword lookup is tried
// first, then the hex tag form. Private or retired tags absent from the
// dictionary resolve with an empty keyword and VR "UN".
func Resolve(token string) (Attribute, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Attribute{}, fmt.Errorf("%w: empty token", ErrUnknownKeyword)
	}

	if info, err := tag.FindByName(token); err == nil {
		return Attribute{Tag: info.Tag, Keyword: info.Keyword, VR: firstVR(info)}, nil
	}

	if m := tagTokenRe.FindStringSubmatch(token); m != nil {
		group, _ := strconv.ParseUint(m[1], 16, 16)
		element, _ := strconv.ParseUint(m[2], 16, 16)
		t := tag.Tag{Group: uint16(group), Element: uint16(element)}
		if info, err := tag.Find(t); err == nil {
			return Attribute{Tag: t, Keyword: info.Keyword, VR: firstVR(info)}, nil
		}
		return Attribute{Tag: t, VR: "UN"}, nil
	}

	// Anything with a comma or parens was meant as a tag pair.
	if strings.ContainsAny(token, ",()") {
		return Attribute{}, &MalformedTagTokenError{Token: token}
	}
	return Attribute{}, fmt.Errorf("%w: %q", ErrUnknownKeyword, token)
}

// KeywordOf returns the dictionary keyword for a tag, or its "GGGG,EEEE"
// rendering when the tag is not in the dictionary.
func KeywordOf(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil && info.Keyword != "" {
		return info.Keyword
	}
	return FormatTag(t)
}

// FormatTag renders a tag as uppercase "GGGG,EEEE".
func FormatTag(t tag.Tag) string {
	return fmt.Sprintf("%04X,%04X", t.Group, t.Element)
}

// VROf returns the dictionary VR for a tag, or "UN" when unknown.
func VROf(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil && len(info.VRs) > 0 && info.VRs[0] != "" {
		return info.VRs[0]
	}
	return "UN"
}

// firstVR picks the primary VR of a dictionary entry. Multi-VR entries
// (US/SS pixel attributes) list the preferred representation first.
func firstVR(info tag.Info) string {
	if len(info.VRs) == 0 || info.VRs[0] == "" {
		return "UN"
	}
	return info.VRs[0]
}
