package whitesource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// StrippedLibraryFields are the per-library keys removed before a report is
// published. They identify the scanned artifact inside the compliance
// service and are meaningless outside of it.
var StrippedLibraryFields = []string{
	"keyUuid",
	"keyId",
	"directDependency",
	"sha1",
	"artifactId",
}

// Report is the decoded getProductLicenses response. It is kept untyped so
// fields this package does not know about are passed through unchanged.
type Report map[string]any

type License struct {
	Name string
	URL  string
}

type Library struct {
	Name     string
	GroupID  string
	Version  string
	Type     string
	Licenses []License
}

// LicenseNames returns the license names joined for display.
func (l Library) LicenseNames() string {
	names := make([]string, 0, len(l.Licenses))
	for _, lic := range l.Licenses {
		names = append(names, lic.Name)
	}
	return strings.Join(names, ", ")
}

// DecodeReport decodes a response body. Numbers are kept as json.Number so
// large identifiers are not rounded through float64.
func DecodeReport(r io.Reader) (Report, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var report Report
	if err := dec.Decode(&report); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return report, nil
}

func (r Report) libraries() ([]any, error) {
	raw, ok := r["libraries"]
	if !ok {
		return nil, newError(ErrorKindValidation, "libraries", "report has no libraries", nil)
	}
	libs, ok := raw.([]any)
	if !ok {
		return nil, newError(ErrorKindValidation, "libraries", fmt.Sprintf("libraries is %T, not an array", raw), nil)
	}
	return libs, nil
}

// StripLibraryFields deletes keys from every object in the libraries array
// and returns how many keys were actually removed. Entries that are not
// objects are left alone. With no keys, StrippedLibraryFields is used.
func (r Report) StripLibraryFields(keys ...string) (int, error) {
	if len(keys) == 0 {
		keys = StrippedLibraryFields
	}
	libs, err := r.libraries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range libs {
		lib, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if _, ok := lib[key]; ok {
				delete(lib, key)
				removed++
			}
		}
	}
	return removed, nil
}

// Libraries returns a typed view of the libraries array sorted by name and
// version.
func (r Report) Libraries() ([]Library, error) {
	libs, err := r.libraries()
	if err != nil {
		return nil, err
	}
	out := make([]Library, 0, len(libs))
	for _, entry := range libs {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		lib := Library{
			Name:    stringField(m, "name"),
			GroupID: stringField(m, "groupId"),
			Version: stringField(m, "version"),
			Type:    stringField(m, "type"),
		}
		if lics, ok := m["licenses"].([]any); ok {
			for _, l := range lics {
				lm, ok := l.(map[string]any)
				if !ok {
					continue
				}
				lib.Licenses = append(lib.Licenses, License{
					Name: stringField(lm, "name"),
					URL:  stringField(lm, "url"),
				})
			}
		}
		out = append(out, lib)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// EncodeJSON returns the report as newline-terminated JSON, indented when
// indent is non-empty. HTML escaping is off so license URLs stay readable.
func (r Report) EncodeJSON(indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(map[string]any(r)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// apiErrorMessage extracts the in-band error the service returns with a 200
// status, e.g. {"errorCode":2015,"errorMessage":"..."}.
func (r Report) apiErrorMessage() (string, bool) {
	code, ok := r["errorCode"]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("error code %v: %s", code, stringField(r, "errorMessage")), true
}
