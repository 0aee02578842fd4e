// Package output renders a filtered license report.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/qxautoml/devtools/tools/licenses/pkg/whitesource"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

var formats = []Format{FormatJSON, FormatYAML, FormatTable}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of json, yaml, table)", s)
}

// ContentType is the media type used when the rendered report is published.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatTable:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

type Options struct {
	// Indent pretty-prints json output with the given indent string.
	Indent string
}

func Render(w io.Writer, format Format, report whitesource.Report, opts Options) error {
	switch format {
	case FormatJSON:
		b, err := report.EncodeJSON(opts.Indent)
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = w.Write(b)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAMLValue(map[string]any(report))); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTable:
		return renderTable(w, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, report whitesource.Report) error {
	libs, err := report.Libraries()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Library", "Version", "Group", "Licenses"})

	for _, lib := range libs {
		table.Append([]string{
			lib.Name,
			lib.Version,
			lib.GroupID,
			lib.LicenseNames(),
		})
	}
	table.SetFooter([]string{"", "", "Total", fmt.Sprintf("%d", len(libs))})
	table.Render()
	return nil
}
