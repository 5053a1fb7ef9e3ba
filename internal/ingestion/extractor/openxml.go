package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// extractOpenXML pulls paragraph text out of .docx and .pptx containers.
func extractOpenXML(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("openxml zip: %w", err)
	}

	var parts []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			parts = append(parts, f)
		case strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml"):
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("zip does not look like docx or pptx")
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })

	var out strings.Builder
	for _, f := range parts {
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", err
		}
		out.WriteString(paragraphsFromXML(b))
		out.WriteString("\n")
	}
	s := strings.TrimSpace(out.String())
	if s == "" {
		return "", fmt.Errorf("no text extracted from openxml")
	}
	return s, nil
}

// paragraphsFromXML gathers <t> runs and breaks lines at each </p>.
func paragraphsFromXML(xmlBytes []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "t" {
				continue
			}
			var v string
			if err := dec.DecodeElement(&v, &el); err == nil && v != "" {
				out.WriteString(v)
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
