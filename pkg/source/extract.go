package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bodgit/sevenzip"
	"github.com/ledongthuc/pdf"
)

// maxMemberSize caps how much of a single archive member is read.
const maxMemberSize = 16 << 20

// Part is text pulled out of a document or archive member.
type Part struct {
	Name    string
	Content []byte
}

// Kind returns the extraction kind for path, or "" if its extension is not
// one Extract understands.
func Kind(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".docx", ".pdf", ".zip", ".7z":
		return ext[1:]
	}
	return ""
}

// Extract pulls the text out of content. Archive members that are binary
// themselves are skipped; nested archives are not opened.
func Extract(kind string, content []byte) ([]Part, error) {
	switch kind {
	case "xlsx":
		return officeText(content, func(name string) bool {
			return name == "xl/sharedStrings.xml" ||
				(strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml"))
		})
	case "docx":
		return officeText(content, func(name string) bool { return name == "word/document.xml" })
	case "pdf":
		return pdfText(content)
	case "zip":
		return zipMembers(content)
	case "7z":
		return sevenZipMembers(content)
	default:
		return nil, fmt.Errorf("unsupported document kind: %q", kind)
	}
}

func officeText(content []byte, want func(name string) bool) ([]Part, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening office document: %w", err)
	}

	var parts []Part
	for _, f := range zr.File {
		if !want(f.Name) {
			continue
		}
		data, err := readMember(f.Open)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if text := xmlText(data); text != "" {
			parts = append(parts, Part{Name: f.Name, Content: []byte(text)})
		}
	}
	return parts, nil
}

func pdfText(content []byte) ([]Part, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	if strings.TrimSpace(sb.String()) == "" {
		return nil, nil
	}
	return []Part{{Name: "text", Content: []byte(sb.String())}}, nil
}

func zipMembers(content []byte) ([]Part, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	var parts []Part
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(f.Open)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if !isBinary(data) {
			parts = append(parts, Part{Name: f.Name, Content: data})
		}
	}
	return parts, nil
}

func sevenZipMembers(content []byte) ([]Part, error) {
	zr, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening 7z: %w", err)
	}

	var parts []Part
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(f.Open)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if !isBinary(data) {
			parts = append(parts, Part{Name: f.Name, Content: data})
		}
	}
	return parts, nil
}

func readMember(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxMemberSize))
}

// xmlText joins the non-blank character data of an XML document with single
// spaces.
func xmlText(data []byte) string {
	var out []string
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			if text := collapseSpace(string(cd)); text != "" {
				out = append(out, text)
			}
		}
	}
	return strings.Join(out, " ")
}

func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
