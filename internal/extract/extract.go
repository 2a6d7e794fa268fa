// Package extract dispatches on MIME type and filename to turn raw document
// bytes into plain text: PDF-to-text, DOCX-to-text, UTF-8 decode, or a safe
// rejection of content it cannot confidently handle.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/teilomillet/ragingest/internal/apperr"
)

const maxFallbackSize = 5 * 1024 * 1024 // 5 MiB

var textMIMEPrefixes = []string{
	"text/",
	"application/json",
	"application/yaml",
	"application/x-yaml",
	"application/xml",
	"application/typescript",
	"application/x-python",
}

var docBinaryExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".zip": true, ".jpg": true, ".jpeg": true,
	".png": true, ".gif": true, ".mp3": true, ".mp4": true, ".wav": true,
}

// IsBinary classifies a file as binary per §4.9's dispatch rule: a known
// binary MIME family, or a known binary extension.
func IsBinary(contentType, filename string) bool {
	switch {
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "audio/"),
		strings.HasPrefix(contentType, "video/"):
		return true
	case contentType == "application/pdf",
		contentType == "application/msword",
		contentType == "application/zip",
		contentType == "application/octet-stream",
		strings.Contains(contentType, "wordprocessingml"),
		strings.Contains(contentType, "ms-excel"),
		strings.Contains(contentType, "ms-powerpoint"):
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return docBinaryExtensions[ext]
}

// Extract dispatches on contentType/filename and returns the extracted plain
// text, or a *apperr.ErrUnsupportedContent-wrapping error if the content
// cannot be safely handled.
func Extract(data []byte, contentType, filename string) (string, error) {
	switch {
	case contentType == "application/pdf":
		return extractPDF(data)
	case strings.Contains(contentType, "wordprocessingml.document"):
		return extractDOCX(data)
	case contentType == "application/msword" || strings.ToLower(filepath.Ext(filename)) == ".doc":
		return fmt.Sprintf("[Legacy Word document: %s — original bytes preserved, text not extracted]", filename), nil
	case isTextLikeMIME(contentType):
		return string(data), nil
	default:
		return extractFallback(data)
	}
}

func isTextLikeMIME(contentType string) bool {
	for _, prefix := range textMIMEPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// extractFallback handles content with no recognized MIME: it rejects
// oversized buffers, buffers that look binary (NUL in the first KiB), and
// buffers that don't decode cleanly as UTF-8.
func extractFallback(data []byte) (string, error) {
	if len(data) > maxFallbackSize {
		return "", fmt.Errorf("%w: content exceeds %d bytes", apperr.ErrUnsupportedContent, maxFallbackSize)
	}
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return "", fmt.Errorf("%w: NUL byte in content header", apperr.ErrUnsupportedContent)
		}
	}
	text := string(data)
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", apperr.ErrUnsupportedContent)
	}
	if strings.ContainsRune(text, '�') {
		return "", fmt.Errorf("%w: content decodes with replacement characters", apperr.ErrUnsupportedContent)
	}
	return text, nil
}

// extractPDF reads a PDF page by page, grouping each page's text items by
// rounded Y-position (top-to-bottom line ordering) with items inside a line
// sorted by X-position, then joins lines with newlines and pages with a
// blank line.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		var lines []string
		for _, row := range rows {
			cells := make([]string, 0, len(row.Content))
			sort.SliceStable(row.Content, func(a, b int) bool {
				return row.Content[a].X < row.Content[b].X
			})
			for _, cell := range row.Content {
				cells = append(cells, cell.S)
			}
			lines = append(lines, strings.Join(cells, " "))
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	text := strings.Join(pages, "\n\n")
	return normalizeWhitespace(text), nil
}

// extractDOCX reads a DOCX's document.xml content via the nguyenthenguyen/docx
// library and strips markup tags to leave plain text. The library only reads
// from a path, so the bytes are spilled to a short-lived temp file.
func extractDOCX(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ragingest-*.docx")
	if err != nil {
		return "", fmt.Errorf("failed to stage DOCX for extraction: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to stage DOCX for extraction: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage DOCX for extraction: %w", err)
	}

	r, err := docx.ReadDocxFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer r.Close()

	doc := r.Editable()
	raw := doc.GetContent()
	text := stripXMLTags(raw)
	return normalizeWhitespace(text), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func stripXMLTags(s string) string {
	return xmlTagPattern.ReplaceAllString(s, "")
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
