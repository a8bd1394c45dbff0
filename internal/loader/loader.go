// Package loader extracts document text from files on disk.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"pdfrag/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Supported lists the file extensions Load understands.
var Supported = []string{".pdf", ".txt", ".md"}

// Load reads the document at path. PDF pages are concatenated in page order.
func Load(path string) (domain.Document, error) {
	var (
		text  string
		pages int
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, pages, err = readPDF(path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		text, pages = string(data), 1
	default:
		return domain.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("loading %s: %w", path, err)
	}
	doc, err := FromText(filepath.Base(path), text)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Path = path
	doc.Pages = pages
	return doc, nil
}

// FromText wraps already extracted text, e.g. an upload, as a document.
func FromText(name, text string) (domain.Document, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("%w: %s contains no text", domain.ErrEmptyInput, name)
	}
	return domain.Document{
		ID:      uuid.NewString(),
		Name:    name,
		Content: text,
		Pages:   1,
	}, nil
}

func readPDF(path string) (text string, pages int, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	// the parser panics on some malformed content streams
	defer func() {
		if rec := recover(); rec != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	var sb strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(pageText)
	}
	return sb.String(), total, nil
}
