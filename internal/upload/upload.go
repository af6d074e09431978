// Package upload turns an uploaded CV file into plain text for scoring.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/spigell/hh-interviewer/internal/interview"
)

const MaxFileSize = 5 << 20

// Document is the extracted text of one uploaded file.
type Document struct {
	Text     string `json:"text"`
	FileName string `json:"fileName"`
}

// Extract reads the text of a .pdf, .txt or .md file. Unsupported types,
// oversized files and files without text fail with interview.ErrInvalidInput.
func Extract(fileName string, data []byte) (*Document, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: file name is required", interview.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file %s is empty", interview.ErrInvalidInput, name)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: file %s exceeds %d bytes", interview.ErrInvalidInput, name, MaxFileSize)
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		text, err = pdfText(data)
	case ".txt", ".md":
		text, err = plainText(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", interview.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interview.ErrInvalidInput, name, err)
	}

	text = normalize(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text found in %s", interview.ErrInvalidInput, name)
	}

	return &Document{Text: text, FileName: name}, nil
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not valid UTF-8 text")
	}
	return string(data), nil
}

// pdfText extracts the plain text layer. The pdf reader panics on some
// malformed inputs, so panics are turned into errors.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	content, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return string(content), nil
}

// normalize drops carriage returns and collapses runs of blank lines.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, isSpace)
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u00a0'
}
