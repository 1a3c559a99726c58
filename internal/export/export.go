// Package export renders response sets as documents and bundles a persona's
// outputs into a zip archive.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/types"
)

// Title heads every exported transcript.
const Title = "Simulated Interview Transcript"

// Export formats.
const (
	FormatDOCX     = "docx"
	FormatPDF      = "pdf"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Formats lists the supported export formats.
var Formats = []string{FormatDOCX, FormatPDF, FormatMarkdown, FormatText}

var aliases = map[string]string{
	"md":   FormatMarkdown,
	"txt":  FormatText,
	"word": FormatDOCX,
}

// Document is a rendered export.
type Document struct {
	Format      string
	Extension   string
	ContentType string
	Data        []byte
}

// NormalizeFormat maps aliases such as "md" to a supported format.
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if a, ok := aliases[f]; ok {
		f = a
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewInputError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported export format %q, expected one of %s", format, strings.Join(Formats, ", ")), nil)
}

// Render renders rs in format.
func Render(format string, rs types.ResponseSet) (Document, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return Document{}, err
	}

	switch f {
	case FormatDOCX:
		data, err := DOCX(rs)
		return Document{f, ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data}, err
	case FormatPDF:
		data, err := PDF(rs)
		return Document{f, ".pdf", "application/pdf", data}, err
	case FormatMarkdown:
		return Document{f, ".md", "text/markdown; charset=utf-8", []byte(Markdown(rs))}, nil
	default:
		return Document{f, ".txt", "text/plain; charset=utf-8", []byte(Text(rs))}, nil
	}
}

// Markdown renders rs with a level-2 "Q:" heading per question.
func Markdown(rs types.ResponseSet) string {
	var b strings.Builder
	b.WriteString("# " + Title + "\n\n")
	for _, r := range rs {
		fmt.Fprintf(&b, "## Q: %s\n\n%s\n\n", r.Question, strings.TrimSpace(r.Answer))
	}
	return b.String()
}

// Text renders rs as plain Q:/A: blocks.
func Text(rs types.ResponseSet) string {
	var b strings.Builder
	b.WriteString(Title + "\n")
	b.WriteString(strings.Repeat("=", len(Title)) + "\n\n")
	for _, r := range rs {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", r.Question, strings.TrimSpace(r.Answer))
	}
	return b.String()
}

// Bundle writes a zip archive holding each of paths under its base name.
func Bundle(w io.Writer, paths []string) error {
	if len(paths) == 0 {
		return errors.NewInputError(errors.ErrCodeFileNotFound, "no output files to bundle", nil)
	}

	zw := zip.NewWriter(w)
	for _, path := range paths {
		if err := addFile(zw, path); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable, "cannot finish bundle", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot read output for bundle", err).
			WithContext("path", path)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot stat output for bundle", err).
			WithContext("path", path)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot build zip header", err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable, "cannot add file to bundle", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable, "cannot add file to bundle", err).
			WithContext("path", path)
	}
	return nil
}
