// Package extractor pulls text out of uploaded documents and turns it into
// personas, question sets and real transcripts.
package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/utils"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the document at path and returns its plain text.
// PDF, DOCX and plain text files are supported.
func ExtractText(path string) (string, error) {
	if err := utils.ValidateInputFile(path); err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotFound, err.Error(), err).WithContext("path", path)
	}

	switch utils.GetFileExtension(path) {
	case ".pdf":
		f, r, err := pdf.Open(path)
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "failed to open PDF", err).WithContext("path", path)
		}
		defer func() { _ = f.Close() }()
		return pdfText(r)
	case ".docx":
		r, err := zip.OpenReader(path)
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "failed to open DOCX", err).WithContext("path", path)
		}
		defer func() { _ = r.Close() }()
		return docxText(&r.Reader)
	}

	if !utils.IsTextFile(path) {
		return "", unsupported(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot read document", err).WithContext("path", path)
	}
	return strings.TrimSpace(string(data)), nil
}

// ExtractBytes is ExtractText for an uploaded document held in memory;
// name only selects the format.
func ExtractBytes(name string, data []byte) (string, error) {
	switch utils.GetFileExtension(name) {
	case ".pdf":
		r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "failed to open PDF", err).WithContext("name", name)
		}
		return pdfText(r)
	case ".docx":
		r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "failed to open DOCX", err).WithContext("name", name)
		}
		return docxText(r)
	}

	if !utils.IsTextFile(name) {
		return "", unsupported(name)
	}
	return strings.TrimSpace(string(data)), nil
}

func unsupported(name string) error {
	return errors.NewInputError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported document type %q, expected .pdf, .docx or a text file", utils.GetFileExtension(name)), nil).
		WithContext("name", name)
}

func pdfText(r *pdf.Reader) (string, error) {
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// unreadable pages are skipped
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// docxText returns the text of word/document.xml, one line per paragraph.
func docxText(r *zip.Reader) (string, error) {
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "cannot read DOCX body", err)
		}
		defer func() { _ = rc.Close() }()
		return paragraphs(rc)
	}
	return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "DOCX has no word/document.xml", nil)
}

func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "malformed DOCX body", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteString("\t")
			case "br", "cr":
				cur.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out = append(out, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}
