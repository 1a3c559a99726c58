package export

import (
	"bytes"

	"personasim/internal/errors"
	"personasim/internal/types"

	"github.com/go-pdf/fpdf"
)

// PDF renders rs on A4 pages with a bold "Q:" line and an "A:" paragraph
// per response. Text outside cp1252 is replaced by the core font translator.
func PDF(rs types.ResponseSet) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	for _, r := range rs {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 10, tr("Q: "+r.Question), "", "", false)
		pdf.SetFont("Arial", "", 12)
		pdf.MultiCell(0, 10, tr("A: "+r.Answer), "", "", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot render PDF", err)
	}
	return buf.Bytes(), nil
}
