package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"github.com/alienxp03/botdebate/internal/core"
)

type rgb struct{ r, g, b int }

var (
	colorBotA    = rgb{200, 230, 255} // light blue
	colorBotB    = rgb{200, 255, 200} // light green
	colorNoAgree = rgb{255, 220, 200}
)

// PDFExporter exports debates to PDF format.
type PDFExporter struct{}

// Export writes the debate as PDF.
func (e *PDFExporter) Export(debate *core.Debate, turns []*core.Turn, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, sanitizeText(debate.Topic), "", "C", false)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	title := cases.Title(language.English)
	e.addMetadataRow(pdf, "ID:", core.ShortID(debate.ID)+"...")
	e.addMetadataRow(pdf, "Status:", title.String(string(debate.Status)))
	e.addMetadataRow(pdf, "Coherence:", fmt.Sprintf("%.2f", debate.CoherenceScore))
	e.addMetadataRow(pdf, "Created:", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if debate.CompletedAt != nil {
		e.addMetadataRow(pdf, "Completed:", debate.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		e.addMetadataRow(pdf, "Duration:", formatDuration(debate.CreatedAt, *debate.CompletedAt))
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Participants")
	pdf.Ln(8)

	stats := statsFor(turns)
	e.addParticipantBox(pdf, debate.BotA, stats[debate.BotA], colorBotA)
	pdf.Ln(3)
	e.addParticipantBox(pdf, debate.BotB, stats[debate.BotB], colorBotB)
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate")
	pdf.Ln(8)

	if len(turns) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No turns recorded.")
		pdf.Ln(6)
	}
	for _, turn := range turns {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		c := colorBotB
		if turn.Speaker == debate.BotA {
			c = colorBotA
		}
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("Turn %d - %s (%s)", turn.Number, sanitizeText(turn.Speaker), turn.CreatedAt.Format("3:04 PM"))
		pdf.CellFormat(0, 7, header, "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "I", 8)
		meta := fmt.Sprintf("relevance %.2f, coherence %.2f", turn.Relevance, turn.Coherence)
		if turn.Duplicate {
			meta += ", repeated"
		}
		pdf.Cell(0, 5, meta)
		pdf.Ln(5)

		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, sanitizeText(turn.Content), "", "", false)
		pdf.Ln(5)
	}

	if pdf.GetY() > 230 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Outcome")
	pdf.Ln(8)
	c := colorNoAgree
	if debate.AgreementReached {
		c = colorBotB
	}
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, outcome(debate), "", 1, "", true, 0, "")

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from botdebate", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

func (e *PDFExporter) addParticipantBox(pdf *gofpdf.Fpdf, name string, s botStats, c rgb) {
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, sanitizeText(name), "", 1, "", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(255, 255, 255)
	pdf.Cell(25, 5, "Turns:")
	pdf.Cell(0, 5, fmt.Sprint(s.Turns))
	pdf.Ln(5)
	pdf.Cell(25, 5, "Repeated:")
	pdf.Cell(0, 5, fmt.Sprint(s.Duplicates))
	pdf.Ln(5)
}

var punctuationReplacer = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201C", "\"",
	"\u201D", "\"",
	"\u2013", "-",
	"\u2014", "--",
	"\u2026", "...",
	"\u2022", "*",
	"\u00A0", " ",
)

// sanitizeText converts UTF-8 into the Windows-1252 bytes the core PDF
// fonts expect. Runes outside the code page become '?'.
func sanitizeText(text string) string {
	text = punctuationReplacer.Replace(text)
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		sb.WriteByte(b)
	}
	return sb.String()
}
