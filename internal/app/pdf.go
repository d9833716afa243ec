package app

import (
    "fmt"
    "strings"
    "time"

    "github.com/jung-kurt/gofpdf"

    "github.com/hyperifyio/minutewatch/internal/aggregate"
)

// writeDigestPDF renders the summaries as a one-column digest: a title, then
// one block per meeting with its date, summary, and a clickable source link.
func writeDigestPDF(summaries []aggregate.MeetingSummary, topic string, generated time.Time, outPath string) error {
    pdf := gofpdf.New("P", "mm", "Letter", "")
    // Core fonts are cp1252; translate UTF-8 text before drawing.
    tr := pdf.UnicodeTranslatorFromDescriptor("")
    pdf.SetTitle(fmt.Sprintf("Meeting minutes: %s", topic), true)
    pdf.AddPage()

    pdf.SetFont("Helvetica", "B", 16)
    pdf.CellFormat(0, 10, tr(fmt.Sprintf("Meeting minutes: %s", titleCase(topic))), "", 1, "L", false, 0, "")
    pdf.SetFont("Helvetica", "", 9)
    pdf.CellFormat(0, 6, "Generated "+generated.Format("2006-01-02"), "", 1, "L", false, 0, "")
    pdf.Ln(4)

    if len(summaries) == 0 {
        pdf.SetFont("Helvetica", "I", 11)
        pdf.MultiCell(0, 6, tr(fmt.Sprintf("No %s items were found in recent minutes.", topic)), "", "L", false)
        return pdf.OutputFileAndClose(outPath)
    }
    for _, s := range summaries {
        pdf.SetFont("Helvetica", "B", 12)
        pdf.CellFormat(0, 7, s.Date, "", 1, "L", false, 0, "")
        pdf.SetFont("Helvetica", "", 11)
        pdf.MultiCell(0, 5.5, tr(s.Summary), "", "L", false)
        if s.OriginalURL != "" {
            pdf.SetFont("Helvetica", "U", 9)
            pdf.SetTextColor(30, 60, 160)
            pdf.WriteLinkString(5, "Source document", s.OriginalURL)
            pdf.SetTextColor(0, 0, 0)
            pdf.Ln(5)
        }
        pdf.Ln(4)
    }
    return pdf.OutputFileAndClose(outPath)
}

func titleCase(s string) string {
    if s == "" {
        return s
    }
    return strings.ToUpper(s[:1]) + s[1:]
}
