package extract

import (
    "bytes"
    "errors"
    "fmt"
    "math"
    "sort"
    "strings"

    "github.com/ledongthuc/pdf"
    "golang.org/x/text/unicode/norm"
)

// Text is the extracted text of one document: one entry per page, in source
// page order.
type Text struct {
    Pages []string
}

// String joins the non-empty pages with a blank line so that page breaks are
// also paragraph breaks.
func (t Text) String() string {
    parts := make([]string, 0, len(t.Pages))
    for _, p := range t.Pages {
        if strings.TrimSpace(p) == "" {
            continue
        }
        parts = append(parts, p)
    }
    return strings.Join(parts, "\n\n")
}

// Empty reports whether no page produced any text.
func (t Text) Empty() bool {
    for _, p := range t.Pages {
        if strings.TrimSpace(p) != "" {
            return false
        }
    }
    return true
}

// ParsePages opens a PDF held in b and returns the text of every page in
// order. A page whose content cannot be decoded contributes an empty string.
// Parser panics are converted into errors.
func ParsePages(b []byte) (pages []string, err error) {
    if len(b) == 0 {
        return nil, errors.New("empty document")
    }
    defer func() {
        if r := recover(); r != nil {
            pages = nil
            err = fmt.Errorf("pdf parser panic: %v", r)
        }
    }()
    r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
    if err != nil {
        return nil, fmt.Errorf("open pdf: %w", err)
    }
    n := r.NumPage()
    pages = make([]string, 0, n)
    fonts := make(map[string]*pdf.Font)
    for i := 1; i <= n; i++ {
        pages = append(pages, pageText(r.Page(i), fonts))
    }
    return pages, nil
}

func pageText(p pdf.Page, fonts map[string]*pdf.Font) (text string) {
    defer func() {
        if r := recover(); r != nil {
            text = ""
        }
    }()
    if p.V.IsNull() {
        return ""
    }
    for _, name := range p.Fonts() {
        if _, ok := fonts[name]; !ok {
            f := p.Font(name)
            fonts[name] = &f
        }
    }
    raw := ""
    if rows, err := p.GetTextByRow(); err == nil && len(rows) > 0 {
        lines := make([]line, 0, len(rows))
        for _, row := range rows {
            lines = append(lines, line{y: float64(row.Position), text: joinRun(row.Content)})
        }
        raw = layoutLines(lines)
    }
    if strings.TrimSpace(raw) == "" {
        plain, err := p.GetPlainText(fonts)
        if err != nil {
            return ""
        }
        raw = plain
    }
    return normalizeWhitespace(norm.NFKC.String(raw))
}

// joinRun concatenates the text runs of one row, inserting a space where
// the horizontal gap between runs is wider than a fraction of the font size.
func joinRun(runs pdf.TextHorizontal) string {
    var b strings.Builder
    for i, t := range runs {
        if i > 0 {
            prev := runs[i-1]
            gap := t.X - (prev.X + prev.W)
            if gap > 0.15*math.Max(t.FontSize, 1) && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
                b.WriteByte(' ')
            }
        }
        b.WriteString(t.S)
    }
    return b.String()
}

type line struct {
    y    float64
    text string
}

// layoutLines orders lines top to bottom and inserts a blank line wherever
// the vertical gap is clearly larger than the typical line spacing.
func layoutLines(lines []line) string {
    if len(lines) == 0 {
        return ""
    }
    sorted := make([]line, len(lines))
    copy(sorted, lines)
    sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].y > sorted[j].y })

    gaps := make([]float64, 0, len(sorted))
    for i := 1; i < len(sorted); i++ {
        if g := sorted[i-1].y - sorted[i].y; g > 0 {
            gaps = append(gaps, g)
        }
    }
    spacing := median(gaps)

    var b strings.Builder
    for i, l := range sorted {
        if i > 0 {
            b.WriteByte('\n')
            if spacing > 0 && sorted[i-1].y-l.y > 1.6*spacing {
                b.WriteByte('\n')
            }
        }
        b.WriteString(l.text)
    }
    return b.String()
}

func median(xs []float64) float64 {
    if len(xs) == 0 {
        return 0
    }
    s := make([]float64, len(xs))
    copy(s, xs)
    sort.Float64s(s)
    return s[len(s)/2]
}

func normalizeWhitespace(s string) string {
    // Collapse multiple spaces and blank lines
    lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
    out := make([]string, 0, len(lines))
    for _, line := range lines {
        trimmed := strings.TrimSpace(line)
        if trimmed == "" {
            // Keep at most one consecutive blank
            if len(out) > 0 && out[len(out)-1] == "" {
                continue
            }
            out = append(out, "")
            continue
        }
        out = append(out, collapseSpaces(trimmed))
    }
    for len(out) > 0 && out[0] == "" {
        out = out[1:]
    }
    for len(out) > 0 && out[len(out)-1] == "" {
        out = out[:len(out)-1]
    }
    return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
    var b strings.Builder
    lastSpace := false
    for _, r := range s {
        if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0' {
            if !lastSpace {
                b.WriteByte(' ')
                lastSpace = true
            }
            continue
        }
        b.WriteRune(r)
        lastSpace = false
    }
    return b.String()
}
