package extract

import (
    "context"

    "github.com/rs/zerolog/log"
)

// Extractor defines a minimal interface for document text extraction.
// Implementations never fail: a document that cannot be read yields an
// empty Text, which callers treat as "skip".
type Extractor interface {
    Extract(ctx context.Context, input []byte) Text
}

// PDFExtractor reads page-oriented PDF documents.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, input []byte) Text {
    pages, err := ParsePages(input)
    if err != nil {
        log.Ctx(ctx).Debug().Err(err).Int("bytes", len(input)).Msg("pdf extraction failed")
        return Text{}
    }
    return Text{Pages: pages}
}
