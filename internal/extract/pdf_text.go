package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFTextHandler reads the embedded text layer page by page. Scanned pages
// without a text layer come back empty.
type PDFTextHandler struct{}

func (PDFTextHandler) Extract(ctx context.Context, _ string, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d failed: %w", i, err)
		}
		pages = append(pages, text)
	}
	return JoinBlocks(pages), nil
}
