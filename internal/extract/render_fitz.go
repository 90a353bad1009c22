package extract

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes PDF pages with MuPDF.
type FitzRenderer struct {
	DPI float64
}

func (r FitzRenderer) RenderPages(ctx context.Context, data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}
	defer doc.Close()

	dpi := r.DPI
	if dpi <= 0 {
		dpi = 144
	}
	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		png, err := doc.ImagePNG(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d failed: %w", i+1, err)
		}
		pages = append(pages, png)
	}
	return pages, nil
}
