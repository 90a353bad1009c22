package extract

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"collabrag/internal/vision"
)

// TranscribeInstruction asks the model for the literal text and tables of a
// page and nothing else.
const TranscribeInstruction = "Transcribe all text and tables from this image exactly as they appear. " +
	"Return only the transcribed content, with no commentary, descriptions of images, or formatting notes. " +
	"If the image contains no text, return an empty response."

// Transcriber turns one image into text using a vision-capable model.
type Transcriber interface {
	Transcribe(ctx context.Context, image []byte, mediaType, instruction string) (string, error)
}

// PageRenderer rasterizes each page of a PDF to PNG, in page order.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte) ([][]byte, error)
}

type PDFVisionHandler struct {
	Renderer    PageRenderer
	Transcriber Transcriber
	// Concurrency bounds simultaneous page transcriptions.
	Concurrency int
	MaxSide     int
}

func (h *PDFVisionHandler) Extract(ctx context.Context, _ string, data []byte) (string, error) {
	pages, err := h.Renderer.RenderPages(ctx, data)
	if err != nil {
		return "", fmt.Errorf("render pdf pages failed: %w", err)
	}

	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, h.Concurrency))
	for i, page := range pages {
		g.Go(func() error {
			img, mt, err := vision.Prepare(page, "image/png", h.MaxSide)
			if err != nil {
				return fmt.Errorf("prepare page %d failed: %w", i+1, err)
			}
			text, err := h.Transcriber.Transcribe(gctx, img, mt, TranscribeInstruction)
			if err != nil {
				return fmt.Errorf("transcribe page %d failed: %w", i+1, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return JoinBlocks(texts), nil
}

type ImageHandler struct {
	Transcriber Transcriber
	MaxSide     int
}

func (h *ImageHandler) Extract(ctx context.Context, mediaType string, data []byte) (string, error) {
	img, mt, err := vision.Prepare(data, mediaType, h.MaxSide)
	if err != nil {
		return "", err
	}
	text, err := h.Transcriber.Transcribe(ctx, img, mt, TranscribeInstruction)
	if err != nil {
		return "", fmt.Errorf("transcribe image failed: %w", err)
	}
	return Normalize(text), nil
}
