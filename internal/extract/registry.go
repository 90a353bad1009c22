package extract

// Options configures the default handler set.
type Options struct {
	// PDFMode is "vision" (render and transcribe) or "text" (text layer).
	PDFMode         string
	Renderer        PageRenderer
	Transcriber     Transcriber
	PageConcurrency int
	MaxImageSide    int
}

// NewDefault registers every built-in kind. Image and vision PDF handlers are
// only registered when a Transcriber is available.
func NewDefault(opts Options) *Extractor {
	e := New()
	e.Register(KindText, TextHandler{}, "text/plain", "text/markdown", "text/csv")
	e.Register(KindDOCX, DOCXHandler{}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	e.Register(KindXLSX, XLSXHandler{}, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if opts.PDFMode == "vision" && opts.Transcriber != nil && opts.Renderer != nil {
		e.Register(KindPDF, &PDFVisionHandler{
			Renderer:    opts.Renderer,
			Transcriber: opts.Transcriber,
			Concurrency: opts.PageConcurrency,
			MaxSide:     opts.MaxImageSide,
		}, "application/pdf")
	} else {
		e.Register(KindPDF, PDFTextHandler{}, "application/pdf")
	}

	if opts.Transcriber != nil {
		e.Register(KindImage, &ImageHandler{Transcriber: opts.Transcriber, MaxSide: opts.MaxImageSide},
			"image/png", "image/jpeg", "image/webp")
	}
	return e
}
