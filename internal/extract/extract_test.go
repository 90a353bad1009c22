package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeRenderer struct {
	pages [][]byte
	err   error
}

func (r fakeRenderer) RenderPages(context.Context, []byte) ([][]byte, error) {
	return r.pages, r.err
}

// fakeTranscriber answers with the text registered for each image's width.
type fakeTranscriber struct {
	byWidth  map[int]string
	failOn   int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTranscriber) Transcribe(_ context.Context, img []byte, _ string, instruction string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if instruction == "" {
		return "", errors.New("missing instruction")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", err
	}
	if cfg.Width == f.failOn {
		return "", fmt.Errorf("model unavailable")
	}
	return f.byWidth[cfg.Width], nil
}

func blankPNG(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, 10))))
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a \t\n b\r\n\n  c  "))
	assert.Equal(t, "", Normalize(" \n\t "))
	assert.Equal(t, "one two\n\nthree", NormalizeBlocks("one\t two \n\n\n\n three \n\n  "))
}

func TestExtractorSupports(t *testing.T) {
	e := NewDefault(Options{PDFMode: "text"})

	assert.True(t, e.Supports("text/plain"))
	assert.True(t, e.Supports("text/plain; charset=utf-8"))
	assert.True(t, e.Supports("application/pdf"))
	assert.False(t, e.Supports("image/png"), "images need a transcriber")
	assert.False(t, e.Supports("application/zip"))

	kind, ok := e.KindOf("text/markdown")
	require.True(t, ok)
	assert.Equal(t, KindText, kind)
}

func TestMediaTypesListsOnlyHandledTypes(t *testing.T) {
	types := NewDefault(Options{PDFMode: "text"}).MediaTypes()

	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "application/pdf")
	assert.NotContains(t, types, "image/png")
	assert.IsIncreasing(t, types)
}

func TestExtractUnsupported(t *testing.T) {
	e := NewDefault(Options{})

	_, err := e.Extract(context.Background(), "application/zip", []byte("PK"))
	require.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestExtractPlainText(t *testing.T) {
	e := NewDefault(Options{})
	data := []byte("\uFEFFHello,\n\n   world!\t\xff")

	text, err := e.Extract(context.Background(), "text/plain", data)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world! \uFFFD", text)
}

func TestExtractWhitespaceOnlyIsEmpty(t *testing.T) {
	e := NewDefault(Options{})

	text, err := e.Extract(context.Background(), "text/plain", []byte(" \n \t "))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestPDFVisionKeepsPageOrder(t *testing.T) {
	tr := &fakeTranscriber{byWidth: map[int]string{
		11: "first   page",
		12: "",
		13: "third\npage",
		14: "fourth page",
	}}
	pages := [][]byte{blankPNG(t, 11), blankPNG(t, 12), blankPNG(t, 13), blankPNG(t, 14)}
	e := NewDefault(Options{
		PDFMode:         "vision",
		Renderer:        fakeRenderer{pages: pages},
		Transcriber:     tr,
		PageConcurrency: 2,
	})

	text, err := e.Extract(context.Background(), "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "first page\n\nthird page\n\nfourth page", text)
	assert.LessOrEqual(t, tr.peak.Load(), int32(2))
}

func TestPDFVisionPageFailure(t *testing.T) {
	tr := &fakeTranscriber{byWidth: map[int]string{11: "ok"}, failOn: 12}
	e := NewDefault(Options{
		PDFMode:     "vision",
		Renderer:    fakeRenderer{pages: [][]byte{blankPNG(t, 11), blankPNG(t, 12)}},
		Transcriber: tr,
	})

	_, err := e.Extract(context.Background(), "application/pdf", []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcribe page 2")
}

func TestPDFVisionRenderFailure(t *testing.T) {
	e := NewDefault(Options{
		PDFMode:     "vision",
		Renderer:    fakeRenderer{err: errors.New("corrupt")},
		Transcriber: &fakeTranscriber{},
	})

	_, err := e.Extract(context.Background(), "application/pdf", []byte("garbage"))
	require.Error(t, err)
}

func TestImageTranscription(t *testing.T) {
	tr := &fakeTranscriber{byWidth: map[int]string{20: " Invoice\n#42 "}}
	e := NewDefault(Options{Transcriber: tr})

	text, err := e.Extract(context.Background(), "image/png", blankPNG(t, 20))
	require.NoError(t, err)
	assert.Equal(t, "Invoice #42", text)
}

func TestParagraphsFromXML(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> plan</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:p><w:r><w:t>Budget</w:t><w:tab/><w:t>review</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := paragraphsFromXML(body)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly plan\n\nBudget review", text)
}

func TestXLSXHandler(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Region"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Revenue"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "North"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1200))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	e := NewDefault(Options{})
	text, err := e.Extract(context.Background(),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Sheet1: Region | Revenue; North | 1200;", text)
}
