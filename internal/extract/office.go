package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

type DOCXHandler struct{}

func (DOCXHandler) Extract(_ context.Context, _ string, data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	defer doc.Close()

	return paragraphsFromXML(doc.Editable().GetContent())
}

// paragraphsFromXML keeps the text runs of a WordprocessingML body, one
// block per paragraph.
func paragraphsFromXML(body string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body failed: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "br":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return JoinBlocks(paragraphs), nil
}

type XLSXHandler struct{}

func (XLSXHandler) Extract(ctx context.Context, _ string, data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx failed: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q failed: %w", name, err)
		}
		var b strings.Builder
		b.WriteString(name)
		b.WriteString(":")
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if c := strings.TrimSpace(cell); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				b.WriteString(" ")
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString(";")
			}
		}
		if len(rows) > 0 {
			sheets = append(sheets, b.String())
		}
	}
	return JoinBlocks(sheets), nil
}
