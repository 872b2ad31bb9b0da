package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/models"
)

const documentSeparator = "\n\n"

var pdfMagic = []byte("%PDF-")

// ExtractDocuments concatenates the text of docs in upload order.
func ExtractDocuments(docs []models.Document) (string, error) {
	if len(docs) == 0 {
		return "", apperr.New(apperr.KindExtraction, "extract", errors.New("no documents provided"))
	}
	var text strings.Builder
	for i, doc := range docs {
		content, err := ExtractText(doc)
		if err != nil {
			return "", err
		}
		if i > 0 && text.Len() > 0 {
			text.WriteString(documentSeparator)
		}
		text.WriteString(content)
	}
	return text.String(), nil
}

// ExtractText pulls the raw text out of a single document, picking the
// reader by file extension.
func ExtractText(doc models.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", apperr.Newf(apperr.KindExtraction, "extract "+doc.Name, "document is empty")
	}

	ext := strings.ToLower(filepath.Ext(doc.Name))
	if ext == "" && bytes.HasPrefix(doc.Data, pdfMagic) {
		ext = ".pdf"
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = parsePDF(doc.Data)
	case ".docx":
		text, err = parseDOCX(doc.Data)
	case ".pptx":
		text, err = parsePPTX(doc.Data)
	case ".xlsx":
		text, err = parseXLSX(doc.Data)
	case ".xlsm", ".xltx", ".xltm":
		text, err = parseWorkbook(doc.Data)
	case ".md", ".markdown":
		text, err = parseMarkdown(doc.Data)
	case ".txt":
		text = string(doc.Data)
	default:
		err = fmt.Errorf("unsupported file format: %q", ext)
	}
	if err != nil {
		return "", apperr.New(apperr.KindExtraction, "extract "+doc.Name, err)
	}

	log.Debug().Str("document", doc.Name).Int("bytes", len(doc.Data)).Int("chars", len(text)).Msg("Extracted text")
	return text, nil
}

func parsePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(pageText)
	}
	return content.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, paragraph := range strings.Split(content, "</w:p>") {
		line := strings.TrimSpace(extractTextFromXML(paragraph, "w:t", ""))
		if line == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func parsePPTX(data []byte) (string, error) {
	f, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		slide, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		slideText := strings.TrimSpace(extractTextFromXML(string(slide), "a:t", " "))
		if slideText != "" {
			text.WriteString(slideText)
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func parseXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func parseWorkbook(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// extractTextFromXML collects the character data of every <tag>...</tag>
// element, joined by sep.
func extractTextFromXML(xmlContent, tag, sep string) string {
	var text strings.Builder
	open, closing := "<"+tag, "</"+tag+">"
	rest := xmlContent
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			break
		}
		rest = rest[start+len(open):]
		// skip <w:tbl> style prefixes of other tags and attributes
		if len(rest) == 0 || (rest[0] != '>' && rest[0] != ' ') {
			continue
		}
		gt := strings.Index(rest, ">")
		if gt < 0 {
			break
		}
		if gt > 0 && rest[gt-1] == '/' {
			rest = rest[gt+1:]
			continue
		}
		rest = rest[gt+1:]
		end := strings.Index(rest, closing)
		if end < 0 {
			break
		}
		if text.Len() > 0 {
			text.WriteString(sep)
		}
		text.WriteString(rest[:end])
		rest = rest[end+len(closing):]
	}
	return text.String()
}
