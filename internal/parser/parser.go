package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"file-qa/internal/helper"
	"file-qa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
)

const (
	ExtPDF      = "pdf"
	ExtDOCX     = "docx"
	ExtText     = "txt"
	ExtMarkdown = "md"
)

// SupportedExtensions lists the upload formats the loader understands
var SupportedExtensions = []string{ExtPDF, ExtDOCX, ExtText, ExtMarkdown}

// IsSupported reports whether fileName carries an accepted extension
func IsSupported(fileName string) bool {
	ext := helper.FileExtension(fileName)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadFile reads the document at path and extracts its text
func LoadFile(filePath string) (string, error) {
	if !IsSupported(filePath) {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, filepath.Ext(filePath))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return LoadDocument(filepath.Base(filePath), data)
}

// LoadDocument extracts raw text from data, dispatching on the extension of fileName
func LoadDocument(fileName string, data []byte) (string, error) {
	ext := helper.FileExtension(fileName)
	log.Debug().Str("file", fileName).Str("ext", ext).Int("bytes", len(data)).Msg("Loading document")

	switch ext {
	case ExtPDF:
		return parsePDF(data)
	case ExtDOCX:
		return parseDOCX(data)
	case ExtText:
		return parseText(data)
	case ExtMarkdown:
		return parseMarkdown(data)
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, ext)
	}
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %v", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %v", i, err)
		}
		// pages end on a paragraph boundary for the chunker
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	return text.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %v", err)
	}
	defer r.Close()

	return extractTextFromXML(r.Editable().GetContent())
}

func parseText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text file is not valid UTF-8")
	}
	return string(data), nil
}

// extractTextFromXML pulls the visible text runs out of a word/document.xml body,
// one line per paragraph
func extractTextFromXML(xmlContent string) (string, error) {
	var (
		text   strings.Builder
		inText bool
	)
	decoder := xml.NewDecoder(strings.NewReader(xmlContent))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx body: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				text.WriteString("\t")
			case "br", "cr":
				text.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}
	return text.String(), nil
}
