package service

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/tieubaoca/knowledge-base-be/types"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[^\S\n]+`)
	blankLinesRe      = regexp.MustCompile(`\n\s*\n+`)
	disallowedCharsRe = regexp.MustCompile(`[^\x{4E00}-\x{9FA5}a-zA-Z0-9\s.,!?;:，。！？；：、""''（）()\-—]`)
	pdfinfoPagesRe    = regexp.MustCompile(`Pages:\s+(\d+)`)
)

// pdfExtractStrategy is one way of pulling text out of a single PDF page.
// Strategies are tried in order until one returns non-empty text.
type pdfExtractStrategy struct {
	name    string
	extract func(filePath string, pageNumber int) (string, error)
}

// ExtractService turns uploaded files into plain text. PDF extraction shells
// out to poppler utilities with a tesseract OCR fallback for scanned pages.
type ExtractService struct {
	pdfStrategies []pdfExtractStrategy
}

func NewExtractService() *ExtractService {
	return &ExtractService{
		pdfStrategies: []pdfExtractStrategy{
			{name: "pdftotext", extract: extractPageWithPdftotext},
			{name: "tesseract", extract: extractPageWithTesseract},
		},
	}
}

// ExtractText extracts and normalizes the text content of the file at
// filePath. fileType is the lowercased extension without the dot.
func (s *ExtractService) ExtractText(filePath, fileType string) (string, error) {
	var text string
	var err error
	switch fileType {
	case "pdf":
		text, err = s.extractPDF(filePath)
	case "doc", "docx":
		text, err = extractDocx(filePath)
	case "txt":
		text, err = extractTxt(filePath)
	default:
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		return "", err
	}
	return CleanText(text), nil
}

func (s *ExtractService) extractPDF(filePath string) (string, error) {
	totalPages, err := getNumPages(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}

	var pages []string
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		text, err := s.extractPage(filePath, pageNum)
		if err != nil {
			log.Printf("Warning: failed to extract text from page %d: %v", pageNum, err)
			continue
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no text extracted from %d pages", types.ErrExtractionFailed, totalPages)
	}
	return strings.Join(pages, "\n"), nil
}

func (s *ExtractService) extractPage(filePath string, pageNumber int) (string, error) {
	var lastErr error
	for _, strategy := range s.pdfStrategies {
		text, err := strategy.extract(filePath, pageNumber)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("%s got nothing at page %d", strategy.name, pageNumber)
	}
	return "", fmt.Errorf("failed to extract text: %w", lastErr)
}

// extractPageWithPdftotext extracts text from one page using the pdftotext utility.
func extractPageWithPdftotext(filePath string, pageNumber int) (string, error) {
	cmd := exec.Command("pdftotext",
		"-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		filePath, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed for page %d: %w", pageNumber, err)
	}
	if trimmed := strings.TrimSpace(out.String()); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

// extractPageWithTesseract rasterizes one page with pdftoppm and OCRs the image.
func extractPageWithTesseract(pdfPath string, pageNumber int) (string, error) {
	tempFolder, err := os.MkdirTemp("", "ocr-page-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempFolder)

	convertCmd := exec.Command("pdftoppm",
		"-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-png", pdfPath, filepath.Join(tempFolder, "page"))
	if err := convertCmd.Run(); err != nil {
		return "", fmt.Errorf("error converting page %d to image: %w", pageNumber, err)
	}

	images, err := filepath.Glob(filepath.Join(tempFolder, "page-*.png"))
	if err != nil || len(images) == 0 {
		return "", fmt.Errorf("failed to read image files: %w", err)
	}

	ocrCmd := exec.Command("tesseract",
		images[0],
		"stdout",
		"-l", "chi_sim+eng",
		"--oem", "3", // LSTM OCR engine mode
		"--psm", "3", // auto page segmentation
	)
	var ocrOut bytes.Buffer
	ocrCmd.Stdout = &ocrOut
	if err := ocrCmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run tesseract: %w", err)
	}
	if trimmed := strings.TrimSpace(ocrOut.String()); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

// getNumPages uses pdfinfo to get the total number of pages in a PDF file.
func getNumPages(pdfPath string) (int, error) {
	cmd := exec.Command("pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pdfinfoPagesRe.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}
	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

// docx body markup, namespace-agnostic: only local element names matter.
const (
	docxTagParagraph = "p"
	docxTagRun       = "t"
	docxTagTable     = "tbl"
	docxTagRow       = "tr"
	docxTagCell      = "tc"
)

// extractDocx reads the main document part of a .docx archive and emits
// body paragraphs first, then table content row by row with cells joined
// by spaces.
func extractDocx(filePath string) (string, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: not a valid docx archive: %v", types.ErrExtractionFailed, err)
	}
	defer reader.Close()

	var document *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("%w: word/document.xml not found", types.ErrExtractionFailed)
	}

	rc, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	defer rc.Close()

	paragraphs, tables, err := walkDocxBody(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}

	parts := append(paragraphs, tables...)
	return strings.Join(parts, "\n"), nil
}

// walkDocxBody streams the document XML once, collecting paragraph text
// outside tables and cell text inside them.
func walkDocxBody(r io.Reader) (paragraphs, tables []string, err error) {
	decoder := xml.NewDecoder(r)

	tblDepth := 0
	var paragraph strings.Builder
	inParagraph := false
	var cellParts []string
	var rowCells []string
	var tableRows []string

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case docxTagTable:
				tblDepth++
			case docxTagParagraph:
				inParagraph = true
				paragraph.Reset()
			case docxTagRun:
				if inParagraph {
					var runText string
					if err := decoder.DecodeElement(&runText, &t); err != nil {
						return nil, nil, err
					}
					paragraph.WriteString(runText)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case docxTagTable:
				tblDepth--
				if tblDepth == 0 && len(tableRows) > 0 {
					tables = append(tables, strings.Join(tableRows, "\n"))
					tableRows = nil
				}
			case docxTagParagraph:
				inParagraph = false
				text := strings.TrimSpace(paragraph.String())
				if text == "" {
					continue
				}
				if tblDepth > 0 {
					cellParts = append(cellParts, text)
				} else {
					paragraphs = append(paragraphs, text)
				}
			case docxTagCell:
				if cell := strings.TrimSpace(strings.Join(cellParts, " ")); cell != "" {
					rowCells = append(rowCells, cell)
				}
				cellParts = nil
			case docxTagRow:
				if row := strings.TrimSpace(strings.Join(rowCells, " ")); row != "" {
					tableRows = append(tableRows, row)
				}
				rowCells = nil
			}
		}
	}
	return paragraphs, tables, nil
}

// txtEncodings are tried in order on files that are not valid UTF-8.
var txtEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
}

// extractTxt reads a plain-text file, accepting UTF-8 directly and falling
// back to common Chinese encodings and UTF-16.
func extractTxt(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, candidate := range txtEncodings {
		decoded, err := candidate.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), nil
	}
	return "", fmt.Errorf("%w: %s", types.ErrEncodingUndetected, filepath.Base(filePath))
}

// CleanText normalizes extracted text: horizontal whitespace runs collapse
// to a single space, characters outside the allowed set (CJK, latin,
// digits, common punctuation) are dropped, and blank lines are removed so
// every remaining newline is a paragraph boundary.
func CleanText(text string) string {
	cleaned := horizontalSpaceRe.ReplaceAllString(text, " ")
	cleaned = disallowedCharsRe.ReplaceAllString(cleaned, "")
	cleaned = blankLinesRe.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}
