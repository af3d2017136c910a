package docstore

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Extracted is the structured representation of a word-processing document:
// the plain text plus any tables preserved row by row, which the regulation
// parser needs to locate the amendment comparison table.
type Extracted struct {
	Text   string       `json:"text"`
	Tables [][][]string `json:"tables,omitempty"` // table -> row -> cell
}

// ParseDocx extracts text and tables from a .docx archive. Only the main
// document part is read; headers, footers and embedded objects are skipped.
func ParseDocx(r io.ReaderAt, size int64) (*Extracted, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open document part: %w", err)
			}
			defer rc.Close()
			return parseDocumentXML(rc)
		}
	}

	return nil, fmt.Errorf("docx archive has no word/document.xml part")
}

// parseDocumentXML walks the WordprocessingML token stream. Text runs inside
// table cells accumulate into the current cell; everything else goes to the
// body text. Nested tables are flattened into their parent cell.
func parseDocumentXML(r io.Reader) (*Extracted, error) {
	dec := xml.NewDecoder(r)

	var (
		text       strings.Builder
		cell       strings.Builder
		tables     [][][]string
		curTable   [][]string
		curRow     []string
		tableDepth int
		inRun      bool
	)

	write := func(s string) {
		if tableDepth > 0 {
			cell.WriteString(s)
		} else {
			text.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					curTable = nil
				}
			case "tr":
				if tableDepth == 1 {
					curRow = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "t":
				inRun = true
			case "tab":
				write("\t")
			case "br", "cr":
				write("\n")
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				write("\n")
			case "tc":
				if tableDepth == 1 {
					curRow = append(curRow, strings.TrimSpace(cell.String()))
					cell.Reset()
				}
			case "tr":
				if tableDepth == 1 && len(curRow) > 0 {
					curTable = append(curTable, curRow)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 && len(curTable) > 0 {
					tables = append(tables, curTable)
					// Table content is part of the plain text as well.
					for _, row := range curTable {
						text.WriteString(strings.Join(row, "\t"))
						text.WriteString("\n")
					}
				}
			}

		case xml.CharData:
			if inRun {
				write(string(t))
			}
		}
	}

	return &Extracted{Text: text.String(), Tables: tables}, nil
}
