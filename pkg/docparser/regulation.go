package docparser

import (
	"log/slog"
	"strings"
	"time"

	"github.com/policyops/regamend/pkg/docstore"
	apperrors "github.com/policyops/regamend/pkg/errors"
)

// Column markers recognized in amendment comparison table headers.
var (
	newTextMarkers     = []string{"amended text", "amended after"}
	oldTextMarkers     = []string{"current text", "amended before"}
	explanationMarkers = []string{"explanation"}
)

// columnMap records which table column holds which logical field. A value of
// -1 means the column was not found in the header row.
type columnMap struct {
	newText     int
	oldText     int
	explanation int
}

// RegulationParser extracts amendment items from a regulatory comparison
// document: a table with amended/current/explanation columns, or free text
// as a fallback.
type RegulationParser struct {
	classifier SegmentClassifier
	logger     *slog.Logger
}

// NewRegulationParser creates a parser using the given segment classifier.
func NewRegulationParser(classifier SegmentClassifier) *RegulationParser {
	return &RegulationParser{
		classifier: classifier,
		logger:     slog.Default().With("component", "regulation-parser"),
	}
}

// Parse extracts amendment items from an extracted document. Malformed rows
// are skipped with a warning; an empty document is a validation error.
func (p *RegulationParser) Parse(doc *docstore.Extracted, filename string) (*RegulationDiffDoc, error) {
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, apperrors.NewValidation("document content is empty")
	}

	p.logger.Info("parsing regulation document", "filename", filename, "tables", len(doc.Tables))

	items := p.parseTables(doc.Tables)

	if len(items) == 0 {
		p.logger.Warn("no comparison table detected, falling back to plain text parsing", "filename", filename)
		items = p.parseText(doc.Text)
	}

	p.logger.Info("regulation document parsed", "filename", filename, "items", len(items))

	return &RegulationDiffDoc{
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		Items:      items,
	}, nil
}

// parseTables scans every table for a header row carrying the comparison
// markers and extracts one item per qualifying data row. Only the first
// header-like row of a table binds the column mapping.
func (p *RegulationParser) parseTables(tables [][][]string) []RegulationDiffItem {
	var items []RegulationDiffItem

	for tableIndex, table := range tables {
		headerFound := false
		var columns columnMap

		for rowIndex, row := range table {
			if !headerFound {
				if isHeaderRow(row) {
					columns = identifyColumns(row)
					headerFound = true
					p.logger.Debug("detected header row",
						"table", tableIndex, "row", rowIndex,
						"new_col", columns.newText, "old_col", columns.oldText, "explanation_col", columns.explanation)
				}
				continue
			}

			if allEmpty(row) {
				continue
			}
			if len(row) < 3 {
				p.logger.Debug("skipping row with too few cells", "table", tableIndex, "row", rowIndex, "cells", len(row))
				continue
			}

			item, ok := p.parseTableRow(row, columns)
			if !ok {
				p.logger.Warn("skipping row with no recognizable section title", "table", tableIndex, "row", rowIndex)
				continue
			}
			items = append(items, item)
		}
	}

	return items
}

// parseTableRow builds one amendment item from a data row, or reports false
// when no section title can be located in any column.
func (p *RegulationParser) parseTableRow(row []string, columns columnMap) (RegulationDiffItem, bool) {
	newText := cellAt(row, columns.newText)
	oldText := cellAt(row, columns.oldText)
	explanation := cellAt(row, columns.explanation)

	title := p.extractSectionTitle(newText, oldText, explanation)
	if title == "" {
		return RegulationDiffItem{}, false
	}

	newText = strings.TrimSpace(newText)
	oldText = strings.TrimSpace(oldText)

	return RegulationDiffItem{
		SectionTitle: title,
		OldText:      oldText,
		NewText:      newText,
		Explanation:  strings.TrimSpace(explanation),
		DiffType:     classifyDiff(oldText, newText),
		Anchors:      []string{p.classifier.Anchor(title)},
	}, true
}

// extractSectionTitle scans the candidate texts line by line for the first
// structural heading. Amended text takes precedence over current text, which
// takes precedence over the explanation.
func (p *RegulationParser) extractSectionTitle(texts ...string) string {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if level, ok := p.classifier.Classify(trimmed); ok && level != LevelItem {
				return trimmed
			}
		}
	}
	return ""
}

// parseText is the fallback for documents without a comparison table. Lines
// matching a structural heading start a new item; subsequent lines accumulate
// into old/new/explanation according to the most recent field label seen.
func (p *RegulationParser) parseText(text string) []RegulationDiffItem {
	var items []RegulationDiffItem
	var current *RegulationDiffItem
	mode := ""

	finalize := func() {
		if current == nil {
			return
		}
		current.OldText = strings.TrimSpace(current.OldText)
		current.NewText = strings.TrimSpace(current.NewText)
		current.Explanation = strings.TrimSpace(current.Explanation)
		current.DiffType = classifyDiff(current.OldText, current.NewText)
		items = append(items, *current)
		current = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if level, ok := p.classifier.Classify(line); ok && level != LevelItem {
			finalize()
			current = &RegulationDiffItem{
				SectionTitle: line,
				DiffType:     DiffModify,
				Anchors:      []string{p.classifier.Anchor(line)},
			}
			mode = ""
			continue
		}

		switch {
		case containsAnyFold(line, newTextMarkers):
			mode = "new"
			continue
		case containsAnyFold(line, oldTextMarkers):
			mode = "old"
			continue
		case containsAnyFold(line, explanationMarkers):
			mode = "explanation"
			continue
		}

		if current == nil {
			continue
		}
		switch mode {
		case "new":
			current.NewText += line + "\n"
		case "old":
			current.OldText += line + "\n"
		case "explanation":
			current.Explanation += line + "\n"
		}
	}
	finalize()

	return items
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		if containsAnyFold(cell, newTextMarkers) ||
			containsAnyFold(cell, oldTextMarkers) ||
			containsAnyFold(cell, explanationMarkers) {
			return true
		}
	}
	return false
}

func identifyColumns(header []string) columnMap {
	columns := columnMap{newText: -1, oldText: -1, explanation: -1}
	for i, cell := range header {
		switch {
		case containsAnyFold(cell, newTextMarkers):
			columns.newText = i
		case containsAnyFold(cell, oldTextMarkers):
			columns.oldText = i
		case containsAnyFold(cell, explanationMarkers):
			columns.explanation = i
		}
	}
	return columns
}

func cellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func containsAnyFold(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
