// Package analysis turns a source snapshot into a structural document
// model. It is the derivation function the coordination engine invokes;
// everything here is pure and deterministic.
package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Section is one heading-delimited region of the document. A section ends
// at the next heading of the same or a higher level, or at end of input.
type Section struct {
	Title     string `json:"title"`
	Level     int    `json:"level"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Words     int    `json:"words"`
}

// Document is the derived structural model of one source snapshot.
type Document struct {
	Lines    int              `json:"lines"`
	Words    int              `json:"words"`
	Chars    int              `json:"chars"`
	Sections []Section        `json:"sections"`
	Metrics  map[string]Value `json:"metrics,omitempty"`
}

// Analyze parses source into its structural outline. Headings are lines
// starting with one to six '#' characters followed by a space; fenced code
// blocks are skipped so embedded examples do not produce phantom sections.
func Analyze(source string) (*Document, error) {
	if !utf8.ValidString(source) {
		return nil, fmt.Errorf("analysis: source is not valid UTF-8")
	}

	doc := &Document{Chars: utf8.RuneCountInString(source)}
	if source == "" {
		return doc, nil
	}

	lines := strings.Split(source, "\n")
	doc.Lines = len(lines)

	var open []int // indices into doc.Sections with unfinished spans
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		fenceToggle := strings.HasPrefix(trimmed, "```")

		var level int
		var title string
		if !inFence && !fenceToggle {
			level, title = headingOf(trimmed)
		}

		words := len(strings.Fields(line))
		if level > 0 {
			words = len(strings.Fields(title))
			// Close the sections ending at this heading before the heading's
			// words are attributed, so they count toward the new section and
			// its remaining ancestors only.
			for len(open) > 0 {
				last := open[len(open)-1]
				if doc.Sections[last].Level < level {
					break
				}
				doc.Sections[last].EndLine = i
				open = open[:len(open)-1]
			}
		}

		doc.Words += words
		for _, idx := range open {
			doc.Sections[idx].Words += words
		}

		if fenceToggle {
			inFence = !inFence
			continue
		}
		if level == 0 {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			Title:     title,
			Level:     level,
			StartLine: i + 1,
			EndLine:   len(lines),
			Words:     words,
		})
		open = append(open, len(doc.Sections)-1)
	}

	return doc, nil
}

func headingOf(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) || line[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(line[level:])
}

// env exposes the document to rule expressions.
func (d *Document) env() map[string]interface{} {
	titles := make([]string, 0, len(d.Sections))
	maxLevel := 0
	for _, section := range d.Sections {
		titles = append(titles, section.Title)
		if section.Level > maxLevel {
			maxLevel = section.Level
		}
	}
	return map[string]interface{}{
		"lines":     d.Lines,
		"words":     d.Words,
		"chars":     d.Chars,
		"sections":  len(d.Sections),
		"titles":    titles,
		"max_level": maxLevel,
	}
}
