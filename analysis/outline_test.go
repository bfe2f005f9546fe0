package analysis

import "testing"

const sampleDoc = `# Guide
intro words here

## Setup
step one
step two

` + "```" + `
# not a heading
` + "```" + `

## Usage
run it

# Appendix
extra
`

func TestAnalyzeSections(t *testing.T) {
	doc, err := Analyze(sampleDoc)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(doc.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d: %+v", len(doc.Sections), doc.Sections)
	}

	titles := []string{"Guide", "Setup", "Usage", "Appendix"}
	for i, want := range titles {
		if doc.Sections[i].Title != want {
			t.Fatalf("section %d: expected title %q, got %q", i, want, doc.Sections[i].Title)
		}
	}

	if doc.Sections[0].Level != 1 || doc.Sections[1].Level != 2 {
		t.Fatalf("unexpected levels: %+v", doc.Sections)
	}

	// Setup closes when Usage opens; Guide closes when Appendix opens.
	if doc.Sections[1].EndLine >= doc.Sections[2].StartLine {
		t.Fatalf("setup section not closed before usage: %+v", doc.Sections)
	}
	if doc.Sections[0].EndLine != doc.Sections[3].StartLine-1 {
		t.Fatalf("guide section should close at appendix: %+v", doc.Sections)
	}
}

func TestAnalyzeIgnoresFencedHeadings(t *testing.T) {
	doc, err := Analyze(sampleDoc)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, section := range doc.Sections {
		if section.Title == "not a heading" {
			t.Fatalf("fenced heading leaked into sections: %+v", doc.Sections)
		}
	}
}

func TestAnalyzeCounts(t *testing.T) {
	doc, err := Analyze("one two\nthree")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if doc.Lines != 2 || doc.Words != 3 {
		t.Fatalf("unexpected counts: %+v", doc)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	doc, err := Analyze("")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if doc.Lines != 0 || doc.Words != 0 || len(doc.Sections) != 0 {
		t.Fatalf("expected empty document, got %+v", doc)
	}
}

func TestAnalyzeRejectsInvalidUTF8(t *testing.T) {
	if _, err := Analyze(string([]byte{0xff, 0xfe})); err == nil {
		t.Fatalf("expected invalid UTF-8 error")
	}
}

func TestSectionWordCounts(t *testing.T) {
	doc, err := Analyze("# A\none two\n# B\nthree")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %+v", doc.Sections)
	}
	// Each section counts its heading word plus its body words.
	if doc.Sections[0].Words != 3 {
		t.Fatalf("section A words: expected 3, got %d", doc.Sections[0].Words)
	}
	if doc.Sections[1].Words != 2 {
		t.Fatalf("section B words: expected 2, got %d", doc.Sections[1].Words)
	}
}
