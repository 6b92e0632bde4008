// Package parser turns a BEU result page into a result.StudentResult.
//
// Parsing never fails: any field the page does not carry degrades to its
// fallback value ("N/A", "NA" or an empty string).
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Parser extracts student results according to a Layout.
// A Parser holds no per-document state and is safe for concurrent use.
type Parser struct {
	layout Layout
	logger zerolog.Logger
}

// New creates a parser for layout.
func New(layout Layout) *Parser {
	return &Parser{
		layout: layout,
		logger: log.With().Str("component", "parser").Logger(),
	}
}

// Default creates a parser for the built-in portal layout.
func Default() *Parser {
	return New(DefaultLayout())
}

// Layout returns the layout the parser was built with.
func (p *Parser) Layout() Layout {
	return p.layout
}

// Parse converts document into a result for regNo.
// It returns nil when document is empty or cannot be read as HTML.
func (p *Parser) Parse(document string, regNo string) *result.StudentResult {
	if strings.TrimSpace(document) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		p.logger.Warn().Err(err).Str("reg_no", regNo).Msg("Unreadable result document")
		return nil
	}

	r := &result.StudentResult{
		University:     p.layout.University,
		ExamName:       p.field(doc, FieldExamName),
		RegistrationNo: regNo,
		Semester:       p.field(doc, FieldSemester),
		ExamDate:       p.field(doc, FieldExamDate),
		StudentName:    p.field(doc, FieldStudentName),
		CollegeName:    p.field(doc, FieldCollegeName),
		CourseName:     p.field(doc, FieldCourseName),
	}

	r.TheorySubjects = p.subjects(doc, p.layout.TheoryTable)
	r.PracticalSubjects = p.subjects(doc, p.layout.PracticalTable)
	r.SGPA = p.field(doc, FieldSGPA)
	r.SemesterGrades = p.semesterGrades(doc)
	r.Remarks = p.remarks(r.TheorySubjects, r.PracticalSubjects)
	r.PublishDate = p.field(doc, FieldPublishDate)

	p.logger.Debug().
		Str("reg_no", regNo).
		Int("theory", len(r.TheorySubjects)).
		Int("practical", len(r.PracticalSubjects)).
		Str("remarks", r.Remarks).
		Msg("Parsed result document")

	return r
}

// field reads one scalar field according to its rule.
func (p *Parser) field(doc *goquery.Document, name Field) string {
	rule, ok := p.layout.Fields[name]
	if !ok || rule.Selector == "" {
		return result.FallbackText
	}

	text := doc.Find(rule.Selector).Text()
	if rule.AfterColon {
		text = afterLastColon(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return rule.Fallback
	}
	return text
}

// afterLastColon returns the text following the last ':' or the whole text
// when there is none.
func afterLastColon(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// subjects reads the data rows of a subject table, skipping the header row.
func (p *Parser) subjects(doc *goquery.Document, table string) []result.Subject {
	out := []result.Subject{}
	if table == "" {
		return out
	}

	doc.Find(table + " tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}

		cells := row.Find("td")
		if cells.Length() < p.layout.MinSubjectCells {
			return
		}

		cell := func(n int) string {
			return strings.TrimSpace(cells.Eq(n).Text())
		}

		out = append(out, result.Subject{
			Code:   cell(0),
			Name:   cell(1),
			ESE:    cell(2),
			IA:     cell(3),
			Total:  cell(4),
			Grade:  cell(5),
			Credit: cell(6),
		})
	})

	return out
}

// semesterGrades zips the grade row cells with the semester labels behind
// the placeholder entry.
func (p *Parser) semesterGrades(doc *goquery.Document) []result.SemesterGrade {
	out := []result.SemesterGrade{result.PlaceholderGrade()}
	if p.layout.GradeCells == "" {
		return out
	}

	doc.Find(p.layout.GradeCells).Each(func(i int, cell *goquery.Selection) {
		if i >= len(p.layout.GradeLabels) {
			return
		}

		value := strings.TrimSpace(cell.Text())
		if value == "" {
			value = result.FallbackGrade
		}

		out = append(out, result.SemesterGrade{
			Semester: p.layout.GradeLabels[i],
			SGPA:     value,
		})
	})

	return out
}

// remarks lists failed subjects, theory first, practical ones suffixed.
func (p *Parser) remarks(theory, practical []result.Subject) string {
	var failed []string
	for _, s := range theory {
		if s.Grade == p.layout.FailGrade {
			failed = append(failed, s.Name)
		}
	}
	for _, s := range practical {
		if s.Grade == p.layout.FailGrade {
			failed = append(failed, s.Name+p.layout.PracticalSuffix)
		}
	}

	if len(failed) == 0 {
		return "Pass"
	}
	return "FAIL: " + strings.Join(failed, ", ")
}
