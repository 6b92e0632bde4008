package parser

import "github.com/Sternrassler/beu-results/pkg/result"

// Field names a scalar field of result.StudentResult.
type Field string

const (
	FieldExamName    Field = "exam_name"
	FieldSemester    Field = "semester"
	FieldExamDate    Field = "exam_date"
	FieldStudentName Field = "student_name"
	FieldCollegeName Field = "college_name"
	FieldCourseName  Field = "course_name"
	FieldSGPA        Field = "sgpa"
	FieldPublishDate Field = "publish_date"
)

// FieldRule locates one scalar field in the result page.
type FieldRule struct {
	// Selector is a CSS selector; the text of all matches is concatenated.
	Selector string `json:"selector"`

	// AfterColon keeps only the text after the last ':' ("Label: Value" cells).
	AfterColon bool `json:"after_colon,omitempty"`

	// Fallback is used when the selector matches nothing or only whitespace.
	Fallback string `json:"fallback"`
}

// Layout maps the portal's markup to the fields of a StudentResult.
// Layout drift on the portal is handled by editing this table, usually via
// the "layout" section of the config file.
type Layout struct {
	University string              `json:"university"`
	Fields     map[Field]FieldRule `json:"fields"`

	TheoryTable    string `json:"theory_table"`
	PracticalTable string `json:"practical_table"`

	// GradeCells selects the cells of the semester grade row.
	GradeCells  string   `json:"grade_cells"`
	GradeLabels []string `json:"grade_labels"`

	// MinSubjectCells is the number of cells a subject row needs to be kept.
	MinSubjectCells int `json:"min_subject_cells"`

	FailGrade       string `json:"fail_grade"`
	PracticalSuffix string `json:"practical_suffix"`
}

// DefaultLayout returns the layout of the BEU results portal.
func DefaultLayout() Layout {
	return Layout{
		University: "Bihar Engineering University, Patna",
		Fields: map[Field]FieldRule{
			FieldExamName:    {Selector: "#ContentPlaceHolder1_DataList4_Exam_Name_0", Fallback: result.FallbackText},
			FieldSemester:    {Selector: "#ContentPlaceHolder1_DataList2_Exam_Name_0", Fallback: result.FallbackText},
			FieldExamDate:    {Selector: "#ContentPlaceHolder1_DataList2 td:nth-of-type(2)", AfterColon: true, Fallback: result.FallbackText},
			FieldStudentName: {Selector: "#ContentPlaceHolder1_DataList1_StudentNameLabel_0", Fallback: result.FallbackText},
			FieldCollegeName: {Selector: "#ContentPlaceHolder1_DataList1_CollegeNameLabel_0", Fallback: result.FallbackText},
			FieldCourseName:  {Selector: "#ContentPlaceHolder1_DataList1_CourseLabel_0", Fallback: result.FallbackText},
			FieldSGPA:        {Selector: "#ContentPlaceHolder1_DataList5_GROSSTHEORYTOTALLabel_0", Fallback: result.FallbackText},
			FieldPublishDate: {Selector: "#ContentPlaceHolder1_DataList3 tr:nth-of-type(2) td", AfterColon: true, Fallback: ""},
		},
		TheoryTable:     "#ContentPlaceHolder1_GridView1",
		PracticalTable:  "#ContentPlaceHolder1_GridView2",
		GradeCells:      "#ContentPlaceHolder1_GridView3 tr:nth-child(2) td",
		GradeLabels:     []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "Cur. CGPA"},
		MinSubjectCells: 7,
		FailGrade:       "F",
		PracticalSuffix: " (p)",
	}
}

// Merge returns l with every non-zero value of override applied.
// Field rules are merged one by one so a config file only needs to name the
// fields that moved. A rule without a selector keeps the current one, and a
// rule without a fallback keeps the current fallback.
func (l Layout) Merge(override Layout) Layout {
	out := l
	out.Fields = make(map[Field]FieldRule, len(l.Fields))
	for k, v := range l.Fields {
		out.Fields[k] = v
	}
	for k, v := range override.Fields {
		if cur, ok := out.Fields[k]; ok {
			if v.Selector == "" {
				v.Selector = cur.Selector
				v.AfterColon = cur.AfterColon
			}
			if v.Fallback == "" {
				v.Fallback = cur.Fallback
			}
		}
		out.Fields[k] = v
	}

	if override.University != "" {
		out.University = override.University
	}
	if override.TheoryTable != "" {
		out.TheoryTable = override.TheoryTable
	}
	if override.PracticalTable != "" {
		out.PracticalTable = override.PracticalTable
	}
	if override.GradeCells != "" {
		out.GradeCells = override.GradeCells
	}
	if len(override.GradeLabels) > 0 {
		out.GradeLabels = append([]string(nil), override.GradeLabels...)
	}
	if override.MinSubjectCells > 0 {
		out.MinSubjectCells = override.MinSubjectCells
	}
	if override.FailGrade != "" {
		out.FailGrade = override.FailGrade
	}
	if override.PracticalSuffix != "" {
		out.PracticalSuffix = override.PracticalSuffix
	}
	return out
}
