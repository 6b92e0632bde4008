// Package result defines the records produced by the results scraper and the
// entries that make up a batch response.
package result

import (
	"encoding/json"
	"strings"
)

// Fallback values used when the portal markup lacks a field.
const (
	FallbackText  = "N/A"
	FallbackGrade = "NA"
)

// SeparatorText is the value carried by a separator entry in a batch response.
var SeparatorText = strings.Repeat("*", 36)

// Subject is one row of the theory or practical subject table.
// All values are kept as text because the portal does not guarantee numeric
// formatting (absent marks, "AB", grace markers and so on).
type Subject struct {
	Code   string `json:"subject_code"`
	Name   string `json:"subject_name"`
	ESE    string `json:"ese"`
	IA     string `json:"ia"`
	Total  string `json:"total"`
	Grade  string `json:"grade"`
	Credit string `json:"credit"`
}

// SemesterGrade pairs a semester label with its SGPA/CGPA text.
//
// A placeholder grade serializes as {"semester":"sgpa"} and heads the
// semester_grades list of every record.
type SemesterGrade struct {
	Semester    string
	SGPA        string
	Placeholder bool
}

// PlaceholderGrade returns the leading placeholder entry of semester_grades.
func PlaceholderGrade() SemesterGrade {
	return SemesterGrade{Semester: "sgpa", Placeholder: true}
}

type gradeJSON struct {
	Semester string  `json:"semester"`
	SGPA     *string `json:"sgpa,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (g SemesterGrade) MarshalJSON() ([]byte, error) {
	out := gradeJSON{Semester: g.Semester}
	if !g.Placeholder {
		sgpa := g.SGPA
		out.SGPA = &sgpa
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *SemesterGrade) UnmarshalJSON(data []byte) error {
	var in gradeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = SemesterGrade{Semester: in.Semester}
	if in.SGPA == nil {
		g.Placeholder = true
	} else {
		g.SGPA = *in.SGPA
	}
	return nil
}

// StudentResult is one student's outcome for one semester examination.
type StudentResult struct {
	University        string          `json:"university"`
	ExamName          string          `json:"exam_name"`
	RegistrationNo    string          `json:"registration_no"`
	Semester          string          `json:"semester"`
	ExamDate          string          `json:"exam_date"`
	StudentName       string          `json:"student_name"`
	CollegeName       string          `json:"college_name"`
	CourseName        string          `json:"course_name"`
	TheorySubjects    []Subject       `json:"theory_subjects"`
	PracticalSubjects []Subject       `json:"practical_subjects"`
	SGPA              string          `json:"sgpa"`
	SemesterGrades    []SemesterGrade `json:"semester_grades"`
	Remarks           string          `json:"remarks"`
	PublishDate       string          `json:"publish_date"`
}

// Failed reports whether the remarks list failed subjects.
func (r *StudentResult) Failed() bool {
	return strings.HasPrefix(r.Remarks, "FAIL")
}
