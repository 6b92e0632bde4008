package testutil

import (
	"fmt"
	"html"
	"strings"
)

// PortalSubject is one subject row rendered into a result page.
type PortalSubject struct {
	Code, Name, ESE, IA, Total, Grade, Credit string
}

// PortalPage renders a result page with the portal's ASP.NET markup.
// Empty fields are left out of the page entirely.
type PortalPage struct {
	ExamName    string
	Semester    string
	ExamDate    string
	StudentName string
	CollegeName string
	CourseName  string
	Theory      []PortalSubject
	Practical   []PortalSubject
	SGPA        string
	Grades      []string
	PublishDate string
}

// SamplePage returns a passing first semester result for regNo.
func SamplePage(regNo string) PortalPage {
	return PortalPage{
		ExamName:    "B.Tech. 1st Semester Examination, 2023",
		Semester:    "I",
		ExamDate:    "March/2024",
		StudentName: "STUDENT " + regNo,
		CollegeName: "Government Engineering College, Vaishali",
		CourseName:  "Computer Science & Engineering",
		Theory: []PortalSubject{
			{"100101", "Mathematics-I", "48", "24", "72", "A", "4"},
			{"100102", "Physics", "40", "20", "60", "B", "4"},
		},
		Practical: []PortalSubject{
			{"100101P", "Physics Lab", "20", "25", "45", "A+", "1"},
		},
		SGPA:        "8.12",
		Grades:      []string{"8.12", "", "", "", "", "", "", "", "8.12"},
		PublishDate: "20/04/2024",
	}
}

// HTML renders the page.
func (p PortalPage) HTML() string {
	var b strings.Builder
	b.WriteString("<html><body><form>")

	if p.ExamName != "" {
		span(&b, "ContentPlaceHolder1_DataList4_Exam_Name_0", p.ExamName)
	}

	b.WriteString(`<table id="ContentPlaceHolder1_DataList1">`)
	if p.StudentName != "" {
		b.WriteString("<tr><td>")
		span(&b, "ContentPlaceHolder1_DataList1_StudentNameLabel_0", p.StudentName)
		b.WriteString("</td></tr>")
	}
	if p.CollegeName != "" {
		b.WriteString("<tr><td>")
		span(&b, "ContentPlaceHolder1_DataList1_CollegeNameLabel_0", p.CollegeName)
		b.WriteString("</td></tr>")
	}
	if p.CourseName != "" {
		b.WriteString("<tr><td>")
		span(&b, "ContentPlaceHolder1_DataList1_CourseLabel_0", p.CourseName)
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")

	b.WriteString(`<table id="ContentPlaceHolder1_DataList2"><tr><td>`)
	if p.Semester != "" {
		span(&b, "ContentPlaceHolder1_DataList2_Exam_Name_0", p.Semester)
	}
	b.WriteString("</td>")
	if p.ExamDate != "" {
		fmt.Fprintf(&b, "<td>Examination Held: %s</td>", html.EscapeString(p.ExamDate))
	}
	b.WriteString("</tr></table>")

	subjectTable(&b, "ContentPlaceHolder1_GridView1", p.Theory)
	subjectTable(&b, "ContentPlaceHolder1_GridView2", p.Practical)

	if p.SGPA != "" {
		span(&b, "ContentPlaceHolder1_DataList5_GROSSTHEORYTOTALLabel_0", p.SGPA)
	}

	if len(p.Grades) > 0 {
		b.WriteString(`<table id="ContentPlaceHolder1_GridView3"><tr>`)
		for _, h := range []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "Cur. CGPA"} {
			fmt.Fprintf(&b, "<th>%s</th>", h)
		}
		b.WriteString("</tr><tr>")
		for _, g := range p.Grades {
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(g))
		}
		b.WriteString("</tr></table>")
	}

	if p.PublishDate != "" {
		b.WriteString(`<table id="ContentPlaceHolder1_DataList3"><tr><td>Remarks</td></tr>`)
		fmt.Fprintf(&b, "<tr><td>Publish Date: %s</td></tr></table>", html.EscapeString(p.PublishDate))
	}

	b.WriteString("</form></body></html>")
	return b.String()
}

func span(b *strings.Builder, id, text string) {
	fmt.Fprintf(b, `<span id="%s">%s</span>`, id, html.EscapeString(text))
}

func subjectTable(b *strings.Builder, id string, subjects []PortalSubject) {
	fmt.Fprintf(b, `<table id="%s">`, id)
	b.WriteString("<tr><th>Subject Code</th><th>Subject Name</th><th>ESE</th><th>IA</th><th>Total</th><th>Grade</th><th>Credit</th></tr>")
	for _, s := range subjects {
		b.WriteString("<tr>")
		for _, v := range []string{s.Code, s.Name, s.ESE, s.IA, s.Total, s.Grade, s.Credit} {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(v))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
}
