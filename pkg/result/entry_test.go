package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *StudentResult {
	return &StudentResult{
		University:     "Bihar Engineering University, Patna",
		ExamName:       "B.Tech 1st Semester Examination, 2023",
		RegistrationNo: "22104134010",
		Semester:       "I",
		ExamDate:       "12/02/2024",
		StudentName:    "ASHA KUMARI",
		CollegeName:    "Government Engineering College, Vaishali",
		CourseName:     "Computer Science & Engineering",
		TheorySubjects: []Subject{
			{Code: "100101", Name: "Mathematics-I", ESE: "45", IA: "20", Total: "65", Grade: "B", Credit: "4"},
		},
		PracticalSubjects: []Subject{},
		SGPA:              "7.45",
		SemesterGrades: []SemesterGrade{
			PlaceholderGrade(),
			{Semester: "I", SGPA: "7.45"},
		},
		Remarks:     "Pass",
		PublishDate: "20/03/2024",
	}
}

func TestEntry_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "separator",
			entry: Separator(),
			want:  `{"separator":"************************************"}`,
		},
		{
			name:  "error",
			entry: Failure("connection reset"),
			want:  `{"error":"connection reset"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.entry)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestEntry_MarshalRecord(t *testing.T) {
	got, err := json.Marshal(Record(sampleResult()))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got, &fields))

	assert.JSONEq(t, `"22104134010"`, string(fields["registration_no"]))
	assert.JSONEq(t, `[{"semester":"sgpa"},{"semester":"I","sgpa":"7.45"}]`, string(fields["semester_grades"]))
	assert.JSONEq(t, `[]`, string(fields["practical_subjects"]))
	assert.NotContains(t, fields, "Kind")
}

func TestEntry_MarshalRecordWithoutResult(t *testing.T) {
	_, err := json.Marshal(Entry{Kind: KindRecord})
	assert.Error(t, err)
}

func TestEntry_UnmarshalJSON(t *testing.T) {
	payload := `[
		{"university":"Bihar Engineering University, Patna","registration_no":"22104134010","semester_grades":[{"semester":"sgpa"},{"semester":"I","sgpa":"8.1"}]},
		{"separator":"************************************"},
		{"error":"Failed to fetch data"},
		{"error":{"code":500}}
	]`

	var entries []Entry
	require.NoError(t, json.Unmarshal([]byte(payload), &entries))
	require.Len(t, entries, 4)

	assert.Equal(t, KindRecord, entries[0].Kind)
	assert.Equal(t, "22104134010", entries[0].Result.RegistrationNo)
	assert.True(t, entries[0].Result.SemesterGrades[0].Placeholder)
	assert.Equal(t, "8.1", entries[0].Result.SemesterGrades[1].SGPA)

	assert.Equal(t, KindSeparator, entries[1].Kind)
	assert.Equal(t, Failure("Failed to fetch data"), entries[2])
	assert.Equal(t, Failure(`{"code":500}`), entries[3])
}

func TestRecordsAndErrors(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	b.RegistrationNo = "22104134011"

	entries := []Entry{Record(a), Separator(), Failure("timeout"), Record(b), Separator()}

	records := Records(entries)
	require.Len(t, records, 2)
	assert.Equal(t, "22104134010", records[0].RegistrationNo)
	assert.Equal(t, "22104134011", records[1].RegistrationNo)
	assert.Equal(t, []string{"timeout"}, Errors(entries))
}

func TestStudentResult_Failed(t *testing.T) {
	r := sampleResult()
	assert.False(t, r.Failed())

	r.Remarks = "FAIL: Physics (p)"
	assert.True(t, r.Failed())
}
