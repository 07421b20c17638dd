package gradeengine

// Semester identifies one of the two fixed enrichment semesters.
type Semester string

const (
	SemesterI  Semester = "I"
	SemesterII Semester = "II"
)

// Semesters lists the semesters in transcript order.
func Semesters() []Semester {
	return []Semester{SemesterI, SemesterII}
}

// CourseDefinition describes one course of the compiled-in catalog.
//
// Code is what gets printed on documents. Key is the identifier used by the stored
// score mapping; it only differs from Code where the printed code is shared by two
// courses.
type CourseDefinition struct {
	Code        string   `json:"code"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	CreditHours int      `json:"credit_hours"`
	Semester    Semester `json:"semester"`
}

// RecordKey returns the key under which the course's score is stored.
func (c CourseDefinition) RecordKey() string {
	if c.Key != "" {
		return c.Key
	}
	return c.Code
}

var catalog = [...]CourseDefinition{
	{Code: "RELB151", Title: "Christian Beliefs I", CreditHours: 2, Semester: SemesterI},
	{Code: "RELB291", Title: "Apocalyptic Literature", CreditHours: 2, Semester: SemesterI},
	{Code: "RELB125", Title: "Life and Teachings of Jesus", CreditHours: 3, Semester: SemesterI},
	{Code: "RELB238", Title: "Adventist Heritage", CreditHours: 3, Semester: SemesterI},
	{Code: "EDUC131", Title: "Philosophy of Education", CreditHours: 2, Semester: SemesterI},
	{Code: "RELB152", Title: "Christian Beliefs II", CreditHours: 3, Semester: SemesterII},
	{Code: "FNCE451", Title: "Church Stewardship & Finance", CreditHours: 3, Semester: SemesterII},
	{Code: "RELB292", Title: "Apocalyptic Literature", CreditHours: 2, Semester: SemesterII},
	// Printed as RELB152 on transcripts, scored from RELB151_2 rather than the RELB152 score.
	{Code: "RELB152", Key: "RELB151_2", Title: "Religions of the World", CreditHours: 2, Semester: SemesterII},
	{Code: "HLED121", Title: "Personal Health", CreditHours: 2, Semester: SemesterII},
}

// Catalog returns a copy of the fixed course catalog in transcript order.
func Catalog() []CourseDefinition {
	out := make([]CourseDefinition, len(catalog))
	copy(out, catalog[:])
	return out
}

// CourseByKey looks up a catalog course by its record key.
func CourseByKey(key string) (CourseDefinition, bool) {
	for _, course := range catalog {
		if course.RecordKey() == key {
			return course, true
		}
	}
	return CourseDefinition{}, false
}

// FilterBySemester returns the courses of the given catalog belonging to semester, preserving order.
func FilterBySemester(courses []CourseDefinition, semester Semester) []CourseDefinition {
	out := make([]CourseDefinition, 0, len(courses))
	for _, course := range courses {
		if course.Semester == semester {
			out = append(out, course)
		}
	}
	return out
}
