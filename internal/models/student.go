package models

import "time"

// RegistrationType distinguishes first-time applicants from returning ones.
type RegistrationType string

const (
	RegistrationTypeNew RegistrationType = "NEW"
	RegistrationTypeOld RegistrationType = "OLD"
)

// Student represents a learner registered for the enrichment programme.
type Student struct {
	ID                      string           `db:"id" json:"id"`
	RegistrationNumber      string           `db:"registration_number" json:"registration_number"`
	RegistrationType        RegistrationType `db:"registration_type" json:"registration_type"`
	FullName                string           `db:"full_name" json:"full_name"`
	Email                   string           `db:"email" json:"email"`
	PasswordHash            string           `db:"password_hash" json:"-"`
	DateOfBirth             string           `db:"date_of_birth" json:"date_of_birth"`
	BasisOfAdmission        string           `db:"basis_of_admission" json:"basis_of_admission"`
	CollegeAttended         string           `db:"college_attended" json:"college_attended"`
	Gender                  string           `db:"gender" json:"gender"`
	MaritalStatus           string           `db:"marital_status" json:"marital_status"`
	MotherTongue            string           `db:"mother_tongue" json:"mother_tongue"`
	IsAdventist             string           `db:"is_adventist" json:"is_adventist"`
	PhoneNumber             string           `db:"phone_number" json:"phone_number"`
	Union                   string           `db:"union_name" json:"union,omitempty"`
	SectionRegionConference string           `db:"section_region_conference" json:"section_region_conference,omitempty"`
	Address                 string           `db:"address" json:"address,omitempty"`
	PaymentScreenshot       string           `db:"payment_screenshot" json:"payment_screenshot"`
	CumulativeGPA           float64          `db:"cumulative_gpa" json:"cumulative_gpa"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search           string
	RegistrationType RegistrationType
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// StudentProfile is a student together with the stored course grades.
type StudentProfile struct {
	Student
	Grades []CourseGrade `json:"grades"`
}
