package dto

import (
	"io"

	"github.com/spicer-enrichment/registrar-api/internal/models"
)

// RegisterStudentRequest captures the multipart fields of POST /users/register.
type RegisterStudentRequest struct {
	RegistrationType        models.RegistrationType `form:"registrationType" json:"registrationType" validate:"required,oneof=NEW OLD"`
	Name                    string                  `form:"name" json:"name" validate:"required,max=120"`
	Email                   string                  `form:"email" json:"email" validate:"required,email"`
	Password                string                  `form:"password" json:"password" validate:"required,min=6,max=72"`
	DateOfBirth             string                  `form:"dateOfBirth" json:"dateOfBirth" validate:"required"`
	BasisOfAdmission        string                  `form:"basisOfAdmission" json:"basisOfAdmission" validate:"required"`
	CollegeAttended         string                  `form:"collegeAttended" json:"collegeAttended" validate:"required"`
	Gender                  string                  `form:"gender" json:"gender" validate:"required,oneof=Male Female Others"`
	MaritalStatus           string                  `form:"maritalStatus" json:"maritalStatus" validate:"required,oneof=Married Unmarried"`
	MotherTongue            string                  `form:"motherTongue" json:"motherTongue" validate:"required"`
	IsAdventist             string                  `form:"isAdventist" json:"isAdventist" validate:"required,oneof=Yes No"`
	PhoneNumber             string                  `form:"phoneNumber" json:"phoneNumber" validate:"required,max=20"`
	Union                   string                  `form:"union" json:"union"`
	SectionRegionConference string                  `form:"sectionRegionConference" json:"sectionRegionConference"`
	Address                 string                  `form:"address" json:"address"`
}

// UploadedFile is a file part extracted from a multipart request.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// RegisterStudentResponse is returned after a successful registration.
type RegisterStudentResponse struct {
	ID                 string `json:"id"`
	RegistrationNumber string `json:"registrationNumber"`
}

// StudentListQuery holds the query parameters of GET /admin/users.
type StudentListQuery struct {
	Search           string `form:"search"`
	RegistrationType string `form:"registrationType"`
	Page             int    `form:"page"`
	PageSize         int    `form:"pageSize"`
	SortBy           string `form:"sortBy"`
	SortOrder        string `form:"sortOrder"`
}

// AdminRegisterRequest creates a registrar account.
type AdminRegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
