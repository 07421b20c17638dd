package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/export"
)

// StudentCSVHeaders is the column order of the roster export.
var StudentCSVHeaders = []string{
	"registrationNumber", "registrationType", "name", "email", "phoneNumber", "gender", "maritalStatus",
	"motherTongue", "isAdventist", "dateOfBirth", "basisOfAdmission", "collegeAttended", "union",
	"sectionRegionConference", "address", "cumulativeGPA",
}

type rosterReader interface {
	ListAll(ctx context.Context) ([]models.Student, error)
}

// ExportService renders the student roster.
type ExportService struct {
	students rosterReader
	csv      *export.CSVExporter
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(students rosterReader, csv *export.CSVExporter, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{students: students, csv: csv, logger: logger}
}

// StudentsCSV returns every student as CSV. An empty roster yields only the header row.
func (s *ExportService) StudentsCSV(ctx context.Context) ([]byte, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"registrationNumber":      st.RegistrationNumber,
			"registrationType":        string(st.RegistrationType),
			"name":                    st.FullName,
			"email":                   st.Email,
			"phoneNumber":             st.PhoneNumber,
			"gender":                  st.Gender,
			"maritalStatus":           st.MaritalStatus,
			"motherTongue":            st.MotherTongue,
			"isAdventist":             st.IsAdventist,
			"dateOfBirth":             st.DateOfBirth,
			"basisOfAdmission":        st.BasisOfAdmission,
			"collegeAttended":         st.CollegeAttended,
			"union":                   st.Union,
			"sectionRegionConference": st.SectionRegionConference,
			"address":                 st.Address,
			"cumulativeGPA":           strconv.FormatFloat(st.CumulativeGPA, 'f', 2, 64),
		})
	}

	out, err := s.csv.Render(export.Dataset{Headers: StudentCSVHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	s.logger.Info("student roster exported", zap.Int("rows", len(rows)))
	return out, nil
}
