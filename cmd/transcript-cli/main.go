package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	"github.com/spicer-enrichment/registrar-api/internal/repository"
	"github.com/spicer-enrichment/registrar-api/pkg/config"
	"github.com/spicer-enrichment/registrar-api/pkg/database"
	"github.com/spicer-enrichment/registrar-api/pkg/export"
)

func main() {
	studentID := flag.String("student", "", "student id to load from the database")
	scores := flag.String("scores", "", "offline scores, e.g. RELB151=88,EDUC131=72")
	name := flag.String("name", "", "student name for offline transcripts")
	pdfPath := flag.String("pdf", "", "also write the transcript PDF to this path")
	flag.Parse()

	engine := gradeengine.New()
	var (
		record *gradeengine.TranscriptRecord
		err    error
	)
	switch {
	case *studentID != "":
		record, err = loadRecord(context.Background(), engine, *studentID)
	case *scores != "":
		var parsed map[string]float64
		parsed, err = parseScores(*scores, os.Stderr)
		if err == nil {
			record, err = engine.BuildTranscript(gradeengine.StudentIdentity{Name: *name}, parsed)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		color.Red("transcript failed: %v", err)
		os.Exit(1)
	}

	printTranscript(os.Stdout, record)

	if *pdfPath != "" {
		if err := writePDF(*pdfPath, record); err != nil {
			color.Red("pdf failed: %v", err)
			os.Exit(1)
		}
		color.Green("PDF written to %s", *pdfPath)
	}
}

func loadRecord(ctx context.Context, engine *gradeengine.Engine, id string) (*gradeengine.TranscriptRecord, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	student, err := repository.NewStudentRepository(db).FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load student %s: %w", id, err)
	}
	grades, err := repository.NewGradeRepository(db).ListByStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.BuildTranscript(gradeengine.StudentIdentity{
		ID:                 student.ID,
		RegistrationNumber: student.RegistrationNumber,
		Name:               student.FullName,
		DateOfBirth:        student.DateOfBirth,
		BasisOfAdmission:   student.BasisOfAdmission,
	}, models.ScoreMap(grades))
}

// parseScores reads KEY=score pairs. Unknown keys are rejected so typos are not silently scored as 0.
// A non-numeric score is reported on warn and counted as 0.
func parseScores(raw string, warn io.Writer) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed score %q", pair)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, known := gradeengine.CourseByKey(key); !known {
			return nil, fmt.Errorf("unknown course %s", key)
		}
		score, err := gradeengine.ParseScore(strings.TrimSpace(value))
		if err != nil {
			color.New(color.FgYellow).Fprintf(warn, "warning: %s: %v, using 0\n", key, err)
		}
		out[key] = score
	}
	return out, nil
}

func printTranscript(w io.Writer, record *gradeengine.TranscriptRecord) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(w, "\n=== %s ===\n", orDash(record.Student.Name))
	if record.Student.RegistrationNumber != "" {
		fmt.Fprintf(w, "ID No: %s\n", record.Student.RegistrationNumber)
	}
	fmt.Fprintf(w, "Scale: %s\n", record.ScaleVersion)

	for _, semester := range record.Semesters {
		color.New(color.FgYellow).Fprintf(w, "\nSemester %s\n", semester.Semester)
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Course No", "Course Title", "Hrs", "Gr", "Pts"})
		for _, result := range semester.Results {
			table.Append([]string{
				result.Course.Code,
				result.Course.Title,
				strconv.Itoa(result.Course.CreditHours),
				result.LetterGrade,
				strconv.FormatFloat(result.GradePoints, 'f', 2, 64),
			})
		}
		table.SetFooter([]string{"", "Total", strconv.Itoa(semester.TotalCreditHours), "", strconv.FormatFloat(semester.TotalGradePoints, 'f', 2, 64)})
		table.Render()

		fmt.Fprintf(w, "SGPA: %.2f  Result: ", semester.SGPA)
		result := export.ResultLabel(semester.Passed)
		if semester.Passed {
			color.New(color.FgGreen).Fprintln(w, result)
		} else {
			color.New(color.FgRed).Fprintln(w, result)
		}
	}
	heading.Fprintf(w, "\nCGPA : %.2f\n", record.CGPA)
}

func writePDF(path string, record *gradeengine.TranscriptRecord) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	renderer := export.NewTranscriptRenderer(export.TranscriptLayout{
		InstitutionName: cfg.Institution.Name,
		AddressLines:    cfg.Institution.AddressLines,
		Phone:           cfg.Institution.Phone,
		Title:           cfg.Institution.Title,
	})
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := renderer.RenderTo(file, record, time.Now()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
