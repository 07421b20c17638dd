package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spicer-enrichment/registrar-api/internal/models"
)

const gradeColumns = "student_id, course_key, score, letter_grade, grade_points, credit_hours, scale_version, updated_at"

const upsertGradeQuery = `INSERT INTO student_grades (student_id, course_key, score, letter_grade, grade_points, credit_hours, scale_version, updated_at)
        VALUES (:student_id, :course_key, :score, :letter_grade, :grade_points, :credit_hours, :scale_version, :updated_at)
        ON CONFLICT (student_id, course_key)
        DO UPDATE SET score = EXCLUDED.score, letter_grade = EXCLUDED.letter_grade, grade_points = EXCLUDED.grade_points,
        credit_hours = EXCLUDED.credit_hours, scale_version = EXCLUDED.scale_version, updated_at = EXCLUDED.updated_at`

// GradeRepository stores per-course scores.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByStudent returns the stored grades of one student ordered by course key.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error) {
	query := fmt.Sprintf("SELECT %s FROM student_grades WHERE student_id = $1 ORDER BY course_key", gradeColumns)
	var grades []models.CourseGrade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListByStudents returns grades keyed by student ID.
func (r *GradeRepository) ListByStudents(ctx context.Context, studentIDs []string) (map[string][]models.CourseGrade, error) {
	result := make(map[string][]models.CourseGrade, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM student_grades WHERE student_id IN (?) ORDER BY student_id, course_key", gradeColumns), studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build grades query: %w", err)
	}
	var grades []models.CourseGrade
	if err := r.db.SelectContext(ctx, &grades, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list grades for students: %w", err)
	}
	for _, g := range grades {
		result[g.StudentID] = append(result[g.StudentID], g)
	}
	return result, nil
}

// SaveGrades upserts the given grades and stores the recomputed cumulative GPA atomically.
func (r *GradeRepository) SaveGrades(ctx context.Context, studentID string, grades []models.CourseGrade, cumulativeGPA float64) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save grades: %w", err)
	}
	for i := range grades {
		grades[i].StudentID = studentID
		grades[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertGradeQuery, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade %s: %w", grades[i].CourseKey, err)
		}
	}
	res, err := tx.ExecContext(ctx, "UPDATE students SET cumulative_gpa = $1, updated_at = $2 WHERE id = $3", cumulativeGPA, now, studentID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update cumulative gpa: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update cumulative gpa: %w", sql.ErrNoRows)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}
