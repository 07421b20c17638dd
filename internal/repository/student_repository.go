package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spicer-enrichment/registrar-api/internal/models"
)

const studentColumns = `id, registration_number, registration_type, full_name, email, password_hash, date_of_birth,
        basis_of_admission, college_attended, gender, marital_status, mother_tongue, is_adventist, phone_number,
        union_name, section_region_conference, address, payment_screenshot, cumulative_gpa, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.RegistrationType != "" {
		conditions = append(conditions, fmt.Sprintf("registration_type = $%d", len(args)+1))
		args = append(args, filter.RegistrationType)
	}
	if filter.Search != "" {
		pos := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(registration_number) LIKE $%d)", pos, pos, pos))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"full_name":           "full_name",
		"registration_number": "registration_number",
		"cumulative_gpa":      "cumulative_gpa",
		"created_at":          "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student ordered by registration number.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY registration_number ASC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns), id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEmail fetches a student by login email.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1", studentColumns)
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail checks whether the email is already registered.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1", email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// LatestRegistrationNumber returns the highest registration number starting with prefix, or "" when none exists.
// Ordering by length first keeps the comparison numeric once the sequence outgrows three digits.
func (r *StudentRepository) LatestRegistrationNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	const query = `SELECT registration_number FROM students WHERE registration_number LIKE $1
        ORDER BY LENGTH(registration_number) DESC, registration_number DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &number, query, prefix+"%"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest registration number: %w", err)
	}
	return number, nil
}

// CreateWithGrades inserts a student and the initial course grades in one transaction.
func (r *StudentRepository) CreateWithGrades(ctx context.Context, student *models.Student, grades []models.CourseGrade) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	const insertStudent = `INSERT INTO students (id, registration_number, registration_type, full_name, email, password_hash, date_of_birth,
        basis_of_admission, college_attended, gender, marital_status, mother_tongue, is_adventist, phone_number,
        union_name, section_region_conference, address, payment_screenshot, cumulative_gpa, created_at, updated_at)
        VALUES (:id, :registration_number, :registration_type, :full_name, :email, :password_hash, :date_of_birth,
        :basis_of_admission, :college_attended, :gender, :marital_status, :mother_tongue, :is_adventist, :phone_number,
        :union_name, :section_region_conference, :address, :payment_screenshot, :cumulative_gpa, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create student: %w", err)
	}
	for i := range grades {
		grades[i].StudentID = student.ID
		grades[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertGradeQuery, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("seed grade %s: %w", grades[i].CourseKey, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}
