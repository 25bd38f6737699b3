package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAcademicPeriodRepository implements academic.AcademicPeriodRepository using GORM
type GormAcademicPeriodRepository struct {
	db *gorm.DB
}

// NewGormAcademicPeriodRepository creates a new GormAcademicPeriodRepository
func NewGormAcademicPeriodRepository(db *gorm.DB) *GormAcademicPeriodRepository {
	return &GormAcademicPeriodRepository{db: db}
}

// FindByID finds a period of the school
func (r *GormAcademicPeriodRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*academic.AcademicPeriod, error) {
	var model models.AcademicPeriodModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Academic period")
	}
	return model.ToDomain(), nil
}

// FindActive returns the school's active period
func (r *GormAcademicPeriodRepository) FindActive(ctx context.Context, schoolID uuid.UUID) (*academic.AcademicPeriod, error) {
	var model models.AcademicPeriodModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND is_active = ?", schoolID, true).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Active academic period")
	}
	return model.ToDomain(), nil
}

// FindBySchool lists the school's periods, newest first
func (r *GormAcademicPeriodRepository) FindBySchool(ctx context.Context, schoolID uuid.UUID) ([]academic.AcademicPeriod, error) {
	var periodModels []models.AcademicPeriodModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ?", schoolID).
		Order("academic_year DESC, term DESC").
		Find(&periodModels).Error; err != nil {
		return nil, err
	}
	periods := make([]academic.AcademicPeriod, len(periodModels))
	for i, model := range periodModels {
		periods[i] = *model.ToDomain()
	}
	return periods, nil
}

// DeactivateAll clears is_active on every period of the school
func (r *GormAcademicPeriodRepository) DeactivateAll(ctx context.Context, schoolID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AcademicPeriodModel{}).
		Where("school_id = ? AND is_active = ?", schoolID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

// Save creates or updates a period
func (r *GormAcademicPeriodRepository) Save(ctx context.Context, period *academic.AcademicPeriod) error {
	model := models.AcademicPeriodModelFromDomain(period)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "Academic period")
}

// GormStudentRepository implements academic.StudentRepository using GORM
type GormStudentRepository struct {
	db *gorm.DB
}

// NewGormStudentRepository creates a new GormStudentRepository
func NewGormStudentRepository(db *gorm.DB) *GormStudentRepository {
	return &GormStudentRepository{db: db}
}

// FindByID finds a student of the school with its guardian links
func (r *GormStudentRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*academic.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).
		Preload("Guardians").
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Student")
	}
	return model.ToDomain(), nil
}

// FindByAdmissionNumber matches the admission number case-insensitively
func (r *GormStudentRepository) FindByAdmissionNumber(ctx context.Context, schoolID uuid.UUID, admissionNumber string) (*academic.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).
		Preload("Guardians").
		Where("school_id = ? AND UPPER(admission_number) = ?", schoolID, strings.ToUpper(strings.TrimSpace(admissionNumber))).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Student")
	}
	return model.ToDomain(), nil
}

// FindBySchool lists students of the school in admission number order
func (r *GormStudentRepository) FindBySchool(ctx context.Context, schoolID uuid.UUID, filter academic.StudentFilter) ([]academic.Student, error) {
	query := r.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.ActiveOnly {
		query = query.Where("status = ?", academic.StudentStatusActive)
	}

	var studentModels []models.StudentModel
	if err := query.Order("admission_number ASC").Find(&studentModels).Error; err != nil {
		return nil, err
	}
	students := make([]academic.Student, len(studentModels))
	for i, model := range studentModels {
		students[i] = *model.ToDomain()
	}
	return students, nil
}

// IsGuardian reports whether the user is linked to the student
func (r *GormStudentRepository) IsGuardian(ctx context.Context, studentID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StudentGuardianModel{}).
		Where("student_id = ? AND user_id = ?", studentID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a student and inserts any new guardian links
func (r *GormStudentRepository) Save(ctx context.Context, student *academic.Student) error {
	model := models.StudentModelFromDomain(student)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return translateError(err, "Student")
	}
	if len(student.GuardianIDs) == 0 {
		return nil
	}
	links := make([]models.StudentGuardianModel, len(student.GuardianIDs))
	for i, userID := range student.GuardianIDs {
		links[i] = models.StudentGuardianModel{StudentID: student.ID, UserID: userID, CreatedAt: time.Now()}
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

// Ensure the repositories implement their interfaces
var (
	_ academic.AcademicPeriodRepository = (*GormAcademicPeriodRepository)(nil)
	_ academic.StudentRepository        = (*GormStudentRepository)(nil)
)
