package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/academic"
)

// AcademicPeriodModel is the persistence model for academic periods.
type AcademicPeriodModel struct {
	SchoolAggregateModel
	AcademicYear int       `gorm:"not null"`
	Term         int       `gorm:"not null"`
	Name         string    `gorm:"type:varchar(100);not null"`
	StartDate    time.Time `gorm:"not null"`
	EndDate      time.Time `gorm:"not null"`
	IsActive     bool      `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (AcademicPeriodModel) TableName() string {
	return "academic_periods"
}

// ToDomain converts the persistence model to a domain AcademicPeriod.
func (m *AcademicPeriodModel) ToDomain() *academic.AcademicPeriod {
	return &academic.AcademicPeriod{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		AcademicYear:        m.AcademicYear,
		Term:                m.Term,
		Name:                m.Name,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		IsActive:            m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain AcademicPeriod.
func (m *AcademicPeriodModel) FromDomain(p *academic.AcademicPeriod) {
	m.FromDomainSchoolAggregateRoot(p.SchoolAggregateRoot)
	m.AcademicYear = p.AcademicYear
	m.Term = p.Term
	m.Name = p.Name
	m.StartDate = p.StartDate
	m.EndDate = p.EndDate
	m.IsActive = p.IsActive
}

// AcademicPeriodModelFromDomain creates a new persistence model from a domain AcademicPeriod.
func AcademicPeriodModelFromDomain(p *academic.AcademicPeriod) *AcademicPeriodModel {
	m := &AcademicPeriodModel{}
	m.FromDomain(p)
	return m
}

// StudentModel is the persistence model for students.
type StudentModel struct {
	SchoolAggregateModel
	ClassID         *uuid.UUID             `gorm:"type:uuid;index"`
	AdmissionNumber string                 `gorm:"type:varchar(50);not null"`
	FirstName       string                 `gorm:"type:varchar(100);not null"`
	LastName        string                 `gorm:"type:varchar(100)"`
	Status          academic.StudentStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Guardians       []StudentGuardianModel `gorm:"foreignKey:StudentID"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ToDomain converts the persistence model to a domain Student.
func (m *StudentModel) ToDomain() *academic.Student {
	s := &academic.Student{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		ClassID:             m.ClassID,
		AdmissionNumber:     m.AdmissionNumber,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		Status:              m.Status,
		GuardianIDs:         make([]uuid.UUID, 0, len(m.Guardians)),
	}
	for _, g := range m.Guardians {
		s.GuardianIDs = append(s.GuardianIDs, g.UserID)
	}
	return s
}

// FromDomain populates the persistence model from a domain Student.
// Guardian links are written separately by the repository.
func (m *StudentModel) FromDomain(s *academic.Student) {
	m.FromDomainSchoolAggregateRoot(s.SchoolAggregateRoot)
	m.ClassID = s.ClassID
	m.AdmissionNumber = s.AdmissionNumber
	m.FirstName = s.FirstName
	m.LastName = s.LastName
	m.Status = s.Status
}

// StudentModelFromDomain creates a new persistence model from a domain Student.
func StudentModelFromDomain(s *academic.Student) *StudentModel {
	m := &StudentModel{}
	m.FromDomain(s)
	return m
}

// StudentGuardianModel links a parent user to a student.
type StudentGuardianModel struct {
	StudentID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StudentGuardianModel) TableName() string {
	return "student_guardians"
}
