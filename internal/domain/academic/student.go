package academic

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// StudentStatus is the enrolment lifecycle state
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusInactive    StudentStatus = "INACTIVE"
	StudentStatusGraduated   StudentStatus = "GRADUATED"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusSuspended   StudentStatus = "SUSPENDED"
)

// IsValid checks if the status is valid
func (s StudentStatus) IsValid() bool {
	switch s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusGraduated,
		StudentStatusTransferred, StudentStatusSuspended:
		return true
	}
	return false
}

// Student is a learner enrolled at a school, optionally placed in a class.
// (SchoolID, AdmissionNumber) is unique.
type Student struct {
	shared.SchoolAggregateRoot
	ClassID         *uuid.UUID
	AdmissionNumber string
	FirstName       string
	LastName        string
	Status          StudentStatus
	GuardianIDs     []uuid.UUID
}

// NewStudent creates an active student
func NewStudent(schoolID uuid.UUID, admissionNumber, firstName, lastName string, classID *uuid.UUID) (*Student, error) {
	admissionNumber = strings.TrimSpace(admissionNumber)
	if schoolID == uuid.Nil {
		return nil, shared.InvalidInput("School ID cannot be empty")
	}
	if admissionNumber == "" || len(admissionNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ADMISSION_NUMBER", "Admission number must be 1-50 characters")
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "First name cannot be empty")
	}

	return &Student{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		ClassID:             classID,
		AdmissionNumber:     admissionNumber,
		FirstName:           strings.TrimSpace(firstName),
		LastName:            strings.TrimSpace(lastName),
		Status:              StudentStatusActive,
	}, nil
}

// IsActive reports whether the student is billable
func (s *Student) IsActive() bool {
	return s.Status == StudentStatusActive
}

// FullName returns first and last name
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// InClass reports whether the student sits in the given class
func (s *Student) InClass(classID uuid.UUID) bool {
	return s.ClassID != nil && *s.ClassID == classID
}

// HasGuardian reports whether userID is a registered guardian
func (s *Student) HasGuardian(userID uuid.UUID) bool {
	return slices.Contains(s.GuardianIDs, userID)
}

// AddGuardian links a guardian user
func (s *Student) AddGuardian(userID uuid.UUID) {
	if userID == uuid.Nil || s.HasGuardian(userID) {
		return
	}
	s.GuardianIDs = append(s.GuardianIDs, userID)
}

// ChangeStatus moves the student to another lifecycle state
func (s *Student) ChangeStatus(status StudentStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Invalid student status: "+string(status))
	}
	s.Status = status
	s.Touch()
	s.IncrementVersion()
	return nil
}
