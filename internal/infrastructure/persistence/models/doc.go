// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain/FromDomain convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, SchoolAggregateModel)
// - identity.go: schools
// - academic.go: academic periods, students, guardians
// - finance.go: fee structures, invoices, invoice items, payments, approval requests
// - audit.go: append-only audit entries
//
// The models avoid dialect-specific column types so the same structs migrate
// on PostgreSQL and on the in-memory SQLite used by tests; JSON columns use
// gorm.io/datatypes which picks JSONB or JSON per dialect.
package models
