// Package domain contains persistence models for the request audit trail.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Level is the severity of a persisted log record.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LevelForStatus derives severity from the response status banding.
func LevelForStatus(status int) Level {
	switch {
	case status >= 500:
		return LevelError
	case status >= 400:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// LogRecord captures one completed or failed API operation. Records are
// insert-only; the only deletion path is the bulk retention purge.
type LogRecord struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	RequestID   string         `gorm:"type:text;not null;uniqueIndex" json:"requestId"`
	Endpoint    string         `gorm:"type:text;not null;index" json:"endpoint"`
	Method      string         `gorm:"type:text;not null" json:"method"`
	Level       Level          `gorm:"type:text;not null;index" json:"level"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	OwnerID     *snowflake.ID  `gorm:"index" json:"userId,omitempty"`
	StatusCode  int            `gorm:"not null" json:"statusCode"`
	DurationMS  int64          `gorm:"column:duration_ms;not null" json:"durationMs"`
	Success     bool           `gorm:"not null" json:"success"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	ErrorDetail *string        `gorm:"type:text" json:"error,omitempty"`
	IPAddress   string         `gorm:"type:text" json:"ipAddress"`
	UserAgent   string         `gorm:"type:text" json:"userAgent"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
}

// TableName sets the database table name.
func (LogRecord) TableName() string { return "request_logs" }

// ListQuery filters and paginates the audit trail.
type ListQuery struct {
	Page      int
	Limit     int
	Level     Level
	Endpoint  string
	OwnerID   *snowflake.ID
	StartDate *time.Time
	EndDate   *time.Time
}

// Statistics summarizes record counts per level for the active filter.
type Statistics struct {
	Total int64 `json:"total"`
	Info  int64 `json:"info"`
	Warn  int64 `json:"warn"`
	Error int64 `json:"error"`
}

// PageInfo describes offset pagination of a listing.
type PageInfo struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
}

// ListResult is a page of records plus aggregate statistics.
type ListResult struct {
	Records    []LogRecord `json:"logs"`
	Pagination PageInfo    `json:"pagination"`
	Statistics Statistics  `json:"statistics"`
}

type Service interface {
	Record(ctx context.Context, record *LogRecord) error
	List(ctx context.Context, query ListQuery) (ListResult, error)
	Purge(ctx context.Context, olderThanDays int) (int64, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *LogRecord) error
	List(ctx context.Context, db *gorm.DB, query ListQuery) ([]LogRecord, int64, error)
	CountByLevel(ctx context.Context, db *gorm.DB, query ListQuery) (Statistics, error)
	DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}

var (
	ErrInvalidLevel     = errors.New("invalid_level")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidRetention = errors.New("invalid_retention_days")
)
