package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
)

// ErrUniqueConstraint is returned when an insert collides on the primary key.
var ErrUniqueConstraint = &errors.SiftlyError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const leadColumns = `
	id, phone_number, status, zip_code, project_type, timeline_budget,
	qual_score, classification, transcript_json, version,
	created_at, updated_at, qualified_at
`

// InsertIfAbsent stores l unless a lead with the same phone number exists.
// Returns false when the row was already present.
func InsertIfAbsent(ctx context.Context, db *sql.DB, l *lead.Lead) (bool, error) {
	transcript, err := toTranscriptJSON(l.Transcript)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO NOTHING
	`

	result, err := db.ExecContext(ctx, query,
		l.ID, l.PhoneNumber, string(l.Status),
		toNullString(l.ZipCode), toNullString(l.ProjectType), toNullString(l.TimelineBudget),
		toNullInt(l.QualScore), toNullClassification(l.Classification), transcript, l.Version,
		l.CreatedAt, l.UpdatedAt, toNullInt64(l.QualifiedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, ErrUniqueConstraint
		}
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected == 1, nil
}

// GetByPhone retrieves a lead by its phone number.
func GetByPhone(ctx context.Context, db *sql.DB, phone string) (*lead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone_number = ?`

	l, err := scanLead(db.QueryRowContext(ctx, query, phone))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(phone)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return l, nil
}

// UpdateIfVersion writes every mutable column of l, provided the stored row
// still carries expectedVersion. Returns a CONFLICT error otherwise.
// Does NOT change: id, phone_number, created_at
func UpdateIfVersion(ctx context.Context, db *sql.DB, l *lead.Lead, expectedVersion int64) error {
	transcript, err := toTranscriptJSON(l.Transcript)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		UPDATE leads
		SET status = ?, zip_code = ?, project_type = ?, timeline_budget = ?,
			qual_score = ?, classification = ?, transcript_json = ?,
			version = ?, updated_at = ?, qualified_at = ?
		WHERE phone_number = ? AND version = ?
	`

	result, err := db.ExecContext(ctx, query,
		string(l.Status), toNullString(l.ZipCode), toNullString(l.ProjectType), toNullString(l.TimelineBudget),
		toNullInt(l.QualScore), toNullClassification(l.Classification), transcript,
		l.Version, l.UpdatedAt, toNullInt64(l.QualifiedAt),
		l.PhoneNumber, expectedVersion,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		current, err := GetByPhone(ctx, db, l.PhoneNumber)
		if err != nil {
			return err
		}
		return errors.NewConflict(l.PhoneNumber, expectedVersion, current.Version)
	}

	return nil
}

// ListLeads returns a page of leads ordered by most recent update, with the
// total number of matching rows.
func ListLeads(ctx context.Context, db *sql.DB, filter lead.ListFilter) ([]*lead.Lead, int, error) {
	where := ""
	var args []any
	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where + `
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var leads []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return leads, total, nil
}

// CountByStatus returns the number of leads in each status present in the table.
func CountByStatus(ctx context.Context, db *sql.DB) (map[lead.Status]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[lead.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[lead.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLead scans a single row into a Lead struct.
func scanLead(row rowScanner) (*lead.Lead, error) {
	var (
		l              lead.Lead
		status         string
		zipCode        sql.NullString
		projectType    sql.NullString
		timelineBudget sql.NullString
		qualScore      sql.NullInt64
		classification sql.NullString
		transcriptJSON sql.NullString
		qualifiedAt    sql.NullInt64
	)

	err := row.Scan(
		&l.ID, &l.PhoneNumber, &status, &zipCode, &projectType, &timelineBudget,
		&qualScore, &classification, &transcriptJSON, &l.Version,
		&l.CreatedAt, &l.UpdatedAt, &qualifiedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = lead.Status(status)
	l.ZipCode = fromNullString(zipCode)
	l.ProjectType = fromNullString(projectType)
	l.TimelineBudget = fromNullString(timelineBudget)
	if qualScore.Valid {
		score := int(qualScore.Int64)
		l.QualScore = &score
	}
	if classification.Valid {
		l.Classification = lead.Classification(classification.String)
	}
	if qualifiedAt.Valid {
		l.QualifiedAt = &qualifiedAt.Int64
	}

	// Parse transcript JSON
	if transcriptJSON.Valid && transcriptJSON.String != "" {
		if err := json.Unmarshal([]byte(transcriptJSON.String), &l.Transcript); err != nil {
			return nil, err
		}
	}

	return &l, nil
}

func toTranscriptJSON(turns []lead.Turn) (sql.NullString, error) {
	if len(turns) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func toNullClassification(c lead.Classification) sql.NullString {
	if c == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(c), Valid: true}
}
