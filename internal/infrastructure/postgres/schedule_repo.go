package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/writestack/noteflow/internal/domain"
)

const scheduleColumns = `schedule_id, user_id, fire_at, note_id, substack_note_id,
	       is_processing, status, error, created_at, updated_at`

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if s.ScheduleID == "" || s.UserID == "" || s.Timestamp.IsZero() {
		return nil, domain.ErrInvalidParameters
	}

	query := `
		INSERT INTO schedules (schedule_id, user_id, fire_at, note_id, status)
		VALUES ($1, $2, $3, $4, 'scheduled')
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query, s.ScheduleID, s.UserID, s.Timestamp, s.NoteID)

	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateSchedule
		}
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE schedule_id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, scheduleID))
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY fire_at ASC, schedule_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) Delete(ctx context.Context, scheduleID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM schedules WHERE schedule_id = $1 AND NOT is_processing`,
		scheduleID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish absent (idempotent no-op) from busy.
		if _, err := r.GetByID(ctx, scheduleID); err != nil {
			if errors.Is(err, domain.ErrScheduleNotFound) {
				return nil
			}
			return err
		}
		return domain.ErrScheduleBusy
	}
	return nil
}

func (r *ScheduleRepository) UpdateStatus(ctx context.Context, scheduleID string, status domain.Status, errMsg *string) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET    status = $2, error = $3, updated_at = NOW()
		WHERE  schedule_id = $1
		RETURNING ` + scheduleColumns

	return scanSchedule(r.pool.QueryRow(ctx, query, scheduleID, status, errMsg))
}

// ClaimProcessing is the mutual-exclusion guard: the conditional UPDATE makes
// the flag visible to any concurrent fire before this execution does any I/O.
func (r *ScheduleRepository) ClaimProcessing(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET    is_processing = TRUE, updated_at = NOW()
		WHERE  schedule_id = $1 AND NOT is_processing
		RETURNING ` + scheduleColumns

	s, err := scanSchedule(r.pool.QueryRow(ctx, query, scheduleID))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		return nil, err
	}
	// No row claimed — either the schedule is gone or another trigger owns it.
	if _, getErr := r.GetByID(ctx, scheduleID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrAlreadyProcessing
}

func (r *ScheduleRepository) ReleaseProcessing(ctx context.Context, scheduleID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE schedules SET is_processing = FALSE, updated_at = NOW() WHERE schedule_id = $1`,
		scheduleID)
	if err != nil {
		return fmt.Errorf("release processing: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) MarkMissed(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE schedules
		SET    status = 'missed', updated_at = NOW()
		WHERE  status = 'scheduled' AND NOT is_processing AND fire_at < $1
		RETURNING schedule_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark missed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ScheduleRepository) SetSubstackNoteID(ctx context.Context, scheduleID, noteID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET substack_note_id = $2, updated_at = NOW() WHERE schedule_id = $1`,
		scheduleID, noteID)
	if err != nil {
		return fmt.Errorf("set substack note id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ScheduleID, &s.UserID, &s.Timestamp, &s.NoteID, &s.SubstackNoteID,
		&s.IsProcessing, &s.Status, &s.Error, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
