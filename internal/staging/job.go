package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// Phase is one state in the job lifecycle (spec §3/§4.G). Transitions are
// strictly forward except self-loops on retry; FAILED is terminal but
// restartable from the last successful phase.
type Phase string

const (
	PhasePending           Phase = "PENDING"
	PhaseIngesting         Phase = "INGESTING"
	PhaseIngestCompleted   Phase = "INGEST_COMPLETED"
	PhaseValidating        Phase = "VALIDATING"
	PhaseValidated         Phase = "VALIDATED"
	PhaseApplying          Phase = "APPLYING"
	PhaseApplied           Phase = "APPLIED"
	PhaseReconciling       Phase = "RECONCILING"
	PhaseCompleted         Phase = "COMPLETED"
	PhaseFailed            Phase = "FAILED"
)

// phaseOrder gives each phase except FAILED its position in the forward
// sequence, used to compute "the previous successful phase" on restart.
var phaseOrder = []Phase{
	PhasePending,
	PhaseIngesting, PhaseIngestCompleted,
	PhaseValidating, PhaseValidated,
	PhaseApplying, PhaseApplied,
	PhaseReconciling,
	PhaseCompleted,
}

// IsTerminal reports whether a job in this phase is done running, whether
// successfully (COMPLETED) or not (FAILED).
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Job is one migration unit, identified by jobId, operating on one input
// file (spec's Job type).
type Job struct {
	JobID         string
	FilePath      string
	CreatedBy     string
	Phase         Phase
	TotalRows     int
	ProcessedRows int
	ErrorRows     int
	ValidRows     int
	LastError     string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// NextJobID allocates the next JOB-YYYYMMDD-NNN identifier for today, using
// an atomic UPDATE ... RETURNING against a per-day counter row so
// concurrent uploads never collide.
func (s *Store) NextJobID(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")

	var seq int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO job_sequence (seq_date, next_seq) VALUES ($1, 2)
		ON CONFLICT (seq_date) DO UPDATE SET next_seq = job_sequence.next_seq + 1
		RETURNING next_seq - 1
	`, day).Scan(&seq)
	if err != nil {
		return "", errs.Classify(err)
	}
	return fmt.Sprintf("JOB-%s-%03d", day, seq), nil
}

// CreateJob inserts a new job row in PENDING phase.
func (s *Store) CreateJob(ctx context.Context, jobID, filePath, createdBy string) (*Job, error) {
	j := &Job{
		JobID:     jobID,
		FilePath:  filePath,
		CreatedBy: createdBy,
		Phase:     PhasePending,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO job (job_id, file_path, created_by, phase)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, j.JobID, j.FilePath, j.CreatedBy, j.Phase).Scan(&j.CreatedAt)
	if err != nil {
		return nil, errs.Classify(err)
	}
	return j, nil
}

// GetJob fetches a job by id. Returns errs.JobNotFound (classified as
// permanent) if no such job exists.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	err := s.pool.QueryRow(ctx, `
		SELECT job_id, file_path, created_by, phase, total_rows, processed_rows,
		       error_rows, valid_rows, coalesce(last_error, ''), created_at,
		       started_at, finished_at
		FROM job WHERE job_id = $1
	`, jobID).Scan(&j.JobID, &j.FilePath, &j.CreatedBy, &j.Phase, &j.TotalRows,
		&j.ProcessedRows, &j.ErrorRows, &j.ValidRows, &j.LastError, &j.CreatedAt,
		&j.StartedAt, &j.FinishedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.Newf(errs.JobNotFound, false, "job %s not found", jobID)
		}
		return nil, errs.Classify(err)
	}
	return &j, nil
}

// AdvancePhase moves a job to a new phase. Entering INGESTING for the
// first time stamps startedAt; entering a terminal phase stamps
// finishedAt. lastError is recorded (and cleared on a non-FAILED
// transition) so the operator-facing status always reflects the most
// recent failure, if any.
func (s *Store) AdvancePhase(ctx context.Context, jobID string, phase Phase, lastError string) error {
	var setStarted, setFinished string
	if phase == PhaseIngesting {
		setStarted = ", started_at = coalesce(started_at, now())"
	}
	if phase.IsTerminal() {
		setFinished = ", finished_at = now()"
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE job SET phase = $2, last_error = nullif($3, ''), updated_at = now()%s%s WHERE job_id = $1
	`, setStarted, setFinished), jobID, phase, lastError)
	if err != nil {
		return errs.Classify(err)
	}
	return s.AppendHistory(ctx, jobID, phase, lastError)
}

// HistoryEntry is one recorded phase transition (SPEC_FULL §C.5's trimmed
// job-history concept), queryable alongside job status.
type HistoryEntry struct {
	Phase      Phase
	Message    string
	RecordedAt time.Time
}

// AppendHistory records a phase transition. Called from AdvancePhase so
// every transition the job table itself only overwrites (it keeps just the
// current phase and lastError) is also preserved as an append-only trail.
func (s *Store) AppendHistory(ctx context.Context, jobID string, phase Phase, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_history (job_id, phase, message) VALUES ($1, $2, nullif($3, ''))
	`, jobID, phase, message)
	if err != nil {
		return errs.Classify(err)
	}
	return nil
}

// History returns every recorded phase transition for a job, oldest first.
func (s *Store) History(ctx context.Context, jobID string) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT phase, coalesce(message, ''), recorded_at
		FROM job_history WHERE job_id = $1 ORDER BY recorded_at ASC, id ASC
	`, jobID)
	if err != nil {
		return nil, errs.Classify(err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Phase, &e.Message, &e.RecordedAt); err != nil {
			return nil, errs.Classify(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Classify(err)
	}
	return entries, nil
}

// UpdateCounters writes the rolling totalRows/processedRows/errorRows/
// validRows counters the orchestrator reports through job status.
func (s *Store) UpdateCounters(ctx context.Context, jobID string, total, processed, errorRows, valid int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job SET total_rows = $2, processed_rows = $3, error_rows = $4, valid_rows = $5
		WHERE job_id = $1
	`, jobID, total, processed, errorRows, valid)
	if err != nil {
		return errs.Classify(err)
	}
	return nil
}

// runningPhases lists the phases in which a job is actively being worked
// on (PENDING and the completed-step phases are not included).
var runningPhases = []Phase{
	PhaseIngesting, PhaseValidating, PhaseApplying, PhaseReconciling,
}

// StaleRunningJobIDs returns every job id currently in one of the
// runningPhases whose updated_at is older than staleAfter — candidates for the
// orchestrator's stale-phase reaper.
func (s *Store) StaleRunningJobIDs(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	phases := make([]string, len(runningPhases))
	for i, p := range runningPhases {
		phases[i] = string(p)
	}
	cutoff := time.Now().Add(-staleAfter)

	rows, err := s.pool.Query(ctx, `
		SELECT job_id FROM job WHERE phase = ANY($1) AND updated_at < $2
	`, phases, cutoff)
	if err != nil {
		return nil, errs.Classify(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Classify(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Classify(err)
	}
	return ids, nil
}

// PreviousPhase returns the phase immediately before p in the forward
// sequence, used to compute a FAILED job's restart point. Returns
// PhasePending if p is already the first phase or unrecognized.
func PreviousPhase(p Phase) Phase {
	for i, ph := range phaseOrder {
		if ph == p && i > 0 {
			return phaseOrder[i-1]
		}
	}
	return PhasePending
}
