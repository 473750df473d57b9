package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"practice_crm_backend/internal/practices/domain"
)

var ErrNotFound = errors.New("practice not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a single practice by its external id.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Practice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, municipality, email, phone, website, doctors, workflow, pipeline, score
		FROM practices
		WHERE id = $1
	`, id)

	p, err := scanPractice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetAll returns every practice, most recently updated first.
func (r *Repository) GetAll(ctx context.Context) ([]*domain.Practice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, municipality, email, phone, website, doctors, workflow, pipeline, score
		FROM practices
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.Practice, 0)
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// Upsert inserts the practice or replaces its stored state when the id
// already exists. Workflow, pipeline and score travel as JSONB documents.
func (r *Repository) Upsert(ctx context.Context, p *domain.Practice) error {
	doctorsJSON, workflowJSON, pipelineJSON, scoreJSON, err := encodePractice(p)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO practices (id, name, municipality, email, phone, website, doctors, workflow, pipeline, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			municipality = EXCLUDED.municipality,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			doctors = EXCLUDED.doctors,
			workflow = EXCLUDED.workflow,
			pipeline = EXCLUDED.pipeline,
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID, p.Name, p.Municipality, p.Email, p.Phone, p.Website,
		doctorsJSON, workflowJSON, pipelineJSON, scoreJSON, time.Now().UTC(),
	)
	return err
}

// BulkUpsert writes a batch of practices in a single round trip.
func (r *Repository) BulkUpsert(ctx context.Context, practices []*domain.Practice) error {
	if len(practices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, p := range practices {
		doctorsJSON, workflowJSON, pipelineJSON, scoreJSON, err := encodePractice(p)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO practices (id, name, municipality, email, phone, website, doctors, workflow, pipeline, score, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				municipality = EXCLUDED.municipality,
				email = EXCLUDED.email,
				phone = EXCLUDED.phone,
				website = EXCLUDED.website,
				doctors = EXCLUDED.doctors,
				workflow = EXCLUDED.workflow,
				pipeline = EXCLUDED.pipeline,
				score = EXCLUDED.score,
				updated_at = EXCLUDED.updated_at
		`,
			p.ID, p.Name, p.Municipality, p.Email, p.Phone, p.Website,
			doctorsJSON, workflowJSON, pipelineJSON, scoreJSON, now,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range practices {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a practice. Returns ErrNotFound when the id is unknown.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored practices.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM practices`).Scan(&n)
	return n, err
}

func encodePractice(p *domain.Practice) (doctors, workflow, pipeline, score []byte, err error) {
	if p.Doctors != nil {
		if doctors, err = json.Marshal(p.Doctors); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if p.Workflow != nil {
		if workflow, err = json.Marshal(p.Workflow); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if p.Pipeline != nil {
		if pipeline, err = json.Marshal(p.Pipeline); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if p.Score != nil {
		if score, err = json.Marshal(p.Score); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return doctors, workflow, pipeline, score, nil
}

func scanPractice(row pgx.Row) (*domain.Practice, error) {
	var p domain.Practice
	var doctorsJSON, workflowJSON, pipelineJSON, scoreJSON []byte

	err := row.Scan(
		&p.ID, &p.Name, &p.Municipality, &p.Email, &p.Phone, &p.Website,
		&doctorsJSON, &workflowJSON, &pipelineJSON, &scoreJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(doctorsJSON) > 0 {
		_ = json.Unmarshal(doctorsJSON, &p.Doctors)
	}
	if len(workflowJSON) > 0 {
		p.Workflow = &domain.Workflow{}
		_ = json.Unmarshal(workflowJSON, p.Workflow)
	}
	if len(pipelineJSON) > 0 {
		p.Pipeline = &domain.PipelineState{}
		_ = json.Unmarshal(pipelineJSON, p.Pipeline)
	}
	if len(scoreJSON) > 0 {
		p.Score = &domain.ScoreResult{}
		_ = json.Unmarshal(scoreJSON, p.Score)
	}

	return &p, nil
}
