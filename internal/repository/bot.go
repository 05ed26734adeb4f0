package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

type BotRepository struct {
	db dbtx
}

func NewBotRepository(pool *pgxpool.Pool) *BotRepository {
	return &BotRepository{db: pool}
}

func (r *BotRepository) Create(ctx context.Context, b *domain.Bot) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO bots (name, model, system_prompt, temperature, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		b.Name, b.Model, b.SystemPrompt, b.Temperature, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
}

func (r *BotRepository) GetByID(ctx context.Context, id int64) (*domain.Bot, error) {
	var b domain.Bot
	err := r.db.QueryRow(ctx,
		`SELECT id, name, model, system_prompt, temperature, created_at, updated_at
		 FROM bots WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Model, &b.SystemPrompt, &b.Temperature, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBotNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BotRepository) List(ctx context.Context) ([]*domain.Bot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, model, system_prompt, temperature, created_at, updated_at
		 FROM bots ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*domain.Bot
	for rows.Next() {
		var b domain.Bot
		if err := rows.Scan(&b.ID, &b.Name, &b.Model, &b.SystemPrompt, &b.Temperature, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bots = append(bots, &b)
	}
	return bots, rows.Err()
}

func (r *BotRepository) Update(ctx context.Context, b *domain.Bot) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE bots SET name = $1, model = $2, system_prompt = $3, temperature = $4, updated_at = $5
		 WHERE id = $6`,
		b.Name, b.Model, b.SystemPrompt, b.Temperature, time.Now().UTC(), b.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}

func (r *BotRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM bots WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}
