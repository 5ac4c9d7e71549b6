package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/spacedrep/internal/domain"
)

const cardColumns = `id, card_type, question, answer, concept, hash, created_at,
	state, stability, difficulty, due, elapsed_days, scheduled_days,
	reps, lapses, last_review, source_id`

// scanCard scans a row into a Card. The row must have cardColumns in order.
func scanCard(scanner interface{ Scan(dest ...any) error }) (domain.Card, error) {
	var (
		c          domain.Card
		createdAt  int64
		due        int64
		lastReview sql.NullInt64
		sourceID   sql.NullInt64
	)
	err := scanner.Scan(
		&c.ID, &c.Kind, &c.Question, &c.Answer, &c.Concept, &c.Hash, &createdAt,
		&c.State, &c.Stability, &c.Difficulty, &due, &c.ElapsedDays, &c.ScheduledDays,
		&c.Reps, &c.Lapses, &lastReview, &sourceID,
	)
	if err != nil {
		return c, err
	}
	c.CreatedAt = fromMillis(createdAt)
	c.Due = fromMillis(due)
	c.LastReview = fromNullMillis(lastReview)
	if sourceID.Valid {
		id := sourceID.Int64
		c.SourceID = &id
	}
	return c, nil
}

// InsertCard inserts a new card together with its tags and any review history.
func (db *DB) InsertCard(ctx context.Context, card *domain.Card) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (`+cardColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			card.ID, string(card.Kind), card.Question, card.Answer, card.Concept, card.Hash, toMillis(card.CreatedAt),
			string(card.State), card.Stability, card.Difficulty, toMillis(card.Due), card.ElapsedDays, card.ScheduledDays,
			card.Reps, card.Lapses, nullMillis(card.LastReview), nullInt64(card.SourceID),
		)
		if err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, card.ID, card.Tags); err != nil {
			return err
		}
		for _, r := range card.Reviews {
			if err := insertReview(ctx, tx, card.ID, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCardByID retrieves a card with its tags and review history.
// It returns nil, nil when no card has that ID.
func (db *DB) FindCardByID(ctx context.Context, id string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	if err := db.loadDetails(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindCardByHash retrieves the first card whose content hash matches.
// It returns nil, nil when there is none.
func (db *DB) FindCardByHash(ctx context.Context, hash string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE hash = ? ORDER BY created_at LIMIT 1`, hash)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	if err := db.loadDetails(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard writes a card's content, scheduling state and tags.
// Review history is left alone; use RecordReview to append to it.
func (db *DB) UpdateCard(ctx context.Context, card *domain.Card) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateCardRow(ctx, tx, card); err != nil {
			return err
		}
		return replaceTags(ctx, tx, card.ID, card.Tags)
	})
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	return nil
}

// RecordReview writes the card as UpdateCard does and appends one review
// to its history in the same transaction.
func (db *DB) RecordReview(ctx context.Context, card *domain.Card, review domain.ReviewLog) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateCardRow(ctx, tx, card); err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, card.ID, card.Tags); err != nil {
			return err
		}
		return insertReview(ctx, tx, card.ID, review)
	})
	if err != nil {
		return fmt.Errorf("failed to record review for card %s: %w", card.ID, err)
	}
	return nil
}

// DeleteCardByID removes a card, reporting whether it existed.
func (db *DB) DeleteCardByID(ctx context.Context, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return n > 0, nil
}

// GetDueCards returns cards that are new or due at or before now.
// New cards come first, then the rest by ascending due date.
// A limit of zero or less returns every due card.
func (db *DB) GetDueCards(ctx context.Context, now time.Time, limit int) ([]domain.Card, error) {
	if limit <= 0 {
		limit = -1
	}
	cards, err := db.queryCards(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE state = ? OR due <= ?
		ORDER BY CASE WHEN state = ? THEN 0 ELSE 1 END, due, id
		LIMIT ?
	`, string(domain.New), toMillis(now), string(domain.New), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return cards, nil
}

// GetCards returns all cards, or only those carrying tag when it is non-empty,
// ordered by creation time.
func (db *DB) GetCards(ctx context.Context, tag string) ([]domain.Card, error) {
	var (
		cards []domain.Card
		err   error
	)
	if tag == "" {
		cards, err = db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY created_at, id`)
	} else {
		cards, err = db.queryCards(ctx, `
			SELECT `+cardColumns+` FROM cards
			WHERE id IN (SELECT card_id FROM card_tags WHERE tag = ?)
			ORDER BY created_at, id
		`, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	return cards, nil
}

// GetCardsBySourceID retrieves all cards imported from a specific source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	cards, err := db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY created_at, id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// queryCards runs a card query and loads tags and history for every row.
func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range cards {
		if err := db.loadDetails(ctx, &cards[i]); err != nil {
			return nil, err
		}
	}
	return cards, nil
}

// loadDetails fills a card's tags and review history.
func (db *DB) loadDetails(ctx context.Context, card *domain.Card) error {
	tags, err := db.conn.QueryContext(ctx, `SELECT tag FROM card_tags WHERE card_id = ? ORDER BY tag`, card.ID)
	if err != nil {
		return fmt.Errorf("failed to load tags for card %s: %w", card.ID, err)
	}
	defer tags.Close()
	card.Tags = []string{}
	for tags.Next() {
		var tag string
		if err := tags.Scan(&tag); err != nil {
			return fmt.Errorf("failed to scan tag for card %s: %w", card.ID, err)
		}
		card.Tags = append(card.Tags, tag)
	}
	if err := tags.Err(); err != nil {
		return err
	}

	reviews, err := db.conn.QueryContext(ctx, `SELECT rating, reviewed_at FROM reviews WHERE card_id = ? ORDER BY id`, card.ID)
	if err != nil {
		return fmt.Errorf("failed to load reviews for card %s: %w", card.ID, err)
	}
	defer reviews.Close()
	card.Reviews = []domain.ReviewLog{}
	for reviews.Next() {
		var (
			r  domain.ReviewLog
			at int64
		)
		if err := reviews.Scan(&r.Rating, &at); err != nil {
			return fmt.Errorf("failed to scan review for card %s: %w", card.ID, err)
		}
		r.ReviewedAt = fromMillis(at)
		card.Reviews = append(card.Reviews, r)
	}
	return reviews.Err()
}

func updateCardRow(ctx context.Context, q queryer, card *domain.Card) error {
	res, err := q.ExecContext(ctx, `
		UPDATE cards
		SET card_type = ?, question = ?, answer = ?, concept = ?, hash = ?,
		    state = ?, stability = ?, difficulty = ?, due = ?, elapsed_days = ?,
		    scheduled_days = ?, reps = ?, lapses = ?, last_review = ?
		WHERE id = ?
	`,
		string(card.Kind), card.Question, card.Answer, card.Concept, card.Hash,
		string(card.State), card.Stability, card.Difficulty, toMillis(card.Due), card.ElapsedDays,
		card.ScheduledDays, card.Reps, card.Lapses, nullMillis(card.LastReview),
		card.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func replaceTags(ctx context.Context, q queryer, cardID string, tags []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = ?`, cardID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO card_tags (card_id, tag) VALUES (?, ?)`, cardID, tag); err != nil {
			return err
		}
	}
	return nil
}

func insertReview(ctx context.Context, q queryer, cardID string, r domain.ReviewLog) error {
	_, err := q.ExecContext(ctx, `INSERT INTO reviews (card_id, rating, reviewed_at) VALUES (?, ?, ?)`,
		cardID, int(r.Rating), toMillis(r.ReviewedAt))
	return err
}
