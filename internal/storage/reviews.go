package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/metrics"
	"github.com/neexbeast/geoplaces/internal/place"
)

const (
	MinRating = 0
	MaxRating = 5
)

// ReviewRepository appends reviews and keeps places.avg_rating equal to the
// mean of the place's review ratings.
type ReviewRepository struct {
	db TxBeginner
}

// NewReviewRepository constructs a ReviewRepository. *pgxpool.Pool satisfies TxBeginner.
func NewReviewRepository(db TxBeginner) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// RecordRating stores a rating with an optional comment.
func (r *ReviewRepository) RecordRating(ctx context.Context, placeID int64, rating float64, comment *string) (*place.RatingResult, error) {
	return r.record(ctx, "review_rate", placeID, rating, comment)
}

// RecordReview stores a rating with an optional review text.
func (r *ReviewRepository) RecordReview(ctx context.Context, placeID int64, rating float64, text *string) (*place.RatingResult, error) {
	return r.record(ctx, "review_create", placeID, rating, text)
}

// record inserts the review, locks the place row, recomputes the mean and
// stores it, all in one transaction. The row lock serialises concurrent
// recomputes for the same place so none of them is computed from a stale set
// of reviews. A missing place surfaces as a foreign key violation on insert.
func (r *ReviewRepository) record(ctx context.Context, op string, placeID int64, rating float64, text *string) (res *place.RatingResult, err error) {
	defer observe(op, time.Now(), &err)

	if rating < MinRating || rating > MaxRating {
		return nil, apperr.Validation("rating must be between %d and %d", MinRating, MaxRating)
	}

	res = &place.RatingResult{PlaceID: placeID}
	err = inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reviews (place_id, user_id, rating, text) VALUES ($1, NULL, $2, $3)`,
			placeID, rating, text,
		); err != nil {
			return fmt.Errorf("inserting review for place %d: %w", placeID, translate(err, msgPlaceNotFound, "review already exists"))
		}

		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM places WHERE id = $1 FOR NO KEY UPDATE`, placeID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound(msgPlaceNotFound)
			}
			return fmt.Errorf("locking place %d: %w", placeID, err)
		}

		if err := tx.QueryRow(ctx, `
			UPDATE places
			SET avg_rating = (SELECT AVG(rating) FROM reviews WHERE place_id = $1)
			WHERE id = $1
			RETURNING COALESCE(avg_rating, 0)`, placeID,
		).Scan(&res.AvgRating); err != nil {
			return fmt.Errorf("refreshing avg rating of place %d: %w", placeID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RatingsRecorded.Inc()
	return res, nil
}
