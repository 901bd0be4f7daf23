package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sessionbot/app/storage"
	"github.com/m3rciful/sessionbot/core/bootstrap"
	"github.com/m3rciful/sessionbot/core/logger"
)

// PremiumSeeder grants unbounded premium to the configured user ids,
// creating their profiles when missing. An expiring grant becomes unbounded.
func PremiumSeeder(userIDs []int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if len(userIDs) == 0 {
			return nil
		}
		users := storage.NewUsers(db)
		granted := 0
		for _, id := range userIDs {
			exists, err := users.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				if err := users.Add(ctx, id, ""); err != nil {
					return err
				}
			}
			already, err := users.IsPremium(ctx, id)
			if err != nil {
				return err
			}
			if !already {
				granted++
			}
			if err := users.SetPremium(ctx, id, nil); err != nil {
				return fmt.Errorf("seed premium %d: %w", id, err)
			}
		}
		logger.DB.Info("premium users seeded",
			slog.String("event", "db.seed.premium"),
			slog.Int("users", len(userIDs)),
			slog.Int("granted", granted),
		)
		return nil
	})
}
