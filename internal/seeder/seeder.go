package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

const systemActor int64 = 1

// Markets seeds a pair of example markets if they are missing.
func (s *Seeder) Markets(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Market{
		{
			Name:        "Riverside Farmers Market",
			City:        "Portland",
			Address:     "200 SW Naito Pkwy",
			Description: "Weekend produce market on the waterfront",
			AdminMeta:   entity.AdminMeta{IsActive: true, CreatedBy: systemActor, CreatedAt: now, UpdatedAt: now},
		},
		{
			Name:        "Eastside Growers Exchange",
			City:        "Portland",
			Address:     "1420 SE Division St",
			Description: "Wholesale exchange for regional growers",
			AdminMeta:   entity.AdminMeta{IsActive: true, CreatedBy: systemActor, CreatedAt: now, UpdatedAt: now},
		},
	}

	for _, sample := range samples {
		m := sample
		exists, err := s.db.NewSelect().Model((*entity.Market)(nil)).
			Where("name = ?", m.Name).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded markets", zap.Int("count", len(samples)))
	}
	return nil
}

// Products seeds the base product catalog if it is missing.
func (s *Seeder) Products(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Product{
		{Name: "Heirloom Tomatoes", Category: "vegetables", Unit: "lb"},
		{Name: "Honeycrisp Apples", Category: "fruit", Unit: "lb"},
		{Name: "Wildflower Honey", Category: "pantry", Unit: "jar"},
	}

	for _, sample := range samples {
		p := sample
		p.AdminMeta = entity.AdminMeta{IsActive: true, CreatedBy: systemActor, CreatedAt: now, UpdatedAt: now}
		exists, err := s.db.NewSelect().Model((*entity.Product)(nil)).
			Where("name = ?", p.Name).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&p).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}

// Admin seeds the initial administrator account if it is missing.
func (s *Seeder) Admin(ctx context.Context) error {
	now := time.Now().UTC()
	admin := entity.User{
		Name:      "MarketDesk Admin",
		Email:     "admin@marketdesk.local",
		Role:      entity.RoleAdmin,
		AdminMeta: entity.AdminMeta{IsActive: true, CreatedBy: systemActor, CreatedAt: now, UpdatedAt: now},
	}

	_, err := s.db.NewInsert().Model(&admin).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded admin user", zap.String("email", admin.Email))
	}
	return nil
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Admin(ctx); err != nil {
		return err
	}
	if err := s.Markets(ctx); err != nil {
		return err
	}
	return s.Products(ctx)
}
