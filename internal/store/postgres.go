package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
)

type gameRow struct {
	ID               int64            `gorm:"column:id;primaryKey"`
	Title            string           `gorm:"column:title;not null"`
	P1Name           string           `gorm:"column:p1_name"`
	P2Name           string           `gorm:"column:p2_name"`
	P1Scores         []int            `gorm:"column:p1_scores;type:jsonb;serializer:json"`
	P2Scores         []int            `gorm:"column:p2_scores;type:jsonb;serializer:json"`
	SoundWin         *string          `gorm:"column:sound_win"`
	SoundPromoted    *string          `gorm:"column:sound_promoted"`
	SoundComeback    *string          `gorm:"column:sound_comeback"`
	P1ComebackCount  int              `gorm:"column:p1_comeback_count;not null;default:0"`
	P2ComebackCount  int              `gorm:"column:p2_comeback_count;not null;default:0"`
	ComebackTracking []TrackingRecord `gorm:"column:comeback_tracking;type:jsonb;serializer:json"`
	CreatedAt        time.Time        `gorm:"column:created_at;index"`
	UpdatedAt        time.Time        `gorm:"column:updated_at"`
}

func (gameRow) TableName() string { return "games" }

// notification is the pg_notify payload sent after every write.
type notification struct {
	ID      int64  `json:"id"`
	Origin  string `json:"origin,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type PostgresConfig struct {
	DSN        string
	Channel    string
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Postgres stores sessions in the games table through gorm and learns about
// other writers through LISTEN/NOTIFY (see Listen).
type Postgres struct {
	db      *gorm.DB
	dsn     string
	channel string
	retry   time.Duration
	log     *zap.Logger

	mu   sync.Mutex
	subs subscriptions
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.Channel == "" {
		cfg.Channel = "game_updates"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&gameRow{}); err != nil {
		return nil, fmt.Errorf("migrate games: %w", err)
	}

	return &Postgres{
		db:      db,
		dsn:     cfg.DSN,
		channel: cfg.Channel,
		retry:   cfg.RetryDelay,
		log:     cfg.Logger.Named("store"),
		subs:    newSubscriptions(),
	}, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) Load(ctx context.Context, id int64) (Record, error) {
	var row gameRow
	err := p.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load game %d: %w", id, err)
	}
	return row.record(), nil
}

func (p *Postgres) List(ctx context.Context) ([]Summary, error) {
	var rows []gameRow
	err := p.db.WithContext(ctx).
		Select("id", "title", "created_at").
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, Summary{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (p *Postgres) Create(ctx context.Context, title string, d Defaults) (Record, error) {
	row := gameRow{
		Title:            title,
		P1Name:           d.P1Name,
		P2Name:           d.P2Name,
		P1Scores:         make([]int, ladder.Size),
		P2Scores:         make([]int, ladder.Size),
		ComebackTracking: make([]TrackingRecord, 2),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Record{}, fmt.Errorf("create game: %w", err)
	}
	return row.record(), nil
}

func (p *Postgres) Update(ctx context.Context, id int64, f Fields) error {
	row, cols := rowFromFields(f)
	if len(cols) == 0 {
		return nil
	}
	row.UpdatedAt = time.Now()
	cols = append(cols, "updated_at")

	res := p.db.WithContext(ctx).
		Model(&gameRow{}).
		Where("id = ?", id).
		Select(cols).
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update game %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return p.notify(ctx, notification{ID: id, Origin: f.Origin})
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	res := p.db.WithContext(ctx).Delete(&gameRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete game %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return p.notify(ctx, notification{ID: id, Deleted: true})
}

func (p *Postgres) notify(ctx context.Context, n notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", p.channel, string(payload)).Error; err != nil {
		// The row is written; only other readers miss the push.
		p.log.Warn("pg_notify failed", zap.Int64("session", n.ID), zap.Error(err))
	}
	return nil
}

func (p *Postgres) Subscribe(id int64, fn func(Update)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs.add(id, fn, p.mu.Lock, p.mu.Unlock)
}

func (p *Postgres) subscriber(id int64) func(Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs.get(id)
}

func (r gameRow) record() Record {
	rec := Record{
		ID:              r.ID,
		Title:           r.Title,
		P1Name:          r.P1Name,
		P2Name:          r.P2Name,
		P1Scores:        padScores(r.P1Scores),
		P2Scores:        padScores(r.P2Scores),
		SoundWin:        r.SoundWin,
		SoundPromoted:   r.SoundPromoted,
		SoundComeback:   r.SoundComeback,
		P1ComebackCount: r.P1ComebackCount,
		P2ComebackCount: r.P2ComebackCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	copy(rec.Tracking[:], r.ComebackTracking)
	return rec
}

// rowFromFields returns a row holding the set members of f and the columns
// they map to, for use with Select(...).Updates(...).
func rowFromFields(f Fields) (gameRow, []string) {
	var row gameRow
	var cols []string

	if f.Title != nil {
		row.Title = *f.Title
		cols = append(cols, "title")
	}
	if f.P1Name != nil {
		row.P1Name = *f.P1Name
		cols = append(cols, "p1_name")
	}
	if f.P2Name != nil {
		row.P2Name = *f.P2Name
		cols = append(cols, "p2_name")
	}
	if f.P1Scores != nil {
		row.P1Scores = f.P1Scores[:]
		cols = append(cols, "p1_scores")
	}
	if f.P2Scores != nil {
		row.P2Scores = f.P2Scores[:]
		cols = append(cols, "p2_scores")
	}
	if f.SoundWin != nil {
		row.SoundWin = *f.SoundWin
		cols = append(cols, "sound_win")
	}
	if f.SoundPromoted != nil {
		row.SoundPromoted = *f.SoundPromoted
		cols = append(cols, "sound_promoted")
	}
	if f.SoundComeback != nil {
		row.SoundComeback = *f.SoundComeback
		cols = append(cols, "sound_comeback")
	}
	if f.P1ComebackCount != nil {
		row.P1ComebackCount = *f.P1ComebackCount
		cols = append(cols, "p1_comeback_count")
	}
	if f.P2ComebackCount != nil {
		row.P2ComebackCount = *f.P2ComebackCount
		cols = append(cols, "p2_comeback_count")
	}
	if f.Tracking != nil {
		row.ComebackTracking = f.Tracking[:]
		cols = append(cols, "comeback_tracking")
	}
	return row, cols
}
