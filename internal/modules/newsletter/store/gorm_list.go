package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/models"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// GormList keeps subscribers in the subscribers table. Emails are stored
// lowercased so the unique index enforces case-insensitive uniqueness.
type GormList struct {
	db *gorm.DB
}

var _ optin.SubscriberList = (*GormList)(nil)

func NewGormList(db *gorm.DB) *GormList {
	return &GormList{db: db}
}

func (l *GormList) Add(ctx context.Context, s optin.Subscriber) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(s.Email))

	var existing int64
	if err := l.db.WithContext(ctx).Model(&models.SubscriberModel{}).
		Where("email = ?", email).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("lookup subscriber: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	row := models.SubscriberModel{Email: email, SubscribedAt: s.SubscribedAt.UTC()}
	res := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", optin.ErrListWrite, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *GormList) All(ctx context.Context) ([]optin.Subscriber, error) {
	var rows []models.SubscriberModel
	if err := l.db.WithContext(ctx).Order("subscribed_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	out := make([]optin.Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, optin.Subscriber{Email: r.Email, SubscribedAt: r.SubscribedAt.UTC()})
	}
	return out, nil
}

func (l *GormList) Count(ctx context.Context) (int, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&models.SubscriberModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return int(n), nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
