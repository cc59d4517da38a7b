package models

import "time"

// Customer is a loyalty account holder. CurrentPoints may be negative on
// accounts that redeemed more than they held.
type Customer struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:name;not null"`
	Email         string    `gorm:"column:email;not null;uniqueIndex"`
	CurrentPoints int64     `gorm:"column:current_points;not null"`
	TotalPoints   int64     `gorm:"column:total_points;not null;check:chk_customers_total_points,total_points >= 0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
