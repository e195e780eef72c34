package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// AuditRecord is the append-only trail. Rows are only ever written by
// runAudited, in the same transaction as the mutation they describe, so a
// committed mutation without a trail entry cannot exist.
type AuditRecord struct {
	ID            int       `gorm:"primary_key" json:"id"`
	TableName     string    `gorm:"size:64;not null" json:"table_name"`
	RecordId      int       `gorm:"index;not null" json:"record_id"`
	Action        string    `gorm:"size:10;not null" json:"action"`
	ActorId       int       `gorm:"index;not null" json:"actor_id"`
	ActorName     string    `gorm:"size:100" json:"actor_name"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	CorrelationId string    `gorm:"size:36" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type auditInfo struct {
	Action      string
	TableName   string
	RecordId    int
	Before      interface{}
	After       interface{}
	Description string
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func createAuditRecord(tx *gorm.DB, ctx context.Context, info *auditInfo) error {
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok {
		return errors.New("actor id is required")
	}
	actorName, _ := utils.GetActorNameFromContext(ctx)

	b, _ := json.Marshal(info.Before)
	a, _ := json.Marshal(info.After)

	record := AuditRecord{
		TableName:     info.TableName,
		RecordId:      info.RecordId,
		Action:        info.Action,
		ActorId:       actorId,
		ActorName:     actorName,
		Before:        string(b),
		After:         string(a),
		Description:   info.Description,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// runAudited is the single transaction wrapper around every mutating
// operation: begin, run, write the audit row, commit. Any error (including
// a failed audit write) rolls the whole thing back, so there is no partial
// state and no unaudited mutation.
func runAudited(ctx context.Context, fn func(tx *gorm.DB) (*auditInfo, error)) error {
	db := config.GetDB()
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	// Always release on early-return or panic; leaked transactions hold row
	// locks and cause lock wait timeouts.
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()

	info, err := fn(tx.WithContext(ctx))
	if err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "models", "runAudited", "mutation rolled back", nil, err)
		return err
	}
	if info == nil {
		tx.Rollback()
		return errors.New("mutation produced no audit info")
	}
	if err := createAuditRecord(tx.WithContext(ctx), ctx, info); err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "models", "runAudited", "audit write failed", info, err)
		return err
	}
	return tx.Commit().Error
}

func GetAuditRecords(ctx context.Context, tableName string, recordId int) ([]*AuditRecord, error) {
	db := config.GetDB()
	var records []*AuditRecord
	err := db.WithContext(ctx).
		Where("table_name = ? AND record_id = ?", tableName, recordId).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
