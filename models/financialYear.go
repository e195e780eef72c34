package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// FinancialYear is the annual accounting period. A closed FY is immutable:
// no document may carry a date inside it.
type FinancialYear struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:10;not null;uniqueIndex" json:"code" binding:"required"`
	StartDate time.Time `gorm:"not null" json:"start_date" binding:"required"`
	EndDate   time.Time `gorm:"not null" json:"end_date" binding:"required"`
	IsActive  bool      `gorm:"not null;default:false" json:"is_active"`
	IsClosed  bool      `gorm:"not null;default:false" json:"is_closed"`
	Notes     string    `gorm:"type:text;default:null" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OpeningBalance carries a party's net position into a financial year.
// Written only by CloseFinancialYear.
type OpeningBalance struct {
	ID              int             `gorm:"primary_key" json:"id"`
	FinancialYearId int             `gorm:"not null;uniqueIndex:idx_ob_fy_party" json:"financial_year_id"`
	PartyId         int             `gorm:"not null;uniqueIndex:idx_ob_fy_party" json:"party_id"`
	OpeningDebit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_debit"`
	OpeningCredit   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_credit"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFinancialYear struct {
	Code      string    `json:"code" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
	IsActive  bool      `json:"is_active"`
}

func CreateFinancialYear(ctx context.Context, input *NewFinancialYear) (*FinancialYear, error) {
	if !input.EndDate.After(input.StartDate) {
		return nil, errors.New("financial year end must be after start")
	}
	if err := utils.ValidateUnique[FinancialYear](ctx, "code", input.Code, 0); err != nil {
		return nil, err
	}

	fy := FinancialYear{
		Code:      input.Code,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		IsActive:  input.IsActive,
	}
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		if fy.IsActive {
			// at most one active FY
			if err := tx.Model(&FinancialYear{}).Where("is_active = true").
				Update("is_active", false).Error; err != nil {
				return nil, err
			}
		}
		if err := tx.Create(&fy).Error; err != nil {
			return nil, err
		}
		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "financial_years",
			RecordId:    fy.ID,
			After:       fy,
			Description: "Financial year " + fy.Code + " created.",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &fy, nil
}

// financialYearForDate resolves the FY containing a document date; documents
// dated inside a closed FY are rejected (period lock).
func financialYearForDate(tx *gorm.DB, date time.Time) (*FinancialYear, error) {
	var fy FinancialYear
	err := tx.Where("start_date <= ? AND end_date >= ?", date, date).First(&fy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no financial year covers the document date")
		}
		return nil, err
	}
	if fy.IsClosed {
		return nil, errors.New("financial year " + fy.Code + " is closed")
	}
	return &fy, nil
}

type partyPeriodNet struct {
	PartyId     int
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// CloseFinancialYear snapshots every party's net ledger position inside the
// FY and carries it forward as the successor FY's opening balances, then
// marks the FY closed. The whole carry-forward is one transaction; a partial
// close (some parties written, others not) cannot commit.
func CloseFinancialYear(ctx context.Context, fyId int, notes string) (*FinancialYear, error) {
	var closed FinancialYear

	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		var fy FinancialYear
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&fy, fyId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		if fy.IsClosed {
			return nil, errors.New("financial year " + fy.Code + " is already closed")
		}

		var successor FinancialYear
		err := tx.Where("start_date > ? AND is_closed = ?", fy.EndDate, false).
			Order("start_date").
			First(&successor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrNoSuccessorFY
			}
			return nil, err
		}

		var nets []partyPeriodNet
		if err := tx.Model(&LedgerEntry{}).
			Select("party_id, SUM(debit) AS total_debit, SUM(credit) AS total_credit").
			Where("entry_date >= ? AND entry_date <= ?", fy.StartDate, fy.EndDate).
			Group("party_id").
			Scan(&nets).Error; err != nil {
			return nil, err
		}

		for _, net := range nets {
			ob := OpeningBalance{
				FinancialYearId: successor.ID,
				PartyId:         net.PartyId,
			}
			diff := net.TotalDebit.Sub(net.TotalCredit)
			if diff.IsPositive() {
				ob.OpeningDebit = diff
			} else {
				ob.OpeningCredit = diff.Neg()
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "financial_year_id"}, {Name: "party_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"opening_debit", "opening_credit"}),
			}).Create(&ob).Error; err != nil {
				return nil, err
			}
		}

		before := fy
		if err := tx.Model(&fy).Updates(map[string]interface{}{
			"is_closed": true,
			"is_active": false,
			"notes":     notes,
		}).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&successor).Update("is_active", true).Error; err != nil {
			return nil, err
		}

		fy.IsClosed = true
		fy.IsActive = false
		fy.Notes = notes
		closed = fy
		return &auditInfo{
			Action:      AuditActionClose,
			TableName:   "financial_years",
			RecordId:    fy.ID,
			Before:      before,
			After:       fy,
			Description: fmt.Sprintf("Financial year %s closed; %d opening balances carried into %s.", fy.Code, len(nets), successor.Code),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func ListFinancialYears(ctx context.Context) ([]*FinancialYear, error) {
	return utils.FetchAllModels[FinancialYear](ctx)
}

func GetOpeningBalances(ctx context.Context, fyId int) ([]*OpeningBalance, error) {
	db := config.GetDB()
	var rows []*OpeningBalance
	if err := db.WithContext(ctx).
		Where("financial_year_id = ?", fyId).
		Order("party_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
