package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	HsnCode   string          `gorm:"size:8;not null" json:"hsn_code" binding:"required"`
	GstRate   decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"gst_rate"`
	Unit      string          `gorm:"size:20;default:null" json:"unit"`
	SaleRate  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_rate"`
	Batches   []ProductBatch  `gorm:"foreignKey:ProductId" json:"batches"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductBatch is a tracked lot. QuantityOnHand is a materialized cache of
// the batch's inventory transactions; it is only ever written together with
// an InventoryTransaction row, inside the same statement set.
type ProductBatch struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ProductId      int             `gorm:"index;not null" json:"product_id" binding:"required"`
	BatchNumber    string          `gorm:"size:100;not null" json:"batch_number" binding:"required"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand"`
	PurchaseRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_rate"`
	MfgDate        *time.Time      `json:"mfg_date"`
	ExpiryDate     *time.Time      `json:"expiry_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name     string          `json:"name" binding:"required"`
	HsnCode  string          `json:"hsn_code" binding:"required"`
	GstRate  decimal.Decimal `json:"gst_rate"`
	Unit     string          `json:"unit"`
	SaleRate decimal.Decimal `json:"sale_rate"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := utils.ValidateUnique[Product](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.GstRate.IsNegative() {
		return nil, errors.New("gst rate cannot be negative")
	}

	product := Product{
		Name:     input.Name,
		HsnCode:  input.HsnCode,
		GstRate:  input.GstRate,
		Unit:     input.Unit,
		SaleRate: input.SaleRate,
	}
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		if err := tx.Create(&product).Error; err != nil {
			return nil, err
		}
		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "products",
			RecordId:    product.ID,
			After:       product,
			Description: "Product " + product.Name + " created.",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id, "Batches")
}

// fetchOrCreateBatch finds a product's batch by number inside the caller's
// transaction, creating it with the given acquisition details when absent.
// Purchase invoices are the only callers that create batches.
func fetchOrCreateBatch(tx *gorm.DB, productId int, batchNumber string, purchaseRate decimal.Decimal, mfgDate, expiryDate *time.Time) (*ProductBatch, error) {
	if batchNumber == "" {
		return nil, errors.New("batch number is required")
	}
	var batch ProductBatch
	err := tx.Where("product_id = ? AND batch_number = ?", productId, batchNumber).First(&batch).Error
	if err == nil {
		return &batch, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	batch = ProductBatch{
		ProductId:    productId,
		BatchNumber:  batchNumber,
		PurchaseRate: purchaseRate,
		MfgDate:      mfgDate,
		ExpiryDate:   expiryDate,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
