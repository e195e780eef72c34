package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// Party is a dealer or a supplier. Gstin empty means unregistered; StateCode
// is the GST jurisdiction used for the intra/inter split.
type Party struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Kind            PartyKind `gorm:"type:enum('Dealer','Supplier');not null" json:"kind" binding:"required"`
	Gstin           string    `gorm:"size:15;default:null" json:"gstin"`
	StateCode       string    `gorm:"size:2;not null" json:"state_code" binding:"required"`
	Phone           string    `gorm:"size:20;default:null" json:"phone"`
	Address         string    `gorm:"type:text;default:null" json:"address"`
	PaymentTermDays int       `gorm:"default:0" json:"payment_term_days"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewParty struct {
	Name            string    `json:"name" binding:"required"`
	Kind            PartyKind `json:"kind" binding:"required"`
	Gstin           string    `json:"gstin"`
	StateCode       string    `json:"state_code" binding:"required"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	PaymentTermDays int       `json:"payment_term_days"`
}

func (p Party) IsRegistered() bool {
	return p.Gstin != ""
}

func (input NewParty) validate(ctx context.Context, id int) error {
	if input.Kind != PartyKindDealer && input.Kind != PartyKindSupplier {
		return errors.New("invalid party kind")
	}
	if err := utils.ValidateUnique[Party](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateParty(ctx context.Context, input *NewParty) (*Party, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	active := true
	party := Party{
		Name:            input.Name,
		Kind:            input.Kind,
		Gstin:           input.Gstin,
		StateCode:       input.StateCode,
		Phone:           input.Phone,
		Address:         input.Address,
		PaymentTermDays: input.PaymentTermDays,
		IsActive:        &active,
	}

	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		if err := tx.Create(&party).Error; err != nil {
			return nil, err
		}
		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "parties",
			RecordId:    party.ID,
			After:       party,
			Description: "Party " + party.Name + " created.",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &party, nil
}

func GetParty(ctx context.Context, id int) (*Party, error) {
	return utils.FetchModel[Party](ctx, id)
}

// fetchActiveParty validates the party exists, has the expected kind and is
// not deactivated. Used by every document factory before any mutation.
func fetchActiveParty(ctx context.Context, partyId int, kind PartyKind) (*Party, error) {
	party, err := utils.FetchModel[Party](ctx, partyId)
	if err != nil {
		return nil, errors.New("party not found")
	}
	if party.Kind != kind {
		return nil, errors.New("party is not a " + string(kind))
	}
	if party.IsActive != nil && !*party.IsActive {
		return nil, errors.New("party is inactive")
	}
	return party, nil
}

// fetchParty is the kind-agnostic variant for documents that exist for both
// sides, e.g. payments.
func fetchParty(ctx context.Context, partyId int) (*Party, error) {
	party, err := utils.FetchModel[Party](ctx, partyId)
	if err != nil {
		return nil, errors.New("party not found")
	}
	if party.IsActive != nil && !*party.IsActive {
		return nil, errors.New("party is inactive")
	}
	return party, nil
}
