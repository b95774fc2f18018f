// Package seed loads the development fixture set for the demo patient.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/clock"
	"gorm.io/gorm"
)

const (
	demoCenterID  = "demo-center"
	demoPatientID = "demo-patient"
)

// EnsureDemoPatient seeds a demo payment history when the demo scope is still
// empty. Safe to run on every startup.
func EnsureDemoPatient(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if genID == nil {
		return errors.New("seed id node is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Payment{}).
			Where("center_id = ? AND patient_id = ?", demoCenterID, demoPatientID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := clk.Now()
		lastFour := "4242"
		brand := "Visa"
		expMonth, expYear := 9, now.Year()+2
		method := domain.PaymentMethod{
			ID:          genID.Generate(),
			CenterID:    demoCenterID,
			PatientID:   demoPatientID,
			Type:        domain.PaymentMethodCard,
			IsDefault:   true,
			IsActive:    true,
			LastFour:    &lastFour,
			Brand:       &brand,
			ExpiryMonth: &expMonth,
			ExpiryYear:  &expYear,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&method).Error; err != nil {
			return err
		}

		paidAt := now.AddDate(0, 0, -12)
		dueSoon := now.AddDate(0, 0, 3)
		pastDue := now.AddDate(0, 0, -2)
		payments := []domain.Payment{
			{
				ID:              genID.Generate(),
				CenterID:        demoCenterID,
				PatientID:       demoPatientID,
				Amount:          8000,
				Currency:        domain.DefaultCurrency,
				Description:     "Sesión individual",
				Status:          domain.PaymentStatusPaid,
				Method:          domain.PaymentMethodCard,
				PaymentMethodID: &method.ID,
				PaidDate:        &paidAt,
				CreatedAt:       paidAt,
				UpdatedAt:       paidAt,
			},
			{
				ID:              genID.Generate(),
				CenterID:        demoCenterID,
				PatientID:       demoPatientID,
				Amount:          12000,
				Currency:        domain.DefaultCurrency,
				Description:     "Evaluación inicial",
				Status:          domain.PaymentStatusPending,
				Method:          domain.PaymentMethodCard,
				PaymentMethodID: &method.ID,
				DueDate:         &dueSoon,
				CreatedAt:       now.AddDate(0, 0, -5),
				UpdatedAt:       now.AddDate(0, 0, -5),
			},
			{
				ID:              genID.Generate(),
				CenterID:        demoCenterID,
				PatientID:       demoPatientID,
				Amount:          8000,
				Currency:        domain.DefaultCurrency,
				Description:     "Sesión individual",
				Status:          domain.PaymentStatusOverdue,
				Method:          domain.PaymentMethodCard,
				PaymentMethodID: &method.ID,
				DueDate:         &pastDue,
				CreatedAt:       now.AddDate(0, 0, -20),
				UpdatedAt:       now.AddDate(0, 0, -20),
			},
		}
		if err := tx.Create(&payments).Error; err != nil {
			return err
		}

		sub := domain.Subscription{
			ID:                 genID.Generate(),
			CenterID:           demoCenterID,
			PatientID:          demoPatientID,
			PlanName:           "Plan Terapia Mensual",
			PlanDescription:    "Cuatro sesiones al mes",
			Status:             domain.SubscriptionStatusActive,
			Amount:             24000,
			Currency:           domain.DefaultCurrency,
			Interval:           domain.IntervalMonthly,
			CurrentPeriodStart: now.AddDate(0, 0, -15),
			CurrentPeriodEnd:   now.AddDate(0, 0, 15),
			NextBillingDate:    now.AddDate(0, 0, 15),
			PaymentMethodID:    &method.ID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return tx.Create(&sub).Error
	})
}
