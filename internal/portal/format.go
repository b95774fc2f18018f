package portal

import (
	"fmt"
	"strings"

	"github.com/clinovia/billing/internal/billing/domain"
)

// StatusColor maps a payment status to the UI palette key.
func StatusColor(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusPaid:
		return "success"
	case domain.PaymentStatusPending:
		return "warning"
	case domain.PaymentStatusOverdue, domain.PaymentStatusFailed:
		return "error"
	case domain.PaymentStatusRefunded:
		return "info"
	default:
		return "default"
	}
}

// StatusText returns the patient-facing Spanish label for a status.
func StatusText(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusPending:
		return "Pendiente"
	case domain.PaymentStatusPaid:
		return "Pagado"
	case domain.PaymentStatusFailed:
		return "Fallido"
	case domain.PaymentStatusCancelled:
		return "Cancelado"
	case domain.PaymentStatusRefunded:
		return "Reembolsado"
	case domain.PaymentStatusOverdue:
		return "Vencido"
	default:
		return string(status)
	}
}

// FormatAmount renders a minor-unit amount the way the es-ES locale does,
// e.g. 123456 EUR -> "1.234,56 €".
func FormatAmount(amount int64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	whole := amount / 100
	cents := amount % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%s,%02d %s", sign, grouped.String(), cents, currencySymbol(currency))
}

func currencySymbol(currency string) string {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "EUR", "":
		return "€"
	case "USD":
		return "$"
	default:
		return strings.ToUpper(strings.TrimSpace(currency))
	}
}

// FormatPaymentMethod renders an instrument for display, e.g.
// "Visa •••• 4242" or "Transferencia bancaria".
func FormatPaymentMethod(method domain.PaymentMethod) string {
	if method.Type == domain.PaymentMethodCard && method.LastFour != nil {
		brand := "Tarjeta"
		if method.Brand != nil && *method.Brand != "" {
			brand = *method.Brand
		}
		return fmt.Sprintf("%s •••• %s", brand, *method.LastFour)
	}
	return MethodText(method.Type)
}

// MethodText returns the patient-facing Spanish label for a method type.
func MethodText(methodType domain.PaymentMethodType) string {
	switch methodType {
	case domain.PaymentMethodCard:
		return "Tarjeta"
	case domain.PaymentMethodPaypal:
		return "PayPal"
	case domain.PaymentMethodMercadoPago:
		return "Mercado Pago"
	case domain.PaymentMethodBankTransfer:
		return "Transferencia bancaria"
	case domain.PaymentMethodCash:
		return "Efectivo"
	default:
		return string(methodType)
	}
}
