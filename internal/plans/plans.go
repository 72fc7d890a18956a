// Package plans содержит статический каталог планов подписки
// и чистые функции расчёта дат окончания. Каталог не хранится в базе:
// цена фиксируется в платеже в момент покупки.
package plans

import (
	"fmt"
	"time"
)

// AnnualPlanID — годовой план; единственный план с годовым сроком действия.
const AnnualPlanID = "annual"

// Plan описывает план подписки из каталога.
type Plan struct {
	ID          string
	Name        string
	PriceCents  int64
	FreeCoupons int // купоны, выдаваемые при активации плана
}

var catalog = map[string]Plan{
	"basic":   {ID: "basic", Name: "Básico", PriceCents: 1990, FreeCoupons: 3},
	"premium": {ID: "premium", Name: "Premium", PriceCents: 3990, FreeCoupons: 5},
	"family":  {ID: "family", Name: "Família", PriceCents: 5990, FreeCoupons: 10},
	"annual":  {ID: "annual", Name: "Anual", PriceCents: 15000, FreeCoupons: 0},
}

// Get возвращает план по идентификатору.
func Get(planID string) (Plan, error) {
	p, ok := catalog[planID]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan: %s", planID)
	}
	return p, nil
}

// EndDate считает дату окончания подписки от момента одобрения платежа.
// Годовой план действует один календарный год, остальные — 30 дней.
// AddDate корректно обрабатывает високосные годы.
func EndDate(planID string, approvedAt time.Time) time.Time {
	if planID == AnnualPlanID {
		return approvedAt.AddDate(1, 0, 0)
	}
	return approvedAt.AddDate(0, 0, 30)
}

// CouponGrant возвращает количество купонов, выдаваемых при активации плана.
// Для неизвестных планов купоны не выдаются.
func CouponGrant(planID string) int {
	p, ok := catalog[planID]
	if !ok {
		return 0
	}
	return p.FreeCoupons
}
