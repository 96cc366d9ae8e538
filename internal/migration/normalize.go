package migration

import (
	"fmt"
	"time"

	"github.com/moneo-app/moneo/internal/entity"
)

var validPaymentMethods = map[string]struct{}{
	entity.PaymentCash:     {},
	entity.PaymentCard:     {},
	entity.PaymentTransfer: {},
	entity.PaymentCheck:    {},
	entity.PaymentOther:    {},
}

var validPeriods = map[string]struct{}{
	entity.PeriodMonthly:   {},
	entity.PeriodQuarterly: {},
	entity.PeriodYearly:    {},
}

// normalizePaymentMethod forces the field into the enumerated domain;
// anything unrecognized becomes cash.
func normalizePaymentMethod(row map[string]any) {
	pm := entity.String(row, "paymentMethod")
	if _, ok := validPaymentMethods[pm]; !ok {
		row["paymentMethod"] = entity.PaymentCash
	}
}

// normalizePeriodType defaults unrecognized period types to monthly.
func normalizePeriodType(row map[string]any) {
	pt := entity.String(row, "periodType")
	if _, ok := validPeriods[pt]; !ok {
		row["periodType"] = entity.PeriodMonthly
	}
}

// normalizeGoal clamps the goal's period to the enumerated domain and
// synthesizes a missing periodValue from the record's creation date.
func normalizeGoal(row map[string]any) {
	period := entity.String(row, "period")
	if _, ok := validPeriods[period]; !ok {
		period = entity.PeriodMonthly
		row["period"] = period
	}

	if entity.String(row, "periodValue") != "" {
		return
	}

	createdAt, ok := entity.Time(row, "createdAt")
	if !ok {
		createdAt = time.Now().UTC()
	}

	row["periodValue"] = periodValue(period, createdAt)
}

// periodValue renders the period a timestamp falls into: monthly "YYYY-MM",
// quarterly "YYYY-Qn", yearly "YYYY".
func periodValue(period string, t time.Time) string {
	switch period {
	case entity.PeriodQuarterly:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case entity.PeriodYearly:
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}

// resolveClient rewrites a payload-local client reference to the canonical
// id. Optional references degrade to null when unresolved; required ones fail
// the record.
func resolveClient(run *runState, row map[string]any, required bool) error {
	ref := refString(row["clientId"])

	if ref == "" {
		if required {
			return fmt.Errorf("client reference is required")
		}

		if entity.Has(row, "clientId") {
			row["clientId"] = nil
		}

		return nil
	}

	id, ok := run.remap.resolve(entity.TypeClient, ref)
	if !ok {
		if required {
			return fmt.Errorf("client reference %q not found in payload", ref)
		}

		row["clientId"] = nil

		return nil
	}

	row["clientId"] = id.String()

	return nil
}
