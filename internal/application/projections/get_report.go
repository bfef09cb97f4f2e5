package projections

import (
	"context"

	"loyaltyloop/internal/domain/loyalty"
)

// GetReportQuery carries query parameters.
type GetReportQuery struct{}

// GetReportResult carries the query result.
type GetReportResult struct {
	Customers         int
	ActivePrograms    int
	Transactions      int
	Purchases         int
	Redemptions       int
	PointsIssued      int // sum of purchase points
	PointsRedeemed    int
	Revenue           float64
	AverageOrderValue float64 // Revenue / Purchases
	RepeatRate        float64 // percentage of customers with two or more purchases
	TopCustomers      []CustomerRow
}

// TopCustomerLimit caps the report's top-spender table.
const TopCustomerLimit = 5

// GetReportDeps holds dependencies for GetReport.
type GetReportDeps struct {
	Business BusinessReader
}

// QueryGetReport aggregates the transaction log.
// PRE: a business is loaded
// POST: derived ratios are zero when their denominator is zero
func QueryGetReport(ctx context.Context, query GetReportQuery, deps GetReportDeps) (GetReportResult, error) {
	b, err := currentBusiness(deps.Business)
	if err != nil {
		return GetReportResult{}, err
	}

	res := GetReportResult{
		Customers:      len(b.Customers),
		ActivePrograms: b.ActivePrograms(),
		Transactions:   len(b.Transactions),
	}
	for _, t := range b.Transactions {
		switch t.Type {
		case loyalty.TxPurchase:
			res.Purchases++
			res.PointsIssued += t.PointsEarned
			res.Revenue += t.Amount
		case loyalty.TxRedemption:
			res.Redemptions++
			res.PointsRedeemed += t.PointsEarned
		}
	}
	if res.Purchases > 0 {
		res.AverageOrderValue = res.Revenue / float64(res.Purchases)
	}

	l := ledgerByCustomer(b.Transactions)
	rows := make([]CustomerRow, 0, len(b.Customers))
	repeat := 0
	for _, c := range b.Customers {
		r := l.row(c)
		if r.Visits >= 2 {
			repeat++
		}
		rows = append(rows, r)
	}
	if res.Customers > 0 {
		res.RepeatRate = 100 * float64(repeat) / float64(res.Customers)
	}

	sortCustomerRows(rows, sortBySpentDesc)
	if len(rows) > TopCustomerLimit {
		rows = rows[:TopCustomerLimit]
	}
	res.TopCustomers = rows
	return res, nil
}
