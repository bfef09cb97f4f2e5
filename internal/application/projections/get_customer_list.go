package projections

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/domain/loyalty"
)

// CustomerSortColumns are the columns the customer list can be sorted by.
var CustomerSortColumns = []string{"name", "points", "joined", "spent"}

// GetCustomerListQuery carries query parameters.
type GetCustomerListQuery struct {
	listutil.ListParams
}

// CustomerRow is a customer with figures derived from the transaction log.
type CustomerRow struct {
	loyalty.Customer
	Balance    int     // purchase points minus redeemed points
	Visits     int     // purchases
	TotalSpent float64 // sum of purchase amounts
}

// GetCustomerListResult carries the query result.
type GetCustomerListResult struct {
	Customers []CustomerRow
	Page      listutil.PageInfo
	Search    string
	Sort      listutil.SortParams
}

// GetCustomerListDeps holds dependencies for GetCustomerList.
type GetCustomerListDeps struct {
	Business BusinessReader
}

// QueryGetCustomerList searches customers by name, email or phone and pages the result.
// PRE: a business is loaded
// POST: rows are in registration order unless a sort column is given
func QueryGetCustomerList(ctx context.Context, query GetCustomerListQuery, deps GetCustomerListDeps) (GetCustomerListResult, error) {
	b, err := currentBusiness(deps.Business)
	if err != nil {
		return GetCustomerListResult{}, err
	}

	ledger := ledgerByCustomer(b.Transactions)
	rows := make([]CustomerRow, 0, len(b.Customers))
	for _, c := range b.Customers {
		if !c.Matches(query.Search) {
			continue
		}
		rows = append(rows, ledger.row(c))
	}
	sortCustomerRows(rows, query.SortParams)

	page, info := listutil.Paginate(rows, query.PageParams)
	return GetCustomerListResult{
		Customers: page,
		Page:      info,
		Search:    query.Search,
		Sort:      query.SortParams,
	}, nil
}

func sortCustomerRows(rows []CustomerRow, s listutil.SortParams) {
	var by func(a, b CustomerRow) int
	switch s.Sort {
	case "name":
		by = func(a, b CustomerRow) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case "points":
		by = func(a, b CustomerRow) int { return cmp.Compare(a.Balance, b.Balance) }
	case "joined":
		by = func(a, b CustomerRow) int { return a.DateJoined.Compare(b.DateJoined) }
	case "spent":
		by = func(a, b CustomerRow) int { return cmp.Compare(a.TotalSpent, b.TotalSpent) }
	default:
		return
	}
	if s.Desc() {
		asc := by
		by = func(a, b CustomerRow) int { return asc(b, a) }
	}
	slices.SortStableFunc(rows, by)
}

type customerTotals struct {
	earned, redeemed, visits int
	spent                    float64
}

type ledger map[string]*customerTotals

func ledgerByCustomer(txs []loyalty.Transaction) ledger {
	l := ledger{}
	for _, t := range txs {
		ct, ok := l[t.CustomerID]
		if !ok {
			ct = &customerTotals{}
			l[t.CustomerID] = ct
		}
		switch t.Type {
		case loyalty.TxPurchase:
			ct.earned += t.PointsEarned
			ct.visits++
			ct.spent += t.Amount
		case loyalty.TxRedemption:
			ct.redeemed += t.PointsEarned
		}
	}
	return l
}

func (l ledger) row(c loyalty.Customer) CustomerRow {
	r := CustomerRow{Customer: c, Balance: c.Points, Visits: c.Visits, TotalSpent: c.TotalSpent}
	if ct, ok := l[c.ID]; ok {
		r.Balance += ct.earned - ct.redeemed
		r.Visits += ct.visits
		r.TotalSpent += ct.spent
	}
	return r
}
