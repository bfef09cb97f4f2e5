package projections

import (
	"context"
	"strings"

	"loyaltyloop/internal/application/listutil"
	"loyaltyloop/internal/domain/loyalty"
)

// TransactionFilterKeys are the exact-match filters the transaction list accepts.
var TransactionFilterKeys = []string{"type"}

// GetTransactionListQuery carries query parameters.
type GetTransactionListQuery struct {
	listutil.ListParams
}

// GetTransactionListResult carries the query result.
type GetTransactionListResult struct {
	Transactions []loyalty.Transaction
	Page         listutil.PageInfo
	Search       string
	Type         string
}

// GetTransactionListDeps holds dependencies for GetTransactionList.
type GetTransactionListDeps struct {
	Business BusinessReader
}

// QueryGetTransactionList filters the transaction log by customer name and type.
// PRE: a business is loaded
// POST: transactions are newest first
func QueryGetTransactionList(ctx context.Context, query GetTransactionListQuery, deps GetTransactionListDeps) (GetTransactionListResult, error) {
	b, err := currentBusiness(deps.Business)
	if err != nil {
		return GetTransactionListResult{}, err
	}

	term := strings.ToLower(query.Search)
	txType := query.Filters["type"]
	if txType != loyalty.TxPurchase && txType != loyalty.TxRedemption {
		txType = ""
	}
	matched := listutil.Filter(newestFirst(b.Transactions, 0), func(t loyalty.Transaction) bool {
		if txType != "" && t.Type != txType {
			return false
		}
		return term == "" || strings.Contains(strings.ToLower(t.CustomerName), term)
	})

	page, info := listutil.Paginate(matched, query.PageParams)
	return GetTransactionListResult{
		Transactions: page,
		Page:         info,
		Search:       query.Search,
		Type:         txType,
	}, nil
}
