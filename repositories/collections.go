package repositories

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection            = "users"
	InvestmentsCollection      = "investments"
	InvestmentPlansCollection  = "investmentplans"
	IncomesCollection          = "incomes"
	CronExecutionsCollection   = "cronexecutions"
	TradeActivationsCollection = "tradeactivations"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NormalizePage clamps page and limit to sane values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// pageOptions builds skip/limit/sort for one page of a listing.
func pageOptions(page, limit int, sort bson.D) *options.FindOptions {
	page, limit = NormalizePage(page, limit)
	return options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(sort)
}
