package domain

// ExpiringCredit is one soon-to-expire credit entry from the balance query.
type ExpiringCredit struct {
	Amount   int64
	ExpireAt int64
}

// CreditSnapshot is the balance of one account at query time. Derived,
// never persisted.
type CreditSnapshot struct {
	GiftCredit     int64
	PurchaseCredit int64
	VIPCredit      int64
	TotalCredit    int64
	IsFreePeriod   bool
	Expiring       []ExpiringCredit
}

// CreditRecord is one entry of the account's credit history.
type CreditRecord struct {
	Title       string
	Amount      int64
	CreateTime  int64
	HistoryType int
	Status      string
}

// CreditHistory is one page of credit history records.
type CreditHistory struct {
	Records     []CreditRecord
	NextCursor  string
	HasMore     bool
	TotalCredit int64
}
