package repoargs

type RepositoryName string

const (
	AccountRepoName        RepositoryName = "account"
	LedgerEntryRepoName    RepositoryName = "ledger_entry"
	VoucherRepoName        RepositoryName = "voucher"
	ListingRepoName        RepositoryName = "listing"
	OrderRepoName          RepositoryName = "order"
	WithdrawalRepoName     RepositoryName = "withdrawal"
	SettingsRepoName       RepositoryName = "settings"
	ReconciliationRepoName RepositoryName = "reconciliation"
	PurchaseDedupRepoName  RepositoryName = "purchase_dedup"
)
