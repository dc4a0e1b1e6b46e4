package httpapi

// Compile-time checks that both stores satisfy every interface the services
// and the HTTP layer consume.

import (
	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/posting"
	"github.com/erpcore/books/internal/report"
	"github.com/erpcore/books/internal/storage/memory"
	"github.com/erpcore/books/internal/storage/postgres"
	"github.com/erpcore/books/internal/voucher"
)

var (
	_ coa.Repo         = (*memory.Store)(nil)
	_ coa.Writer       = (*memory.Store)(nil)
	_ voucher.Repo     = (*memory.Store)(nil)
	_ voucher.Writer   = (*memory.Store)(nil)
	_ posting.Repo     = (*memory.Store)(nil)
	_ posting.TxRunner = (*memory.Store)(nil)
	_ report.Repo      = (*memory.Store)(nil)
	_ ReadyChecker     = (*memory.Store)(nil)

	_ coa.Repo         = (*postgres.Store)(nil)
	_ coa.Writer       = (*postgres.Store)(nil)
	_ voucher.Repo     = (*postgres.Store)(nil)
	_ voucher.Writer   = (*postgres.Store)(nil)
	_ posting.Repo     = (*postgres.Store)(nil)
	_ posting.TxRunner = (*postgres.Store)(nil)
	_ report.Repo      = (*postgres.Store)(nil)
	_ ReadyChecker     = (*postgres.Store)(nil)
)
