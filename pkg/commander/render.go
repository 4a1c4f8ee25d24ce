package commander

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/orderbook"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
}

func RenderAccounts(w io.Writer, accounts []ledger.Account) {
	fmt.Fprintln(w, "-------------------- ACCOUNTS ------------------")
	fmt.Fprintf(w, "Total Accounts: %d\n", len(accounts))
	tw := newTable(w)
	fmt.Fprintln(tw, "Account\t$USD\tCoin (C)\t")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t\n", a.Name, a.USD.StringFixed(2), a.Coin)
	}
	_ = tw.Flush()
}

// RenderBook prints asks above bids, both from the highest price down, so the
// spread sits in the middle.
func RenderBook(w io.Writer, depth orderbook.Depth) {
	fmt.Fprintln(w, "------------------ ORDER BOOK ----------------")
	tw := newTable(w)
	fmt.Fprintln(tw, " \tQty\t$\t")
	for i := len(depth.Asks) - 1; i >= 0; i-- {
		lvl := depth.Asks[i]
		fmt.Fprintf(tw, "ask\t%d\t%s\t\n", lvl.Qty, lvl.Price.StringFixed(2))
	}
	fmt.Fprintln(tw, "\t\t\t")
	for _, lvl := range depth.Bids {
		fmt.Fprintf(tw, "bid\t%d\t%s\t\n", lvl.Qty, lvl.Price.StringFixed(2))
	}
	_ = tw.Flush()
}

func RenderTransactions(w io.Writer, account string, txs []ledger.Transaction) {
	fmt.Fprintln(w, "-------------------- TRANSACTIONS ------------------")
	if account == "" {
		fmt.Fprintln(w, "All Transactions")
	} else {
		fmt.Fprintf(w, "Account: %s\n", account)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTimestamp\tAggressor\tBuyer\tSeller\tQuantity\tPrice\t")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t\n",
			tx.ID,
			tx.Timestamp.UTC().Format(time.RFC3339),
			tx.Aggressor,
			tx.Buyer,
			tx.Seller,
			tx.Qty,
			tx.Price.StringFixed(2))
	}
	_ = tw.Flush()
}
