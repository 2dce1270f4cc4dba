// Command ledgerdump prints users, subscriptions, open settlements and the
// wallet ledger with its folded balance. It reads the same configuration
// as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dimpoz/backend/internal/config"
	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/crypto"
	"go.uber.org/zap"
)

func main() {
	limit := flag.Int("limit", 20, "number of ledger entries to print (0 = all)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	keys, err := store.NewKeyGenerator(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal(err)
	}
	st, closeStore, err := repository.OpenStore(ctx, cfg, keys, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatal(err)
	}

	d := dumper{
		users:       repository.NewUserRepository(st),
		subs:        repository.NewSubscriptionRepository(st),
		settlements: repository.NewSettlementRepository(st, enc),
		ledger:      repository.NewLedgerRepository(st),
		now:         time.Now(),
	}
	if err := d.dump(ctx, os.Stdout, *limit); err != nil {
		log.Fatal(err)
	}
}

type dumper struct {
	users       *repository.UserRepository
	subs        *repository.SubscriptionRepository
	settlements *repository.SettlementRepository
	ledger      *repository.LedgerRepository
	now         time.Time
}

func (d dumper) dump(ctx context.Context, out io.Writer, limit int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	users, err := d.users.ListAll(ctx)
	if err != nil {
		return err
	}
	subs, err := d.subs.ListAll(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(w, "--- USERS ---")
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tPLAN\tEXPIRES\tACTIVE")
	for _, id := range ids {
		u := users[id]
		plan, expires, active := "-", "-", "-"
		if sub, ok := subs[id]; ok {
			plan = domain.PlanName(sub.PlanID)
			expires = sub.EndDate.Format(time.RFC3339)
			active = fmt.Sprint(sub.Active && sub.IsActiveAt(d.now))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", id, u.Email, u.Role, plan, expires, active)
	}

	open, err := d.settlements.List(ctx, domain.SettlementPending)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\n--- PENDING SETTLEMENTS ---")
	fmt.Fprintln(w, "REFERENCE\tUSER\tPLAN\tAMOUNT\tPHONE\tCREATED")
	for _, s := range open {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", s.InternalReference, s.UserID, s.PlanID, s.Amount,
			domain.MaskPhone(s.PhoneNumber), s.CreatedAt.Format(time.RFC3339))
	}

	txs, err := d.ledger.List(ctx)
	if err != nil {
		return err
	}
	balance := domain.Balance(txs)
	domain.SortNewestFirst(txs)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	fmt.Fprintln(w, "\n--- LEDGER ---")
	fmt.Fprintln(w, "KEY\tTYPE\tAMOUNT\tDETAIL\tTIMESTAMP")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", tx.ID, tx.Type, tx.Amount, detail(tx), tx.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\nBALANCE\tUGX %d\n", balance)
	return w.Flush()
}

func detail(tx domain.Transaction) string {
	switch tx.Type {
	case domain.TxSubscription:
		return tx.PlanName + " by " + tx.UserName
	case domain.TxWithdrawal:
		return fmt.Sprintf("net %d fee %d to %s", tx.NetAmount, tx.Fee, domain.MaskPhone(tx.PhoneNumber))
	case domain.TxFee:
		return tx.Source
	}
	return ""
}
