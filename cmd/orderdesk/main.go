package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"orderdesk/internal"
	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/export"
	"orderdesk/internal/storage"
	"orderdesk/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	client := backend.NewClient(cfg)
	ctx := context.Background()

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "purchase order pdf or saved .eml")
		customerName := fs.String("customer-name", "", "customer name for finalize")
		customerID := fs.String("customer-id", "", "customer id for finalize")
		finalize := fs.Bool("finalize", false, "submit the order after matching")
		out := fs.String("out", "", "optional review xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		must(runWorkflow(ctx, cfg, client, db, *file, *customerName, *customerID, *finalize, *out))
	case "orders:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		cached := fs.Bool("cached", false, "read the local cache instead of the backend")
		_ = fs.Parse(os.Args[2:])
		must(listOrders(ctx, client, db, *cached))
	case "orders:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		orders, err := client.ListOrders(ctx)
		must(err)
		must(db.ReplaceOrdersCache(orders))
		must(export.OrdersToXLSX(orders, *out))
		fmt.Printf("exported %d orders to %s\n", len(orders), *out)
	case "submissions:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max rows")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListSubmissions(*limit)
		must(err)
		for _, row := range rows {
			fmt.Printf("#%d trace=%s customer=%s (%s) at=%s\n", row.ID, row.TraceID, row.CustomerName, row.CustomerID, row.CreatedAt)
		}
		if len(rows) == 0 {
			fmt.Println("no submissions recorded")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func runWorkflow(ctx context.Context, cfg config.Config, client *backend.Client, db *storage.DB, file, customerName, customerID string, finalize bool, out string) error {
	w := workflow.New(cfg, client, db)
	defer w.Close()

	var err error
	if strings.HasSuffix(strings.ToLower(file), ".eml") {
		err = w.SelectEmailFile(file)
	} else {
		err = w.SelectFile(file)
	}
	if err != nil {
		return err
	}

	if preview := w.Preview(); preview != nil {
		fmt.Printf("selected %s (%d bytes, %d pages)\n", preview.Name, preview.Size, preview.Pages)
	}

	if err := w.Extract(ctx); err != nil {
		return err
	}
	items := w.Items()
	fmt.Printf("extracted %d items\n", len(items))
	for _, item := range items {
		fmt.Printf("  %s qty=%g price=%.2f total=%.2f\n", item.Name, item.Quantity, item.Price, item.Total)
	}

	session := w.MatchSession()
	if session != nil {
		fmt.Printf("matched %d of %d names\n", len(session.Selections), len(items))
		for query, chosen := range session.Selections {
			if query != chosen {
				fmt.Printf("  %s -> %s\n", query, chosen)
			}
		}

		// The review sheet pairs extracted names with their candidates, so it
		// has to go out before the selections rewrite those names.
		if out != "" {
			rows := export.ReviewRows(items, session.Results, session.Selections)
			if err := export.ReviewToXLSX(rows, out); err != nil {
				return err
			}
			fmt.Printf("review written to %s\n", out)
		}

		if err := w.ApplySelections(ctx); err != nil {
			fmt.Printf("re-match after apply failed: %v\n", err)
		}
	}

	if !finalize {
		return nil
	}

	draft := w.EnterFinalize()
	draft.SetCustomer(customerName, customerID)
	if err := w.SubmitDraft(ctx); err != nil {
		return err
	}
	fmt.Printf("order submitted for %s (%s), %d items\n", customerName, customerID, len(draft.Items))
	return nil
}

func listOrders(ctx context.Context, client *backend.Client, db *storage.DB, cached bool) error {
	if cached {
		rows, err := db.ListCachedOrders()
		if err != nil {
			return err
		}
		printOrders(rows)
		return nil
	}

	rows, err := client.ListOrders(ctx)
	if err != nil {
		return err
	}
	if err := db.ReplaceOrdersCache(rows); err != nil {
		return err
	}
	printOrders(rows)
	return nil
}

func printOrders(rows []internal.OrderRow) {
	for _, o := range rows {
		fmt.Printf("#%d %s %s qty=%g total=%.2f\n", o.ID, o.CustomerName, o.Name, o.Quantity, o.Total)
	}
	if len(rows) == 0 {
		fmt.Println("no orders")
	}
}

func usage() {
	fmt.Println("usage: orderdesk <command>")
	fmt.Println("commands:")
	fmt.Println("  run --file=order.pdf [--customer-name=... --customer-id=... --finalize] [--out=review.xlsx]")
	fmt.Println("  orders:list [--cached]")
	fmt.Println("  orders:export --out=./out/orders.xlsx")
	fmt.Println("  submissions:list [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
