// Command inspect dumps the account records of a stopped node's BadgerDB directory.
package main

import (
	"budget-grid/repositories"
	"budget-grid/wire"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/grid", "Path to the node's badger directory")
	prefix := flag.String("prefix", repositories.AccountPrefix, "Key prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := dump(db, *prefix, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// dump prints one row per key. Undecodable values are listed with their size.
func dump(db *badger.DB, prefix string, out io.Writer) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Balance", "Version", "Updated", "Size"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				size := strconv.Itoa(len(v)) + " bytes"
				account, err := wire.UnmarshalAccount(v)
				if err != nil {
					table.Append([]string{key, "unreadable: " + err.Error(), "-", "-", size})
					return nil
				}
				table.Append([]string{key, account.Balance.String(), strconv.FormatUint(account.Version, 10),
					account.UpdatedAt.Format("2006-01-02 15:04:05"), size})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

// openDB opens read-only, next to a running node. A value log left dirty by a
// crash needs one read-write open to be truncated first.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "Log truncate required") {
		return nil, err
	}
	fmt.Fprintln(os.Stderr, "Value log needs truncation, repairing...")
	repaired, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
	if err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	_ = repaired.Close()
	return badger.Open(opts)
}
