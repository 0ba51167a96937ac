package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/service/contact"
)

var importCmd = &cobra.Command{
	Use:   "import <organization-id> <file.csv|s3://key>",
	Short: "Import contacts from a CSV file or an object storage key",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orgID, source := args[0], args[1]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var res *contact.ImportResult
	if key, ok := strings.CutPrefix(source, "s3://"); ok {
		res, err = a.Contacts.ImportFromS3(ctx, orgID, key)
	} else {
		f, openErr := os.Open(source)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		res, err = a.Contacts.ImportCSV(ctx, orgID, f)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Imported contacts: %d created, %d updated, %d invalid\n", res.Created, res.Updated, len(res.Invalid))
	for _, e := range res.Invalid {
		fmt.Printf("  line %d: %s\n", e.Line, e.Error)
	}
	return nil
}
