package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/buildtall-systems/zapdesk/internal/db"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var tipsLimit int

var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "List tips recorded in the ledger",
	Args:  cobra.NoArgs,
	RunE:  runTips,
}

func init() {
	tipsCmd.Flags().IntVarP(&tipsLimit, "limit", "n", 20, "number of tips to show (0 for all)")
	rootCmd.AddCommand(tipsCmd)
}

func runTips(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	database, err := db.Open(e.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	tips, err := database.ListTips(ctx, tipsLimit)
	if err != nil {
		return err
	}

	writeTips(cmd.OutOrStdout(), tips, time.Now())
	return nil
}

func writeTips(w io.Writer, tips []db.Tip, now time.Time) {
	if len(tips) == 0 {
		fmt.Fprintln(w, "no tips recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tRECIPIENT\tAMOUNT\tHASH\tCOMMENT")
	for _, t := range tips {
		hash := t.PaymentHash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s sats\t%s\t%s\n",
			humanize.RelTime(t.CreatedAt, now, "ago", "from now"),
			t.Recipient,
			humanize.Comma(t.AmountSats),
			hash,
			t.Comment,
		)
	}
	_ = tw.Flush()
}
