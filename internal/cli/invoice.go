package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/buildtall-systems/zapdesk/internal/db"
	"github.com/buildtall-systems/zapdesk/internal/lightning"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	invoiceComment   string
	invoiceRequestID string
	invoiceLabel     string
	invoiceJSON      bool
	invoiceNoRecord  bool
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice <lightning-address> <amount-sats>",
	Short: "Resolve a Lightning Address to a payable invoice",
	Long: `Resolve a Lightning Address to a bolt11 invoice for the given amount in
sats. The issued invoice is recorded in the local tip ledger unless
--no-record is set.`,
	Args: cobra.ExactArgs(2),
	RunE: runInvoice,
}

func init() {
	invoiceCmd.Flags().StringVarP(&invoiceComment, "comment", "m", "", "comment for the recipient (LUD-12)")
	invoiceCmd.Flags().StringVar(&invoiceRequestID, "request-id", "", "support request the tip is for; sets the default comment")
	invoiceCmd.Flags().StringVar(&invoiceLabel, "label", "", "recipient display name")
	invoiceCmd.Flags().BoolVar(&invoiceJSON, "json", false, "print the descriptor as JSON")
	invoiceCmd.Flags().BoolVar(&invoiceNoRecord, "no-record", false, "do not record the tip in the ledger")
	rootCmd.AddCommand(invoiceCmd)
}

func runInvoice(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	amount, err := lightning.ParseAmount(args[1])
	if err != nil {
		return e.resolutionError(err)
	}

	pd, err := e.client.ResolveInvoice(cmd.Context(), args[0], amount,
		lightning.WithComment(tipComment(invoiceComment, invoiceRequestID)),
		lightning.WithLabel(invoiceLabel),
	)
	if err != nil {
		return e.resolutionError(err)
	}

	if !invoiceNoRecord {
		if err := e.recordTip(cmd, pd); err != nil {
			return err
		}
	}

	if invoiceJSON {
		return writeDescriptorJSON(cmd.OutOrStdout(), pd)
	}
	writeDescriptor(cmd.OutOrStdout(), pd, time.Now())
	return nil
}

// tipComment returns comment, or a comment naming the support request when
// none was given.
func tipComment(comment, requestID string) string {
	if comment != "" || requestID == "" {
		return comment
	}
	return "Tip for support request #" + requestID
}

func (e *env) recordTip(cmd *cobra.Command, pd *lightning.PaymentDescriptor) error {
	ctx := cmd.Context()

	database, err := db.Open(e.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	tip, err := database.RecordTip(ctx, db.Tip{
		PaymentHash:    pd.PaymentHash,
		HashDecoded:    pd.PaymentHashDecoded,
		Recipient:      pd.Recipient,
		AmountSats:     int64(pd.AmountSats),
		Description:    pd.Description,
		Comment:        pd.Comment,
		PaymentRequest: pd.PaymentRequest,
		CreatedAt:      pd.CreatedAt,
		ExpiresAt:      pd.ExpiresAt,
	})
	if errors.Is(err, db.ErrTipExists) {
		e.log.WithField("payment_hash", pd.PaymentHash).Warn("tip already recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("recording tip: %w", err)
	}

	e.log.WithField("tip_id", tip.ID).Debug("tip recorded")
	return nil
}

// descriptorJSON is the --json view of a descriptor.
type descriptorJSON struct {
	AmountSats         uint64          `json:"amount_sats"`
	PaymentRequest     string          `json:"payment_request"`
	PaymentURI         string          `json:"payment_uri"`
	PaymentHash        string          `json:"payment_hash"`
	PaymentHashDecoded bool            `json:"payment_hash_decoded"`
	Recipient          string          `json:"recipient"`
	Description        string          `json:"description"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
	Status             string          `json:"status"`
	Comment            string          `json:"comment,omitempty"`
	SuccessAction      json.RawMessage `json:"success_action,omitempty"`
}

func writeDescriptorJSON(w io.Writer, pd *lightning.PaymentDescriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(descriptorJSON{
		AmountSats:         pd.AmountSats,
		PaymentRequest:     pd.PaymentRequest,
		PaymentURI:         pd.PaymentURI(),
		PaymentHash:        pd.PaymentHash,
		PaymentHashDecoded: pd.PaymentHashDecoded,
		Recipient:          pd.Recipient,
		Description:        pd.Description,
		CreatedAt:          pd.CreatedAt,
		ExpiresAt:          pd.ExpiresAt,
		Status:             string(pd.Status),
		Comment:            pd.Comment,
		SuccessAction:      pd.SuccessAction,
	})
}

func writeDescriptor(w io.Writer, pd *lightning.PaymentDescriptor, now time.Time) {
	fmt.Fprintln(w, pd.Description)
	fmt.Fprintf(w, "  recipient: %s\n", pd.Recipient)
	fmt.Fprintf(w, "  amount:    %s\n", lightning.FormatSats(pd.AmountSats))
	fmt.Fprintf(w, "  hash:      %s\n", pd.PaymentHash)
	fmt.Fprintf(w, "  expires:   %s (%s)\n",
		pd.ExpiresAt.Format(time.RFC3339), humanize.RelTime(pd.ExpiresAt, now, "ago", "from now"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, pd.PaymentURI())
}
