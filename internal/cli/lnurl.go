package cli

import (
	"fmt"
	"io"

	"github.com/buildtall-systems/zapdesk/internal/lightning"
	"github.com/spf13/cobra"
)

var lnurlCmd = &cobra.Command{
	Use:   "lnurl <lightning-address>",
	Short: "Show the LNURL-pay parameters of a Lightning Address",
	Long: `Perform LNURL-pay discovery only and print the service parameters and
the bech32 LNURL, without requesting an invoice.`,
	Args: cobra.ExactArgs(1),
	RunE: runLNURL,
}

func init() {
	rootCmd.AddCommand(lnurlCmd)
}

func runLNURL(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	desc, err := e.client.ResolveCallbackOnly(cmd.Context(), args[0])
	if err != nil {
		return e.resolutionError(err)
	}

	encoded, err := lightning.EncodeLNURL(desc.LNURL)
	if err != nil {
		return fmt.Errorf("encoding LNURL: %w", err)
	}

	writePayService(cmd.OutOrStdout(), desc, encoded)
	return nil
}

func writePayService(w io.Writer, d *lightning.PayServiceDescriptor, encoded string) {
	fmt.Fprintln(w, d.Address)
	if desc := d.Description(); desc != "" {
		fmt.Fprintf(w, "  description: %s\n", desc)
	}
	fmt.Fprintf(w, "  sendable:    %s to %s\n",
		lightning.FormatSats(d.MinSats()), lightning.FormatSats(d.MaxSats()))
	if d.CommentAllowed > 0 {
		fmt.Fprintf(w, "  comments:    up to %d characters\n", d.CommentAllowed)
	}
	fmt.Fprintf(w, "  callback:    %s\n", d.Callback)
	if npub := d.NostrNpub(); npub != "" {
		fmt.Fprintf(w, "  zaps:        %s\n", npub)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, encoded)
}
