package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/autobuy/bridge"
	"github.com/hazyhaar/autobuy/checkout"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
)

func newOrderCmd(g *globalOpts) *cobra.Command {
	var file string
	var req order.Request
	var degraded bool

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place one order and print its outcome",
		Long: `Order runs one order in the working tab. When the tab is on another site
the order navigates first and resumes once the supplier page has loaded.

The order comes from --file (JSON, "-" for stdin) or from the flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				if err := readJSON(file, cmd.InOrStdin(), &req); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			a, err := setup(ctx, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			work, err := a.workingPage(ctx)
			if err != nil {
				return err
			}
			router := newRouter(a, func(context.Context) (dom.Page, error) { return work, nil })

			payload, err := json.Marshal(checkout.ProcessOrderRequest{Order: req, Degraded: degraded})
			if err != nil {
				return err
			}
			raw, err := router.Call(ctx, bridge.ProcessOrder, payload)
			if err != nil {
				return err
			}
			var out *order.Outcome
			if err := json.Unmarshal(raw, &out); err != nil {
				return err
			}
			if out.Status == order.StatusNavigating {
				// Navigate returned after the load event: this is the page load.
				resumed, err := a.engine.Resume(ctx, work)
				if err != nil {
					return err
				}
				if resumed != nil {
					out = resumed
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "order request as JSON")
	cmd.Flags().StringVar(&req.ID, "id", "", "order id")
	cmd.Flags().StringVar(&req.OrderNumber, "order-number", "", "storefront order number")
	cmd.Flags().StringVar(&req.SupplierURL, "url", "", "supplier product URL")
	cmd.Flags().IntVar(&req.Quantity, "qty", 1, "quantity")
	cmd.Flags().StringVar(&req.ShippingMethod, "shipping", "", "shipping method to pick")
	cmd.Flags().StringVar(&req.CouponCode, "coupon", "", "coupon code")
	cmd.Flags().StringVar(&req.PromoCode, "promo", "", "promo code")
	cmd.Flags().BoolVar(&degraded, "degraded", false, "only fill the cart, even where full checkout is supported")
	return cmd
}

func newResumeCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the in-flight order on the working tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			work, err := a.workingPage(ctx)
			if err != nil {
				return err
			}
			out, err := a.engine.Resume(ctx, work)
			if err != nil {
				return err
			}
			if out == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no in-flight order for this page")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newHistoryCmd(g *globalOpts) *cobra.Command {
	var asJSON bool
	var inflight bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded order outcomes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if inflight {
				f, err := a.engine.InFlight(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), f)
			}

			entries, err := a.engine.History(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []order.HistoryEntry{}
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&inflight, "inflight", false, "show the in-flight order instead")
	return cmd
}

func newRetryCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <order-id>",
		Short: fmt.Sprintf("Re-submit a recorded order (at most %d times)", checkout.MaxRetries),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			work, err := a.workingPage(ctx)
			if err != nil {
				return err
			}
			out, err := a.engine.Retry(ctx, work, args[0])
			if err != nil {
				return err
			}
			if out.Status == order.StatusNavigating {
				if resumed, err := a.engine.Resume(ctx, work); err != nil {
					return err
				} else if resumed != nil {
					out = resumed
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newStatusCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id>",
		Short: "Read the supplier-side status of a placed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.engine.CheckStatus(ctx, args[0])
			if err != nil {
				return err
			}
			if st == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no supplier status available for", args[0])
				return nil
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <url>",
		Short: "Show the platform and dispatch tier of a supplier URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), checkout.Detect(args[0]))
		},
	}
}

func readJSON(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHistory(w io.Writer, entries []order.HistoryEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROCESSED\tORDER\tPLATFORM\tSTATUS\tSUPPLIER ORDER\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ProcessedAt.Local().Format("2006-01-02 15:04"), e.OrderID, e.Platform, e.Status,
			e.SupplierOrderNumber, e.Error)
	}
	return tw.Flush()
}
