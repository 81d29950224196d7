// Package cli is the interactive command-line shell: the external
// collaborator that turns flags/arguments into calls against the exchange
// core (§6.1), plus the pretty-printers for its output. None of this is
// part of the core; it only talks to the core through Exchange's exported
// operations.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/exchange"
)

// New builds the root "exchange" command tree, wired against ex.
func New(ex *exchange.Exchange, clk clock.Clock) *cobra.Command {
	root := &cobra.Command{
		Use:   "exchange",
		Short: "A simulated equities matching engine shell",
	}

	root.AddCommand(
		newSubmitCommand(ex, clk),
		newCancelCommand(ex),
		newListOrdersCommand(ex, false),
		newListOrdersCommand(ex, true),
		newListTradesCommand(ex),
		newDeleteTradeCommand(ex),
		newClearCommand(ex),
		newAccountCommand(ex),
		newQuoteCommand(ex),
		newServeCommand(ex),
	)
	return root
}

func newSubmitCommand(ex *exchange.Exchange, clk clock.Clock) *cobra.Command {
	var (
		accountID string
		ticker    string
		side      string
		orderType string
		quantity  string
		price     string
		stopPrice string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new order",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := buildOrder(accountID, ticker, side, orderType, quantity, price, stopPrice, clk.Now())
			if err != nil {
				return err
			}
			orderID, err := ex.SubmitOrder(o)
			if err != nil {
				return fmt.Errorf("order rejected: %w", err)
			}
			fmt.Printf("order accepted: %s\n", orderID)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol (required)")
	cmd.Flags().StringVar(&side, "side", "", "buy|sell (required)")
	cmd.Flags().StringVar(&orderType, "type", "market", "market|limit|stop_market|stop_limit")
	cmd.Flags().StringVar(&quantity, "quantity", "", "order quantity (required)")
	cmd.Flags().StringVar(&price, "price", "", "limit price (required for limit/stop_limit)")
	cmd.Flags().StringVar(&stopPrice, "stop-price", "", "stop price (required for stop_market/stop_limit)")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("side")
	cmd.MarkFlagRequired("quantity")

	return cmd
}

func buildOrder(accountID, ticker, sideStr, kindStr, quantityStr, priceStr, stopPriceStr string, timestamp time.Time) (book.Order, error) {
	side, err := parseSide(sideStr)
	if err != nil {
		return book.Order{}, err
	}
	kind, err := parseKind(kindStr)
	if err != nil {
		return book.Order{}, err
	}
	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return book.Order{}, fmt.Errorf("invalid quantity %q: %w", quantityStr, err)
	}

	o := book.Order{
		AccountID: accountID,
		Ticker:    strings.ToUpper(ticker),
		Side:      side,
		Kind:      kind,
		Quantity:  quantity,
		Timestamp: timestamp,
	}

	if priceStr != "" {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return book.Order{}, fmt.Errorf("invalid price %q: %w", priceStr, err)
		}
		o.Price = &price
	}
	if stopPriceStr != "" {
		stopPrice, err := decimal.NewFromString(stopPriceStr)
		if err != nil {
			return book.Order{}, fmt.Errorf("invalid stop price %q: %w", stopPriceStr, err)
		}
		o.StopPrice = &stopPrice
	}
	return o, nil
}

func parseSide(s string) (book.Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return book.Buy, nil
	case "sell":
		return book.Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q: must be buy or sell", s)
	}
}

func parseKind(s string) (book.Kind, error) {
	switch strings.ToLower(s) {
	case "market":
		return book.Market, nil
	case "limit":
		return book.Limit, nil
	case "stop_market":
		return book.StopMarket, nil
	case "stop_limit":
		return book.StopLimit, nil
	default:
		return 0, fmt.Errorf("invalid order type %q", s)
	}
}

func newCancelCommand(ex *exchange.Exchange) *cobra.Command {
	var accountID, orderID string
	var isStop bool

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a resting or stop order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ex.CancelOrder(accountID, orderID, isStop); err != nil {
				return err
			}
			fmt.Printf("order %s cancelled\n", orderID)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	cmd.Flags().StringVar(&orderID, "order-id", "", "order id (required)")
	cmd.Flags().BoolVar(&isStop, "stop", false, "target the stop side-queue instead of the resting book")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("order-id")
	return cmd
}

func newListOrdersCommand(ex *exchange.Exchange, stop bool) *cobra.Command {
	var ticker string
	use := "list-orders"
	short := "List resting orders"
	if stop {
		use = "list-stop-orders"
		short = "List stop orders"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var orders []*book.Order
			if stop {
				orders = ex.ListStopOrders(strings.ToUpper(ticker))
			} else {
				orders = ex.ListOrders(strings.ToUpper(ticker))
			}
			printOrders(orders)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "filter to a single ticker")
	return cmd
}

func printOrders(orders []*book.Order) {
	if len(orders) == 0 {
		fmt.Println("no orders")
		return
	}
	for _, o := range orders {
		price := "-"
		if o.Price != nil {
			price = o.Price.String()
		}
		stop := "-"
		if o.StopPrice != nil {
			stop = o.StopPrice.String()
		}
		fmt.Printf(
			"%-24s %-10s %-6s %-4s %-11s qty=%-12s price=%-10s stop=%-10s %s\n",
			o.OrderID, o.AccountID, o.Ticker, o.Side, o.Kind, o.Quantity.String(), price, stop,
			o.Timestamp.Format(time.RFC3339),
		)
	}
}

func newListTradesCommand(ex *exchange.Exchange) *cobra.Command {
	return &cobra.Command{
		Use:   "list-trades",
		Short: "List executed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades := ex.ListTrades()
			if len(trades) == 0 {
				fmt.Println("no trades")
				return nil
			}
			for _, t := range trades {
				fmt.Printf(
					"%-36s %-6s price=%-10s qty=%-12s buy=%-10s sell=%-10s %s\n",
					t.TradeID, t.Ticker, t.Price.String(), t.Quantity.String(),
					t.BuyAccountID, t.SellAccountID, t.Timestamp.Format(time.RFC3339),
				)
			}
			return nil
		},
	}
}

func newDeleteTradeCommand(ex *exchange.Exchange) *cobra.Command {
	var tradeID string
	cmd := &cobra.Command{
		Use:   "delete-trade",
		Short: "Reverse and remove an executed trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ex.DeleteTrade(tradeID); err != nil {
				return err
			}
			fmt.Printf("trade %s reversed\n", tradeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tradeID, "trade-id", "", "trade id (required)")
	cmd.MarkFlagRequired("trade-id")
	return cmd
}

func newClearCommand(ex *exchange.Exchange) *cobra.Command {
	var defaultBalance string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove persisted books and trades, reset accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := decimal.NewFromString(defaultBalance)
			if err != nil {
				return fmt.Errorf("invalid default balance %q: %w", defaultBalance, err)
			}
			if err := ex.ClearAll(balance); err != nil {
				return err
			}
			fmt.Println("cleared")
			return nil
		},
	}
	cmd.Flags().StringVar(&defaultBalance, "default-balance", "10000", "balance assigned to every reset account")
	return cmd
}

func newAccountCommand(ex *exchange.Exchange) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show an account's balance and positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := ex.Account(accountID)
			if err != nil {
				return err
			}
			fmt.Printf("account %s:\n  balance: %s\n  positions:\n", accountID, acct.Balance.String())
			for ticker, qty := range acct.Positions {
				fmt.Printf("    %-6s %s\n", ticker, qty.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	cmd.MarkFlagRequired("account")
	return cmd
}

func newQuoteCommand(ex *exchange.Exchange) *cobra.Command {
	var ticker string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Show the best bid/ask and effective market-order prices for a ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ex.Quote(strings.ToUpper(ticker))
			fmt.Printf(
				"%s bid=%s ask=%s market-buy=%s market-sell=%s\n",
				strings.ToUpper(ticker),
				decimalOrDash(q.Bid), decimalOrDash(q.Ask),
				decimalOrDash(q.BestBuyPrice), decimalOrDash(q.BestSellPrice),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol (required)")
	cmd.MarkFlagRequired("ticker")
	return cmd
}

func decimalOrDash(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
