package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ordersapp "github.com/dejobratic/orderflow/internal/orders/app"
	"github.com/dejobratic/orderflow/internal/orders/app/queries"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/orders/validation"
)

func (a *app) migrateCommand() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations, or roll back with --down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down < 0 {
				return errors.New("--down must not be negative")
			}

			start := time.Now()
			if err := a.opts.Migrate(a.cfg.Database.URL, a.cfg.Database.MigrationsPath, down); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			a.logger.Info("migrations finished",
				"path", a.cfg.Database.MigrationsPath,
				"rolled_back_steps", down,
				"duration", time.Since(start),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

func (a *app) seedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or replace catalog products from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}

			products, err := readProducts(file)
			if err != nil {
				return err
			}

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				if err := rt.Catalog.UpsertProducts(cmd.Context(), products); err != nil {
					return fmt.Errorf("seed products: %w", err)
				}
				a.logger.Info("products seeded", "count", len(products), "file", file)
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", len(products))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of products")
	return cmd
}

func (a *app) placeCommand() *cobra.Command {
	var (
		buyer string
		lines []string
	)
	cmd := &cobra.Command{
		Use:     "place",
		Short:   "Place an order for a buyer",
		Example: "  orderctl place --buyer u1 --line p1=2 --line p2=3",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := parseLineFlags(lines)
			if err != nil {
				return err
			}

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				summary, err := rt.Orders.PlaceOrder(cmd.Context(), ordersapp.PlaceOrderInput{
					BuyerID: buyer,
					Lines:   raw,
				})
				if err != nil {
					return describe(err)
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer id placing the order")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "cart line as productId=quantity, repeatable")
	return cmd
}

func (a *app) ordersCommand() *cobra.Command {
	var (
		buyer    string
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List a buyer's orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				list, err := rt.Orders.ListOrders(cmd.Context(), queries.ListBuyerOrdersQuery{
					BuyerID:  buyer,
					Page:     page,
					PageSize: pageSize,
				})
				if err != nil {
					return describe(err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"orders":      list.Orders,
					"page":        list.Page,
					"pageSize":    list.PageSize,
					"totalPages":  list.TotalPages,
					"totalOrders": list.TotalOrders,
				})
			})
		},
	}
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", queries.DefaultPageSize, "orders per page")
	return cmd
}

func (a *app) purgeKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-keys",
		Short: "Delete expired idempotency keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				purger, ok := rt.Keys.(ports.IdempotencyPurger)
				if !ok {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s backend expires keys on its own\n", a.cfg.Orders.IdempotencyBackend)
					return err
				}

				removed, err := purger.Purge(cmd.Context())
				if err != nil {
					return err
				}
				a.logger.Info("idempotency keys purged", "removed", removed, "ttl", a.cfg.Orders.IdempotencyTTL)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired keys\n", removed)
				return err
			})
		},
	}
}

func readProducts(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read products file: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse products file: %w", err)
	}
	if len(products) == 0 {
		return nil, errors.New("products file contains no products")
	}
	return products, nil
}

// parseLineFlags turns productId=quantity pairs into raw cart lines. The
// quantity is left as text so the validator reports it like API input.
func parseLineFlags(values []string) ([]validation.RawLine, error) {
	lines := make([]validation.RawLine, 0, len(values))
	for _, value := range values {
		productID, quantity, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --line %q: expected productId=quantity", value)
		}
		lines = append(lines, validation.RawLine{ProductID: productID, Quantity: quantity})
	}
	return lines, nil
}

// describe prefixes domain failures with their kind.
func describe(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return err
	}
	if len(de.Details) > 1 {
		return fmt.Errorf("%s: %w (%s)", de.Kind, err, strings.Join(de.Details, "; "))
	}
	return fmt.Errorf("%s: %w", de.Kind, err)
}
