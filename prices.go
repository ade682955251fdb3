package main

import (
	"fmt"
	"os"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/aihelper/aihelper/internal/catalog"
	"github.com/spf13/cobra"
)

func newPricesCmd() *cobra.Command {
	var (
		save   bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show model prices per million tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			fmt.Fprintln(os.Stderr, "Updating prices for the models...")
			prices := a.catalog.PriceList(cmd.Context())
			if len(prices) == 0 {
				return newUserErrorf("The model catalog is empty. Check %s.", a.settings.CatalogURL)
			}

			if save {
				if err := cache.WriteFile(output, []byte(catalog.FormatPriceList(prices, nil))); err != nil {
					return cliError{err, "Could not save the price list."}
				}
				fmt.Fprintln(os.Stderr, "Price list saved to "+stderrStyles().InlineCode.Render(output))
			}
			fmt.Fprint(cmd.OutOrStdout(), catalog.FormatPriceList(prices, stdoutStyles().Tiers))
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also write the price list to a file.")
	cmd.Flags().StringVarP(&output, "output", "o", "llm_prices.txt", "File the price list is saved to.")
	return cmd
}
