package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sakinah/internal/cli"
	"sakinah/internal/core"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage income and expense categories",
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(removeCategoryCmd())
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := core.TxType(strings.ToLower(typ))
			if t != "" && !t.Valid() {
				return fmt.Errorf("--type %q: %w", typ, core.ErrInvalidType)
			}
			return withApp(cmd.Context(), func(_ context.Context, app *cli.App) error {
				cats := app.Controller.Categories()
				if t != "" {
					cats = app.Controller.CategoriesByType(t)
				}
				return cli.RenderCategories(os.Stdout, cats)
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "income or expense")
	return cmd
}

func addCategoryCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
				cat, err := app.Controller.AddCategory(ctx, core.Category{
					Name: strings.TrimSpace(args[0]),
					Type: core.TxType(strings.ToLower(typ)),
				})
				if err != nil {
					return err
				}
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Created %s category %q (%s)", cat.Type, cat.Name, cat.ID)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(core.Expense), "income or expense")
	return cmd
}

func removeCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a category; transactions keep their category label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
				if err := app.Controller.RemoveCategory(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println(cli.SuccessStyle.Render("✓ Removed category " + args[0]))
				return nil
			})
		},
	}
}
