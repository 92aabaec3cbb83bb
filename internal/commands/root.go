package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "books",
		Short:   "Double-entry books and GST invoicing for small businesses",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.FileName, "path to "+config.FileName)
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file with BOOKS_* overrides")
	pf.StringVar(&g.tenant, "tenant", "", "tenant to act for (overrides business.tenant)")
	pf.DurationVar(&g.timeout, "timeout", 0, "abort the command after this long (0 means no limit)")

	rootCmd.AddCommand(
		newInitCommand(g),
		newAccountCommand(g),
		newTxnCommand(g),
		newCustomerCommand(g),
		newCategoryCommand(g),
		newInvoiceCommand(g),
		newReportCommand(g),
		newAuditCommand(g),
		newSnapshotCommand(g),
		newServeCommand(g),
	)

	return rootCmd
}
