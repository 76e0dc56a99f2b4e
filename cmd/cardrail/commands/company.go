package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/company"
)

// CompanyCmd groups company management operations
var CompanyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage companies",
	Long: `Manage companies (tenants).

Examples:
  cardrail company add "Acme Print Works"
  cardrail company ls`,
}

var companyAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a company",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompanyAdd,
}

var companyLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List companies",
	RunE:  runCompanyLs,
}

func init() {
	CompanyCmd.AddCommand(companyAddCmd)
	CompanyCmd.AddCommand(companyLsCmd)
}

func runCompanyAdd(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	c, err := company.New(name)
	if err != nil {
		return err
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := company.NewStore(database).Create(c); err != nil {
		return err
	}

	fmt.Printf("Created company %s\n", c.Name)
	fmt.Printf("  ID:   %s\n", c.ID)
	fmt.Printf("  Slug: %s\n", c.Slug)
	return nil
}

func runCompanyLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	companies, err := company.NewStore(database).List(100)
	if err != nil {
		return err
	}

	if len(companies) == 0 {
		fmt.Println("No companies yet")
		return nil
	}

	fmt.Printf("%-36s  %-24s  %-20s  %s\n", "ID", "NAME", "SLUG", "CREATED")
	for _, c := range companies {
		fmt.Printf("%-36s  %-24s  %-20s  %s\n",
			c.ID, c.Name, c.Slug, c.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
