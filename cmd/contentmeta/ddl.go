package main

import (
	"github.com/spf13/cobra"

	"github.com/unijord/contentmeta/pkg/schema"
)

var ddlDatabase bool

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the create-table statement",
	Args:  cobra.NoArgs,
	RunE:  runDDL,
}

func init() {
	ddlCmd.Flags().BoolVar(&ddlDatabase, "database", false, "also print the create-database statement")
	rootCmd.AddCommand(ddlCmd)
}

func runDDL(cmd *cobra.Command, _ []string) error {
	values, err := loadValues()
	if err != nil {
		return err
	}
	s, err := schema.FromConfig(values)
	if err != nil {
		return err
	}

	if ddlDatabase {
		stmt, err := schema.RenderCreateDatabaseStatement(values)
		if err != nil {
			return err
		}
		cmd.Println(stmt + ";")
	}

	stmt, err := schema.RenderCreateTableStatement(values, s)
	if err != nil {
		return err
	}
	cmd.Println(stmt)
	return nil
}
