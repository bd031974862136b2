package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unijord/contentmeta/pkg/config"
	"github.com/unijord/contentmeta/pkg/schema"
)

// avroNamespace is the namespace of the rendered Avro record.
const avroNamespace = "contentmeta"

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the derived table schema",
	Long: `Prints the table columns derived from the configuration.
Formats: columns (default), arrow, avro.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "columns", "output format: columns, arrow or avro")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, _ []string) error {
	values, err := loadValues()
	if err != nil {
		return err
	}
	s, err := schema.FromConfig(values)
	if err != nil {
		return err
	}

	switch schemaFormat {
	case "columns":
		for _, e := range s.Entries() {
			cmd.Printf("%s %s\n", e.Name, schema.ColumnTypeText(e))
		}
	case "arrow":
		as, err := schema.ArrowSchema(s)
		if err != nil {
			return err
		}
		cmd.Println(as.String())
	case "avro":
		table, err := config.String(values, config.TableName)
		if err != nil {
			return err
		}
		rs, err := schema.AvroSchema(s, table, avroNamespace)
		if err != nil {
			return err
		}
		cmd.Println(rs.String())
	default:
		return fmt.Errorf("unknown format %q: want columns, arrow or avro", schemaFormat)
	}
	return nil
}
