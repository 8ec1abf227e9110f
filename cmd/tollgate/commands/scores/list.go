package scores

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/cli/output"
	"github.com/marmos91/tollgate/internal/cli/timeutil"
	"github.com/marmos91/tollgate/pkg/store"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all trust scores",
	Long: `List all trust score records.

Examples:
  # List scores as table
  tollgate scores list

  # List as JSON
  tollgate scores list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ScoreList is a list of trust score records for table rendering.
type ScoreList []*store.TrustScore

// Headers implements TableRenderer.
func (sl ScoreList) Headers() []string {
	return []string{"PRINCIPAL", "SCORE", "UPDATED"}
}

// Rows implements TableRenderer.
func (sl ScoreList) Rows() [][]string {
	rows := make([][]string, 0, len(sl))
	for _, s := range sl {
		rows = append(rows, []string{s.PrincipalID, strconv.Itoa(s.Score), timeutil.FormatTime(s.UpdatedAt)})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	records, err := st.ListScores(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list scores: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, records)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, records)
	default:
		if len(records) == 0 {
			fmt.Println("No trust scores found.")
			return nil
		}
		return output.PrintTable(os.Stdout, ScoreList(records))
	}
}
