package scores

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/pkg/store"
)

var setCmd = &cobra.Command{
	Use:   "set <principal> <score>",
	Short: "Set a principal's trust score",
	Long: fmt.Sprintf(`Set or update the trust score for a principal.

Scores range from %d to %d. The gateway admits a verified principal
when its score clears the admission threshold.

Examples:
  # Grant a principal a trusted score
  tollgate scores set user-42 85

  # Zero out a principal without deleting the record
  tollgate scores set user-42 0`, store.MinScore, store.MaxScore),
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	principalID := args[0]

	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid score %q: expected an integer between %d and %d", args[1], store.MinScore, store.MaxScore)
	}
	if !store.ValidScore(score) {
		return fmt.Errorf("score %d out of range: expected %d to %d", score, store.MinScore, store.MaxScore)
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.SetScore(cmd.Context(), principalID, score); err != nil {
		return fmt.Errorf("failed to set score: %w", err)
	}

	fmt.Printf("Set trust score for %s to %d\n", principalID, score)
	return nil
}
