package scores

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/pkg/store"
)

var getCmd = &cobra.Command{
	Use:   "get <principal>",
	Short: "Look up a principal's trust score",
	Long: `Look up the trust score for a single principal.

Examples:
  tollgate scores get user-42`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	principalID := args[0]

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	score, err := st.GetScore(cmd.Context(), principalID)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			return fmt.Errorf("no trust score recorded for %s", principalID)
		}
		return fmt.Errorf("failed to get score: %w", err)
	}

	fmt.Printf("%s: %d\n", principalID, score)
	return nil
}
