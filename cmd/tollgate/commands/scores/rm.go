package scores

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/cli/prompt"
	"github.com/marmos91/tollgate/pkg/store"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:   "rm <principal>",
	Short: "Remove a principal's trust score",
	Long: `Remove the trust score record for a principal.

Once removed, the principal scores zero and the gateway denies it.

Examples:
  # Remove with confirmation prompt
  tollgate scores rm user-42

  # Remove without prompting
  tollgate scores rm user-42 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation prompt")
}

func runRm(cmd *cobra.Command, args []string) error {
	principalID := args[0]

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove trust score for %s?", principalID), rmForce)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.DeleteScore(cmd.Context(), principalID); err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			return fmt.Errorf("no trust score recorded for %s", principalID)
		}
		return fmt.Errorf("failed to remove score: %w", err)
	}

	fmt.Printf("Removed trust score for %s\n", principalID)
	return nil
}
