package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
)

var hashTokenSHA256 bool

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Generate a hash for auth.token_hash",
	Long: `Generate a hash of a bearer token for use in config.

The default output is an argon2id PHC string. With --sha256 the output is
"sha256:<hex>". Either form can be used as auth.token_hash.

If no argument is given the token is read from stdin, which keeps it out of
shell history:
  printf %s "$KRUG_TOKEN" | krug-mcp hash-token

Example:
  krug-mcp hash-token "my-secret-token"
  # Output: $argon2id$v=19$m=47104,t=1,p=1$...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := tokenFromArgs(cmd, args)
		if err != nil {
			return err
		}

		hash := auth.HashTokenSHA256(token)
		if !hashTokenSHA256 {
			if hash, err = auth.HashTokenArgon2id(token); err != nil {
				return fmt.Errorf("failed to hash token: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func tokenFromArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	token := strings.TrimSpace(line)
	if token == "" {
		if err != nil {
			return "", fmt.Errorf("no token given: %w", err)
		}
		return "", errors.New("no token given")
	}
	return token, nil
}

func init() {
	hashTokenCmd.Flags().BoolVar(&hashTokenSHA256, "sha256", false, "emit sha256:<hex> instead of argon2id")
	rootCmd.AddCommand(hashTokenCmd)
}
