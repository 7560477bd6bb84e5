package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/logging"
)

func newCreateAdminCommand(loadConfig func() *config.Config) *cobra.Command {
	var reg auth.Registration

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: "Create an administrator account. The secret is read from the terminal " +
			"without echo, or as the first line of standard input when it is not a terminal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg.Secret = secret

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := auth.NewService(members.NewRepository(db.DB), nil, cfg.Auth)
			member, err := accounts.CreateAdministrator(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("failed to create administrator: %w", err)
			}

			logging.Default().Info().Uint("member_id", member.ID).Str("email", member.Email).Msg("administrator created")
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id %d)\n", member.Email, member.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "first name")
	cmd.Flags().StringVar(&reg.Surname, "surname", "", "last name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("surname")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// readSecret prompts on a terminal and reads one line otherwise.
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Secret: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	return secret, nil
}
