package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fieldnotes-io/inat/internal/auth"
	"github.com/fieldnotes-io/inat/internal/constants"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		username     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store credentials",
		Long: `Authenticate against the iNaturalist OAuth provider using the password
grant and store the issued token in the user config directory.

Requires the client ID and secret of a registered application; the
account password is prompted for interactively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			if username == "" {
				fmt.Print("Username: ")

				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("reading username: %w", err)
				}

				username = strings.TrimSpace(line)
			}

			fmt.Print("Password: ")

			passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()

			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}

			credPath, err := auth.DefaultCredentialPath()
			if err != nil {
				return fmt.Errorf("resolving credential path: %w", err)
			}

			store, err := auth.NewFileTokenStore(credPath)
			if err != nil {
				return fmt.Errorf("opening credential store: %w", err)
			}

			manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
				TokenURL:     constants.DefaultTokenURL,
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Username:     username,
				Password:     string(passwordBytes),
				Store:        store,
			})

			if _, err := manager.GetToken(cmd.Context()); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Printf("Logged in as %s. Credentials saved to %s\n", username, credPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth application client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth application client secret")
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			credPath, err := auth.DefaultCredentialPath()
			if err != nil {
				return fmt.Errorf("resolving credential path: %w", err)
			}

			store, err := auth.NewFileTokenStore(credPath)
			if err != nil {
				return fmt.Errorf("opening credential store: %w", err)
			}

			store.Clear()
			fmt.Println("Credentials removed.")

			return nil
		},
	}
}
