package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igrelay/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Telegram bot token",
	Long: `Manage the stored Telegram bot token securely.

The token is stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable IGRELAY_BOT_TOKEN (read-only fallback)

Never share your bot token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the bot token securely",
	Long: `Store the Telegram bot token securely in the system keychain or an
encrypted file.

You will be prompted for the token. Get one from @BotFather with /newbot
if you do not have one yet.`,
	Example: `  # Interactive login
  igrelay auth login`,
	Run: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored bot token",
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored credentials",
	Long:  `Show the stored bot token profiles with the token itself masked.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	// Show the token guide first
	auth.ShowTokenGuide()

	fmt.Print("Ready to enter your bot token? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'igrelay auth login' when you're ready.")
		return
	}

	// Warn before overwriting an existing token
	if existing, _ := manager.Retrieve(auth.DefaultProfile); existing != nil {
		fmt.Print("\n⚠️  A bot token is already stored. Replace it? (y/N): ")
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	var token string
	for {
		fmt.Print("\n🔐 Bot token (hidden as you type): ")
		token, err = readPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read token: %v\n", err)
			os.Exit(1)
		}

		if err := auth.ValidateToken(token); err != nil {
			fmt.Println("\n❌ That doesn't look like a valid bot token.")
			fmt.Println("   It should look like 123456789:AAEhBOweik6ad...")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	cred := &auth.Credential{
		Name:  auth.DefaultProfile,
		Token: token,
	}

	fmt.Println("\n💾 Storing token securely...")
	if err := manager.Store(cred); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🎉 Bot token stored successfully!")
	fmt.Println("\n📖 Quick Start Guide:")
	fmt.Println("   Verify the pipeline end to end:")
	fmt.Println("   $ igrelay run --test")
	fmt.Println("\n   Then start the relay:")
	fmt.Println("   $ igrelay run")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Remove the stored bot token? (y/N): ")
	input, _ := reader.ReadString('\n')
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
		return
	}

	if err := manager.Delete(auth.DefaultProfile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Bot token removed")
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	creds, err := manager.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list credentials: %v\n", err)
		os.Exit(1)
	}

	if len(creds) == 0 && os.Getenv("IGRELAY_BOT_TOKEN") == "" {
		fmt.Println("No bot token stored. Use 'igrelay auth login' to add one.")
		return
	}

	fmt.Println("Stored credentials:")
	fmt.Println()
	for i, cred := range creds {
		sanitized := auth.Sanitize(cred)
		fmt.Printf("%d. Profile: %s\n", i+1, sanitized.Name)
		fmt.Printf("   Token: %s\n", sanitized.Token)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	if os.Getenv("IGRELAY_BOT_TOKEN") != "" {
		fmt.Println("IGRELAY_BOT_TOKEN is set and takes precedence over stored tokens.")
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after input
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
