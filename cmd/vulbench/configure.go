package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/czt0517/vulbench/internal/config"
)

var (
	configureShow   bool
	configureDelete bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the OpenAI API key in the OS keychain",
	Long: `Prompts for the OpenAI API key and saves it in the OS keychain so it
never lands in shell history or dotfiles. The environment variable
OPENAI_API_KEY always takes precedence over the stored key.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureShow, "show", false, "show the (masked) stored key and exit")
	configureCmd.Flags().BoolVar(&configureDelete, "delete", false, "remove the stored key and exit")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()

	if configureShow {
		key, err := km.GetAPIKey()
		if err != nil {
			return err
		}
		fmt.Printf("OpenAI API key: %s\n", config.MaskAPIKey(key))
		return nil
	}

	if configureDelete {
		if err := km.DeleteAPIKey(); err != nil {
			return err
		}
		fmt.Println("Stored API key removed.")
		return nil
	}

	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain is not available on this host; export OPENAI_API_KEY instead")
	}

	key, err := promptAPIKey()
	if err != nil {
		return err
	}
	if err := km.SaveAPIKey(key); err != nil {
		return err
	}
	fmt.Printf("API key saved to keychain (%s).\n", config.MaskAPIKey(key))
	return nil
}

// promptAPIKey reads the key without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptAPIKey() (string, error) {
	fmt.Print("OpenAI API key: ")

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
