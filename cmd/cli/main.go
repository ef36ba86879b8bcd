package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	token   string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coinflip-cli",
		Short: "Coinflip exchange CLI tool",
		Long:  `A command line interface for interacting with the Coinflip exchange ledger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the exchange API")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("COINFLIP_TOKEN"), "Bearer token (or COINFLIP_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	loginCmd := &cobra.Command{
		Use:   "login <identifier> <password>",
		Short: "Authenticate and print a bearer token",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			login(args[0], args[1])
		},
	}

	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "List your balances",
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/portfolio/balances")
		},
	}

	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List your ledger entries",
		Run: func(cmd *cobra.Command, args []string) {
			get("/api/v1/portfolio/entries")
		},
	}

	transferCmd := &cobra.Command{
		Use:   "transfer <to-username> <currency> <amount> <idempotency-key>",
		Short: "Send funds to another user",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			transfer(args[0], args[1], args[2], args[3])
		},
	}

	// Ledger commands
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		Run: func(cmd *cobra.Command, args []string) {
			checkConsistency()
		},
	}

	ledgerCmd.AddCommand(consistencyCmd)
	rootCmd.AddCommand(loginCmd, balancesCmd, entriesCmd, transferCmd, ledgerCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func request(method, path string, payload any) (int, []byte) {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			fmt.Printf("Failed to encode request: %v\n", err)
			os.Exit(1)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		fmt.Printf("Error building request: %v\n", err)
		os.Exit(1)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, data
}

func get(path string) {
	status, body := request(http.MethodGet, path, nil)
	if status >= 400 {
		fmt.Printf("Request failed (Status: %d)\nResponse: %s\n", status, string(body))
		os.Exit(1)
	}

	fmt.Println(string(body))
}

func login(identifier, password string) {
	status, body := request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if status != http.StatusOK {
		fmt.Printf("Login failed (Status: %d)\nResponse: %s\n", status, string(body))
		os.Exit(1)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Token)
}

func transfer(toUsername, currency, amount, key string) {
	status, body := request(http.MethodPost, "/api/v1/transfers", map[string]string{
		"to_username":     toUsername,
		"currency":        currency,
		"amount":          amount,
		"idempotency_key": key,
	})
	if status != http.StatusCreated {
		fmt.Printf("Transfer failed (Status: %d)\nResponse: %s\n", status, string(body))
		os.Exit(1)
	}

	fmt.Println(string(body))
}

func checkConsistency() {
	status, body := request(http.MethodGet, "/api/v1/admin/consistency", nil)
	if status != http.StatusOK {
		fmt.Printf("Consistency check FAILED (Status: %d)\nResponse: %s\n", status, string(body))
		os.Exit(1)
	}

	fmt.Printf("Consistency check PASSED\n%s\n", string(body))
}
