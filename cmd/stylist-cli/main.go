// stylist-cli sends conversational turns to a running orchestrator, either
// one-shot or as an interactive chat loop. Useful for poking at the pipeline
// without a frontend.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	threadID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stylist-cli",
		Short: "Talk to the stylist orchestrator",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "orchestrator base URL")
	rootCmd.PersistentFlags().StringVar(&threadID, "thread", "", "conversation thread id (random when empty)")

	turnCmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Send a single turn and print the structured result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(strings.Join(args, " "))
		},
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat loop on one thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}

	rootCmd.AddCommand(turnCmd, chatCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func ensureThread() string {
	if threadID == "" {
		threadID = uuid.NewString()
		fmt.Printf("thread: %s\n", threadID)
	}
	return threadID
}

func runTurn(message string) error {
	result, err := postTurn(ensureThread(), message)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runChat() error {
	thread := ensureThread()
	fmt.Println("Type a message, or 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "quit" || message == "exit" {
			return nil
		}

		result, err := postTurn(thread, message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		if err := printResult(result); err != nil {
			return err
		}
	}
}

func postTurn(thread, message string) (map[string]any, error) {
	payload, err := json.Marshal(map[string]string{
		"thread_id": thread,
		"message":   message,
	})
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Post(serverURL+"/v1/turns", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to call orchestrator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("orchestrator returned %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return result, nil
}

func printResult(result map[string]any) error {
	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
