package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

var baseURL string

func fetchDeadLetters() ([]*eventmodels.DeadLetter, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(fmt.Sprintf("%s/api/v1/dead-letters", baseURL))
	if err != nil {
		return nil, fmt.Errorf("fetchDeadLetters: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetchDeadLetters: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var deadLetters []*eventmodels.DeadLetter
	if err := json.NewDecoder(resp.Body).Decode(&deadLetters); err != nil {
		return nil, fmt.Errorf("fetchDeadLetters: decode: %w", err)
	}

	return deadLetters, nil
}

func replayDeadLetter(id uint) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(fmt.Sprintf("%s/api/v1/dead-letters/%d/replay", baseURL, id), "application/json", nil)
	if err != nil {
		return fmt.Errorf("replayDeadLetter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("replayDeadLetter: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered messages",
	Run: func(cmd *cobra.Command, args []string) {
		deadLetters, err := fetchDeadLetters()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		if len(deadLetters) == 0 {
			fmt.Println("No dead letters")
			return
		}

		out, err := json.MarshalIndent(deadLetters, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal dead letters: %v", err)
		}

		fmt.Println(string(out))
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay dead-lettered messages back to their source topic",
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := cmd.Flags().GetUintSlice("ids")
		if err != nil {
			log.Fatalf("error getting ids: %v", err)
		}

		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			log.Fatalf("error getting all: %v", err)
		}

		if all {
			deadLetters, err := fetchDeadLetters()
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			for _, dl := range deadLetters {
				ids = append(ids, dl.ID)
			}
		}

		if len(ids) == 0 {
			log.Fatal("no dead letter ids given: pass --ids or --all")
		}

		for _, id := range ids {
			if err := replayDeadLetter(id); err != nil {
				log.Errorf("Failed to replay dead letter %d: %v", id, err)
				continue
			}
			fmt.Printf("Replayed dead letter %d\n", id)
		}
	},
}

var rootCmd = &cobra.Command{
	Use:   "replay_dead_letters",
	Short: "Inspect and replay dead-lettered trade messages",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:3000", "Base URL of the trade platform server")
	replayCmd.Flags().UintSlice("ids", nil, "Dead letter ids to replay")
	replayCmd.Flags().Bool("all", false, "Replay every dead letter")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(replayCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
