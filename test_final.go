//go:build ignore

// Live smoke test against the Gemini API:
//
//	NANOGENIUS_API_KEY=... go run test_final.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
)

func main() {
	fmt.Println("=== Live API Test ===")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := api.NewClient(ctx,
		api.WithAPIKey(cfg.APIKey),
		api.WithTextModel(cfg.TextModel),
		api.WithImageModel(cfg.ImageModel),
	)
	if err != nil {
		fmt.Printf("Client error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	now := time.Now()
	history := []models.Message{
		models.NewUserMessage("My name is Ana.", "", now),
		models.NewModelMessage("Nice to meet you, Ana!", "", now),
	}

	fmt.Printf("[%s] Streaming from %s...\n", time.Now().Format("15:04:05"), client.TextModel())
	start := time.Now()
	chunks := 0
	for chunk, err := range client.StreamText(ctx, history, "What is my name? Answer in one word.") {
		if err != nil {
			fmt.Printf("\nStream error: %v\n", err)
			os.Exit(1)
		}
		chunks++
		fmt.Print(chunk)
	}
	fmt.Printf("\n[%s] %d chunks in %v\n\n", time.Now().Format("15:04:05"), chunks, time.Since(start))

	fmt.Printf("[%s] Generating image with %s...\n", time.Now().Format("15:04:05"), client.ImageModel())
	start = time.Now()
	result, err := client.GenerateImage(ctx, "Generate a small red square on a white background", nil)
	if err != nil {
		fmt.Printf("Image error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[%s] Done in %v\n", time.Now().Format("15:04:05"), time.Since(start))
	if result.Text != "" {
		fmt.Printf("Text: %s\n", result.Text)
	}
	if result.ImageURL == "" {
		fmt.Println("No image returned")
		return
	}

	path, err := media.SaveDataURL(result.ImageURL, os.TempDir(), "smoke-test")
	if err != nil {
		fmt.Printf("Save error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image saved to %s\n", path)
}
