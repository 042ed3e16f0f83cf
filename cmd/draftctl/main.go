// draftctl is an interactive shell over the configured draft backend.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/repository"
	"github.com/debemdeboas/draftbox/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, config.ErrLoadConfigFmt+"\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, kind, err := repository.New(ctx, config.AppConfig.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, config.ErrSelectBackendFmt+"\n", err)
		os.Exit(1)
	}
	if closer, ok := repo.(io.Closer); ok {
		defer closer.Close()
	}

	promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	fmt.Println(outputStyle.Render(fmt.Sprintf("Connected to %s storage. Type 'help' for commands.", kind)))
	if kind == repository.KindMemory {
		fmt.Println(errorStyle.Render("Warning: memory storage is lost when draftctl exits"))
	}

	svc := service.NewDraftService(repo)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("draft> "))
		if !scanner.Scan() {
			break
		}

		out, err := execute(ctx, svc, scanner.Text())
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			continue
		}
		if out != "" {
			fmt.Println(outputStyle.Render(out))
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Println("Error reading input:", err)
	}
}
