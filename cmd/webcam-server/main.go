package main

import (
	"context"
	"log"

	"webcam-transfer/capture/internal/presentation/cli"
)

func main() {
	if err := cli.NewServerCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Ошибка: %v", err)
	}
}
