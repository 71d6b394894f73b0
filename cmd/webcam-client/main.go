package main

import (
	"context"
	"log"

	// Драйверы регистрируют устройства в mediadevices
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/infrastructure/camera"
	"webcam-transfer/capture/internal/presentation/cli"
)

func newEngine(bitRate int, logger application.Logger) (cli.MediaBackend, error) {
	return camera.NewEngine(camera.Options{
		BitRate:    bitRate,
		BufferSize: camera.DefaultBufferSize,
	}, logger)
}

func main() {
	if err := cli.NewRootCommand(newEngine).ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Ошибка: %v", err)
	}
}
