package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"webcam-transfer/capture/internal/application"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// VideoWriter управляет сохранением потока H.264 в файл
type VideoWriter struct {
	mutex      sync.Mutex
	outputFile *os.File
	filePath   string
	written    int64
	logger     application.Logger
}

// NewVideoWriter создает файл сегмента для трека name
func NewVideoWriter(outputDir, name string, logger application.Logger) (*VideoWriter, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию: %w", err)
	}

	// Генерируем имя файла на основе текущего времени и трека
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filePath := filepath.Join(outputDir, fmt.Sprintf("webcam_%s_%s.h264", timestamp, unsafeName.ReplaceAllString(name, "_")))

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать файл: %w", err)
	}

	logger.Info("Запись в файл: %s", filePath)

	return &VideoWriter{
		outputFile: file,
		filePath:   filePath,
		logger:     logger,
	}, nil
}

// Write записывает данные в файл
func (vw *VideoWriter) Write(data []byte) (int, error) {
	vw.mutex.Lock()
	defer vw.mutex.Unlock()

	if vw.outputFile == nil {
		return 0, os.ErrClosed
	}
	n, err := vw.outputFile.Write(data)
	vw.written += int64(n)
	return n, err
}

// Path возвращает путь к файлу сегмента
func (vw *VideoWriter) Path() string {
	return vw.filePath
}

// Written возвращает число записанных байт
func (vw *VideoWriter) Written() int64 {
	vw.mutex.Lock()
	defer vw.mutex.Unlock()
	return vw.written
}

// Close закрывает файл
func (vw *VideoWriter) Close() error {
	vw.mutex.Lock()
	defer vw.mutex.Unlock()

	if vw.outputFile != nil {
		vw.logger.Info("Закрытие файла: %s (%d байт)", vw.filePath, vw.written)
		err := vw.outputFile.Close()
		vw.outputFile = nil
		return err
	}
	return nil
}
