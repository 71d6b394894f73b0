package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/infrastructure/logger"
	"webcam-transfer/capture/internal/infrastructure/streaming"
	"webcam-transfer/capture/internal/ingest"
)

var errConnectionLost = errors.New("соединение с сервером потеряно")

// MediaBackend медиадвижок платформы со списком устройств и проверкой доступа
type MediaBackend interface {
	application.MediaEngine
	application.DeviceEnumerator
	application.PermissionChecker
	application.DeviceLister
}

// EngineFactory создает медиадвижок с заданным битрейтом кодека
type EngineFactory func(bitRate int, logger application.Logger) (MediaBackend, error)

// transport исходящее соединение с сервером
type transport interface {
	application.NetworkSender
	Done() <-chan struct{}
	Close() error
}

// NewRootCommand создает корневую команду клиента
func NewRootCommand(newEngine EngineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "webcam-client",
		Short:         "Захват видео с камеры и передача на сервер",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("debug", false, "включить отладочные сообщения")

	root.AddCommand(
		newListDevicesCommand(newEngine),
		newStreamCommand(newEngine),
		newServeCommand(),
	)
	return root
}

// NewServerCommand корневая команда отдельного сервера приема
func NewServerCommand() *cobra.Command {
	cmd := newServeCommand()
	cmd.Use = "webcam-server"
	cmd.SilenceUsage = true
	cmd.PersistentFlags().Bool("debug", false, "включить отладочные сообщения")
	return cmd
}

func debugEnabled(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

func newListDevicesCommand(newEngine EngineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "Показать список доступных камер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory := logger.NewFactory(cmd.ErrOrStderr(), debugEnabled(cmd))
			engine, err := newEngine(DefaultConfig().BitRate, factory.Logger("camera"))
			if err != nil {
				return err
			}

			service := application.NewWebcamService(application.ControllerDeps{Logger: factory.Logger("capture")}, engine)
			devices, err := service.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Доступные устройства:")
			for i, device := range devices {
				fmt.Fprintf(out, "[%d] %s (%s) id=%s\n", i, device.Name, device.Position, device.ID)
			}
			return nil
		},
	}
}

func newStreamCommand(newEngine EngineFactory) *cobra.Command {
	config := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Захватывать видео и передавать его на сервер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Debug = debugEnabled(cmd)
			if err := config.Validate(); err != nil {
				return err
			}
			return runStream(cmd, config, newEngine)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.Address, "addr", config.Address, "адрес сервера")
	flags.IntVar(&config.Width, "width", config.Width, "ширина видео")
	flags.IntVar(&config.Height, "height", config.Height, "высота видео")
	flags.IntVar(&config.FPS, "fps", config.FPS, "частота кадров")
	flags.IntVar(&config.BitRate, "bitrate", config.BitRate, "битрейт видео (bps)")
	flags.StringVar(&config.DeviceID, "device", "", "ID устройства камеры для использования")
	flags.StringVar(&config.Position, "position", "", "расположение камеры: front, back, external")
	flags.BoolVar(&config.Screencast, "screencast", false, "захватывать экран вместо камеры")
	flags.StringVar(&config.Transport, "transport", config.Transport, "транспорт: websocket или webrtc")
	return cmd
}

func runStream(cmd *cobra.Command, config Config, newEngine EngineFactory) error {
	factory := logger.NewFactory(cmd.ErrOrStderr(), config.Debug)
	log := factory.Logger("capture")

	engine, err := newEngine(config.BitRate, factory.Logger("camera"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := openTransport(ctx, config, factory)
	if err != nil {
		return err
	}
	defer sender.Close()

	service := application.NewWebcamService(application.ControllerDeps{
		Engine:      engine,
		Enumerator:  engine,
		Permissions: engine,
		Logger:      log,
	}, engine)

	if err := service.StartCapture(ctx, config.TrackConfiguration(), sender); err != nil {
		return err
	}
	defer service.StopCapture()

	fmt.Fprint(cmd.OutOrStdout(), consoleHelp)
	console := NewConsole(service, cmd.OutOrStdout())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return console.Run(gctx, cmd.InOrStdin())
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-sender.Done():
			return errConnectionLost
		}
	})

	err = g.Wait()
	if errors.Is(err, ErrQuit) {
		err = nil
	}
	log.Info("Прерывание получено, закрытие...")
	return err
}

func openTransport(ctx context.Context, config Config, factory *logger.Factory) (transport, error) {
	log := factory.Logger("stream")

	switch config.Transport {
	case TransportWebRTC:
		api, err := streaming.NewAPI(factory.Pion())
		if err != nil {
			return nil, err
		}
		publisher, err := streaming.NewPublisher(api, log)
		if err != nil {
			return nil, err
		}
		if err := publisher.Connect(ctx, config.Endpoint()); err != nil {
			publisher.Close()
			return nil, err
		}
		return publisher, nil

	default:
		streamer := streaming.NewWebSocketStreamer(log, config.Debug)
		if err := streamer.Connect(ctx, config.Endpoint()); err != nil {
			return nil, err
		}
		return streamer, nil
	}
}

func newServeCommand() *cobra.Command {
	var (
		port      int
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Принимать видео от клиентов и записывать в файлы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port <= 0 || port > 65535 {
				return fmt.Errorf("некорректный порт: %d", port)
			}

			factory := logger.NewFactory(cmd.ErrOrStderr(), debugEnabled(cmd))
			api, err := streaming.NewAPI(factory.Pion())
			if err != nil {
				return err
			}
			server := ingest.NewServer(outputDir, api, factory.Logger("ingest"))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "порт сервера")
	cmd.Flags().StringVar(&outputDir, "output", "recordings", "директория для сохранения видео")
	return cmd
}
