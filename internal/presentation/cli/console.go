package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"webcam-transfer/capture/internal/domain"
)

// ErrQuit пользователь завершил работу командой quit
var ErrQuit = errors.New("завершение по команде пользователя")

// CaptureService операции активного захвата, доступные из консоли
type CaptureService interface {
	SwitchCamera(ctx context.Context, sel domain.Selector) error
	SetDeviceID(ctx context.Context, id string) error
	RestartTrack(ctx context.Context, width, height, fps int) error
	PauseCapture() error
	ResumeCapture() error
	Configuration() (domain.TrackConfiguration, error)
}

type commandKind int

const (
	cmdSwitch commandKind = iota + 1
	cmdDevice
	cmdRestart
	cmdStart
	cmdStop
	cmdStatus
	cmdHelp
	cmdQuit
)

type command struct {
	kind     commandKind
	selector domain.Selector
	deviceID string
	preset   domain.Preset
}

const consoleHelp = `Команды:
  switch [id|front|back|external]  переключить камеру (без аргумента: следующая)
  device <id>                      перезапустить трек на устройстве
  restart <W>x<H>@<fps> | <preset> перезапустить трек с новыми параметрами
  start, stop                      возобновить / приостановить захват
  status                           текущая конфигурация
  quit                             выход
`

// parseCommand разбирает строку консоли
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errors.New("пустая команда")
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "switch":
		if len(args) > 1 {
			return command{}, errors.New("использование: switch [id|front|back|external]")
		}
		cmd := command{kind: cmdSwitch}
		if len(args) == 1 {
			if position, err := domain.ParsePosition(args[0]); err == nil && position != domain.PositionUnknown {
				cmd.selector.Position = position
			} else {
				cmd.selector.DeviceID = args[0]
			}
		}
		return cmd, nil

	case "device":
		if len(args) != 1 {
			return command{}, errors.New("использование: device <id>")
		}
		return command{kind: cmdDevice, deviceID: args[0]}, nil

	case "restart":
		if len(args) != 1 {
			return command{}, errors.New("использование: restart <W>x<H>@<fps>")
		}
		preset, err := parseCaptureFormat(args[0])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdRestart, preset: preset}, nil

	case "start":
		return command{kind: cmdStart}, nil
	case "stop":
		return command{kind: cmdStop}, nil
	case "status":
		return command{kind: cmdStatus}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("неизвестная команда: %q", name)
}

// parseCaptureFormat принимает имя пресета (h720) или строку вида 1280x720@30
func parseCaptureFormat(s string) (domain.Preset, error) {
	if preset, ok := domain.PresetByName(strings.ToLower(s)); ok {
		return preset, nil
	}

	size, fps, ok := strings.Cut(s, "@")
	if !ok {
		return domain.Preset{}, fmt.Errorf("некорректный формат %q, ожидается <W>x<H>@<fps>", s)
	}
	w, h, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return domain.Preset{}, fmt.Errorf("некорректный размер %q", size)
	}

	var values [3]int
	for i, part := range []string{w, h, fps} {
		v, err := strconv.Atoi(part)
		if err != nil || v <= 0 {
			return domain.Preset{}, fmt.Errorf("некорректное значение %q в %q", part, s)
		}
		values[i] = v
	}
	return domain.Preset{Width: values[0], Height: values[1], MaxFrameRate: values[2]}, nil
}

// Console выполняет команды пользователя над активным захватом
type Console struct {
	service CaptureService
	out     io.Writer
}

// NewConsole создает консоль поверх сервиса захвата
func NewConsole(service CaptureService, out io.Writer) *Console {
	return &Console{service: service, out: out}
}

// Run читает команды из in до EOF, отмены ctx или команды quit
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Execute(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return err
				}
				fmt.Fprintf(c.out, "Ошибка: %v\n", err)
			}
		}
	}
}

// Execute выполняет одну команду
func (c *Console) Execute(ctx context.Context, line string) error {
	cmd, err := parseCommand(line)
	if err != nil {
		return err
	}

	switch cmd.kind {
	case cmdSwitch:
		err = c.service.SwitchCamera(ctx, cmd.selector)
	case cmdDevice:
		err = c.service.SetDeviceID(ctx, cmd.deviceID)
	case cmdRestart:
		err = c.service.RestartTrack(ctx, cmd.preset.Width, cmd.preset.Height, cmd.preset.MaxFrameRate)
	case cmdStart:
		err = c.service.ResumeCapture()
	case cmdStop:
		err = c.service.PauseCapture()
	case cmdStatus:
		var config domain.TrackConfiguration
		if config, err = c.service.Configuration(); err == nil {
			fmt.Fprintf(c.out, "Текущий трек: %s\n", config)
			return nil
		}
	case cmdHelp:
		fmt.Fprint(c.out, consoleHelp)
		return nil
	case cmdQuit:
		return ErrQuit
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "OK")
	return nil
}
