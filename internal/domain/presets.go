package domain

// Preset типовые параметры захвата 16:9
type Preset struct {
	Name         string
	Width        int
	Height       int
	MaxFrameRate int
}

var (
	PresetH180  = Preset{Name: "h180", Width: 320, Height: 180, MaxFrameRate: 15}
	PresetH360  = Preset{Name: "h360", Width: 640, Height: 360, MaxFrameRate: 30}
	PresetH480  = Preset{Name: "h480", Width: 640, Height: 480, MaxFrameRate: 30}
	PresetH720  = Preset{Name: "h720", Width: 1280, Height: 720, MaxFrameRate: 30}
	PresetH1080 = Preset{Name: "h1080", Width: 1920, Height: 1080, MaxFrameRate: 30}
)

// Presets перечисляет пресеты по возрастанию разрешения
func Presets() []Preset {
	return []Preset{PresetH180, PresetH360, PresetH480, PresetH720, PresetH1080}
}

// Apply переносит параметры пресета в конфигурацию
func (p Preset) Apply(c TrackConfiguration) TrackConfiguration {
	return c.WithCapture(p.Width, p.Height, p.MaxFrameRate)
}

// PresetByName ищет пресет по имени
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
